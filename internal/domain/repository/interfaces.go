package repository

import (
	"context"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
)

// DedupStore tracks which deliveries, threads, mentions, and outbound
// replies have already been handled. All operations must be atomic with
// respect to concurrent calls for the same key: the upstream platform
// redelivers events and may deliver the same event twice near
// simultaneously, so a plain check-then-add sequence is not enough.
//
// Greetings and mentions use a claim/release pair: the dispatcher claims
// the key before posting (so a concurrent duplicate is rejected) and
// releases it if the post fails (so the next redelivery can retry).
// Delivery IDs are recorded on first sight; processing, not posting, must
// not repeat.
type DedupStore interface {
	// MarkDelivery records a delivery ID and reports whether this is its
	// first sighting.
	MarkDelivery(ctx context.Context, deliveryID string) (first bool, err error)

	// ClaimGreeting atomically claims the thread for greeting. Returns
	// false if the thread was already greeted or claimed.
	ClaimGreeting(ctx context.Context, key entity.ThreadKey) (claimed bool, err error)

	// ReleaseGreeting undoes a claim after a failed greeting post.
	ReleaseGreeting(ctx context.Context, key entity.ThreadKey) error

	// ClaimMention atomically claims a mention's client message ID.
	ClaimMention(ctx context.Context, clientMsgID string) (claimed bool, err error)

	// ReleaseMention undoes a claim after a failed reply post.
	ReleaseMention(ctx context.Context, clientMsgID string) error

	// RecordReply records the timestamp of a reply this process posted.
	RecordReply(ctx context.Context, ts string) error

	// IsOwnReply reports whether ts was posted by this process. Used to
	// ignore the platform echoing our own messages back as new events.
	IsOwnReply(ctx context.Context, ts string) (bool, error)

	// Sweep evicts entries recorded before cutoff and returns how many
	// were removed. The platform's redelivery window is bounded, so
	// entries older than it can never match a live delivery.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

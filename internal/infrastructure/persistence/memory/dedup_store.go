package memory

import (
	"context"
	"sync"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
)

// DedupStore provides an in-memory implementation of repository.DedupStore.
// Thread-safe for concurrent access. State is lost on restart, which is
// acceptable: the platform's redelivery window is shorter than typical
// process uptime.
type DedupStore struct {
	mu         sync.Mutex
	deliveries map[string]time.Time
	replies    map[string]time.Time
	greeted    map[string]time.Time
	mentions   map[string]time.Time

	now func() time.Time
}

// NewDedupStore creates an empty in-memory dedup store.
func NewDedupStore() *DedupStore {
	return &DedupStore{
		deliveries: make(map[string]time.Time),
		replies:    make(map[string]time.Time),
		greeted:    make(map[string]time.Time),
		mentions:   make(map[string]time.Time),
		now:        time.Now,
	}
}

// MarkDelivery records a delivery ID, reporting whether it is new.
func (s *DedupStore) MarkDelivery(ctx context.Context, deliveryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.deliveries[deliveryID]; seen {
		return false, nil
	}
	s.deliveries[deliveryID] = s.now()
	return true, nil
}

// ClaimGreeting atomically claims a thread for greeting.
func (s *DedupStore) ClaimGreeting(ctx context.Context, key entity.ThreadKey) (bool, error) {
	return s.claim(s.greeted, key.String()), nil
}

// ReleaseGreeting undoes a greeting claim after a failed post.
func (s *DedupStore) ReleaseGreeting(ctx context.Context, key entity.ThreadKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.greeted, key.String())
	return nil
}

// ClaimMention atomically claims a mention's client message ID.
func (s *DedupStore) ClaimMention(ctx context.Context, clientMsgID string) (bool, error) {
	return s.claim(s.mentions, clientMsgID), nil
}

// ReleaseMention undoes a mention claim after a failed post.
func (s *DedupStore) ReleaseMention(ctx context.Context, clientMsgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mentions, clientMsgID)
	return nil
}

// RecordReply records the timestamp of a reply this process posted.
func (s *DedupStore) RecordReply(ctx context.Context, ts string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[ts] = s.now()
	return nil
}

// IsOwnReply reports whether ts belongs to a reply this process posted.
func (s *DedupStore) IsOwnReply(ctx context.Context, ts string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.replies[ts]
	return ok, nil
}

// Sweep evicts entries recorded before cutoff across all four sets.
func (s *DedupStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, set := range []map[string]time.Time{s.deliveries, s.replies, s.greeted, s.mentions} {
		for k, at := range set {
			if at.Before(cutoff) {
				delete(set, k)
				removed++
			}
		}
	}
	return removed, nil
}

func (s *DedupStore) claim(set map[string]time.Time, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := set[key]; taken {
		return false
	}
	set[key] = s.now()
	return true
}

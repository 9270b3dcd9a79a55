package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
)

const (
	kindDelivery = "delivery"
	kindGreeting = "greeting"
	kindMention  = "mention"
	kindReply    = "reply"
)

// DedupStore implements repository.DedupStore backed by SQLite. Claims rely
// on the primary key over (kind, entry_key): INSERT OR IGNORE reports one
// affected row for exactly one concurrent claimer.
type DedupStore struct {
	db  *DB
	now func() time.Time
}

// NewDedupStore creates a SQLite-backed dedup store.
func NewDedupStore(db *DB) *DedupStore {
	return &DedupStore{db: db, now: time.Now}
}

// MarkDelivery records a delivery ID, reporting whether it is new.
func (s *DedupStore) MarkDelivery(ctx context.Context, deliveryID string) (bool, error) {
	return s.insert(ctx, kindDelivery, deliveryID)
}

// ClaimGreeting atomically claims a thread for greeting.
func (s *DedupStore) ClaimGreeting(ctx context.Context, key entity.ThreadKey) (bool, error) {
	return s.insert(ctx, kindGreeting, key.String())
}

// ReleaseGreeting undoes a greeting claim after a failed post.
func (s *DedupStore) ReleaseGreeting(ctx context.Context, key entity.ThreadKey) error {
	return s.remove(ctx, kindGreeting, key.String())
}

// ClaimMention atomically claims a mention's client message ID.
func (s *DedupStore) ClaimMention(ctx context.Context, clientMsgID string) (bool, error) {
	return s.insert(ctx, kindMention, clientMsgID)
}

// ReleaseMention undoes a mention claim after a failed post.
func (s *DedupStore) ReleaseMention(ctx context.Context, clientMsgID string) error {
	return s.remove(ctx, kindMention, clientMsgID)
}

// RecordReply records the timestamp of a reply this relay posted.
func (s *DedupStore) RecordReply(ctx context.Context, ts string) error {
	_, err := s.insert(ctx, kindReply, ts)
	return err
}

// IsOwnReply reports whether ts belongs to a reply this relay posted.
func (s *DedupStore) IsOwnReply(ctx context.Context, ts string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM dedup_entries WHERE kind = ? AND entry_key = ?",
		kindReply, ts,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query reply: %w", err)
	}
	return n > 0, nil
}

// Sweep evicts entries recorded before cutoff.
func (s *DedupStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM dedup_entries WHERE recorded_at < ?",
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *DedupStore) insert(ctx context.Context, kind, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO dedup_entries (kind, entry_key, recorded_at) VALUES (?, ?, ?)",
		kind, key, s.now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert %s entry: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *DedupStore) remove(ctx context.Context, kind, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM dedup_entries WHERE kind = ? AND entry_key = ?",
		kind, key,
	)
	if err != nil {
		return fmt.Errorf("delete %s entry: %w", kind, err)
	}
	return nil
}

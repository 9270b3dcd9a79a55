package identity

import (
	"context"
	"sync"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
)

// ProfileSource reads a user's display name from the chat platform.
type ProfileSource interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Directory reads a user's preferred name from the people directory.
// An empty name means the directory has no record for the user.
type Directory interface {
	PreferredName(ctx context.Context, userID string) (string, error)
}

// Logger defines the contract for logging within use cases.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Resolver resolves workspace user IDs to the name the relay should use
// when addressing someone. A directory record always wins over the
// platform profile; the profile is the fallback.
type Resolver struct {
	profiles  ProfileSource
	directory Directory // nil when the directory is not configured
	logger    Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver creates a name resolver.
func NewResolver(profiles ProfileSource, directory Directory, logger Logger) *Resolver {
	return &Resolver{
		profiles:  profiles,
		directory: directory,
		logger:    logger,
		cache:     make(map[string]string),
	}
}

// PreferredName returns the name for a user, or "" when nothing is known.
// Only successful non-empty resolutions are cached, so a user added to the
// directory later is picked up.
func (r *Resolver) PreferredName(ctx context.Context, userID string) (string, error) {
	userID = entity.NormalizeUserID(userID)
	if userID == "" {
		return "", nil
	}

	r.mu.RLock()
	cached, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if r.directory != nil {
		name, err := r.directory.PreferredName(ctx, userID)
		if err != nil {
			r.logger.Warn("directory lookup failed", "userID", userID, "error", err)
		} else if name != "" {
			r.store(userID, name)
			return name, nil
		}
	}

	name, err := r.profiles.DisplayName(ctx, userID)
	if err != nil {
		return "", err
	}
	if name != "" {
		r.store(userID, name)
	}
	return name, nil
}

func (r *Resolver) store(userID, name string) {
	r.mu.Lock()
	r.cache[userID] = name
	r.mu.Unlock()
}

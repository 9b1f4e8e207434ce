package session

import (
	"context"
	"errors"
)

var (
	// ErrSessionNotFound is returned by Update when the user has no open session.
	ErrSessionNotFound = errors.New("session: not found")
	errNotInitialised  = errors.New("session: store not initialised")
)

// State is a user's position inside a dialog plus the partial data collected so far.
type State struct {
	Step string            `json:"step"`
	Data map[string]string `json:"data,omitempty"`
}

// Value returns the stored value for key or an empty string.
func (s State) Value(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}

// Store persists dialog state keyed by the external user id.
// Implementations are last-write-wins; callers serialise per user with a Locker.
type Store interface {
	Get(ctx context.Context, userID int64) (State, bool, error)
	SetState(ctx context.Context, userID int64, step string, data map[string]string) error
	// Update merges data into the existing session without changing its step.
	Update(ctx context.Context, userID int64, data map[string]string) error
	Clear(ctx context.Context, userID int64) error
}

func cloneData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func mergeData(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

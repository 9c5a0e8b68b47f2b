// Package session keeps server-side login sessions.
//
// A session maps an opaque id (an xid, handed to the browser inside a signed
// cookie) to the identity snapshot taken at login. The browser never holds
// the identity itself, so logging out or expiring a session takes effect on
// the very next request.
//
// TWO BACKENDS:
//   - MemoryStore: a map guarded by a RWMutex. Sessions are lost on restart.
//   - RedisStore:  one key per session with a TTL equal to the remaining
//     lifetime, so Redis does the expiry for us.
//
// Expiry is absolute: a session lives exactly until ExpiresAt and is never
// extended by activity.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/social-demo/internal/model"
)

// ErrNotFound is returned for unknown and for expired sessions alike.
var ErrNotFound = errors.New("session: not found")

// Session is one logged-in browser.
type Session struct {
	ID        string            `json:"id"`
	User      model.SessionUser `json:"user"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store is implemented by MemoryStore and RedisStore.
type Store interface {
	Save(ctx context.Context, s *Session) error
	// Get returns ErrNotFound for a missing or expired session.
	Get(ctx context.Context, id string) (*Session, error)
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
	Close() error
}

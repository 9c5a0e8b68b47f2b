package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/session"
)

// SessionCookieName is the cookie holding the signed session id.
const SessionCookieName = "sid"

// SessionManager ties the session store to the browser cookie.
//
// COOKIE SETTINGS:
//   - HttpOnly: JavaScript cannot read the cookie (XSS cannot steal it)
//   - SameSite=Lax: sent on top-level navigations (the Google redirect back
//     to us) but not on cross-site POSTs
//   - Secure: configurable, must be on behind HTTPS
//   - Max-Age: the session TTL; expiry is absolute, never extended
type SessionManager struct {
	store  session.Store
	tokens *TokenService
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager creates a SessionManager issuing sessions valid for ttl.
func NewSessionManager(store session.Store, tokens *TokenService, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		store:  store,
		tokens: tokens,
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Start creates a session for user and sets the cookie on w.
func (m *SessionManager) Start(ctx context.Context, w http.ResponseWriter, user model.SessionUser) (*session.Session, error) {
	expiresAt := m.now().Add(m.ttl)
	s := &session.Session{
		ID:        xid.New().String(),
		User:      user,
		ExpiresAt: expiresAt,
	}

	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("auth: saving session: %w", err)
	}

	token, err := m.tokens.Sign(s.ID, expiresAt)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Load returns the session behind the request's cookie.
//
// A missing cookie, a bad signature and an unknown or expired session all
// return session.ErrNotFound. Any other error comes from the store.
func (m *SessionManager) Load(ctx context.Context, r *http.Request) (*session.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, session.ErrNotFound
	}

	id, err := m.tokens.Validate(cookie.Value)
	if err != nil {
		return nil, session.ErrNotFound
	}

	return m.store.Get(ctx, id)
}

// End destroys the request's session, if any, and clears the cookie.
func (m *SessionManager) End(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	s, err := m.Load(ctx, r)
	switch {
	case err == nil:
		if err := m.store.Delete(ctx, s.ID); err != nil {
			return fmt.Errorf("auth: deleting session: %w", err)
		}
	case !errors.Is(err, session.ErrNotFound):
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

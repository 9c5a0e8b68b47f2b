package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/session"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore(time.Hour)
	t.Cleanup(func() { store.Close() })
	return NewSessionManager(store, newTestTokenService(t), 7*24*time.Hour, false), store
}

// startSession runs Start and returns the cookie it set.
func startSession(t *testing.T, m *SessionManager, user model.SessionUser) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	_, err := m.Start(context.Background(), rec, user)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

var alice = model.SessionUser{ID: 1, Name: "Alice", Username: "alice", Verified: true}

func TestSessionManager_StartSetsCookie(t *testing.T) {
	m, store := newTestSessionManager(t)

	c := startSession(t, m, alice)
	assert.Equal(t, SessionCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 7*24*60*60, c.MaxAge)
	assert.Equal(t, 1, store.Len())
}

func TestSessionManager_LoadRoundTrip(t *testing.T) {
	m, _ := newTestSessionManager(t)
	c := startSession(t, m, alice)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)

	s, err := m.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, alice, s.User)
}

func TestSessionManager_LoadRejects(t *testing.T) {
	m, _ := newTestSessionManager(t)
	c := startSession(t, m, alice)

	other, _ := NewTokenService("another-secret-entirely-32-chars")
	forged, _ := other.Sign("whatever", time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"tampered", &http.Cookie{Name: SessionCookieName, Value: c.Value[:len(c.Value)-2] + "zz"}},
		{"foreign signature", &http.Cookie{Name: SessionCookieName, Value: forged}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			_, err := m.Load(context.Background(), req)
			assert.True(t, errors.Is(err, session.ErrNotFound), "err = %v", err)
		})
	}
}

func TestSessionManager_EndDeletesServerSide(t *testing.T) {
	m, store := newTestSessionManager(t)
	c := startSession(t, m, alice)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.AddCookie(c)
	rec := httptest.NewRecorder()

	require.NoError(t, m.End(context.Background(), rec, req))
	assert.Equal(t, 0, store.Len())

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	// The old cookie no longer resolves even if the browser kept it.
	replay := httptest.NewRequest(http.MethodGet, "/", nil)
	replay.AddCookie(c)
	_, err := m.Load(context.Background(), replay)
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestSessionManager_EndWithoutSession(t *testing.T) {
	m, _ := newTestSessionManager(t)
	rec := httptest.NewRecorder()
	assert.NoError(t, m.End(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/", nil)))
}

// =========================================================================
// MIDDLEWARE
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func protected(m *SessionManager) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := SessionUserFromContext(r.Context())
		_, _ = io.WriteString(w, u.Username)
	})
	return LoadSession(m, discardLogger())(RequireLogin(final))
}

func TestRequireLogin(t *testing.T) {
	m, _ := newTestSessionManager(t)

	verified := startSession(t, m, alice)
	unverified := startSession(t, m, model.SessionUser{ID: 2, Name: "Bob", Username: "bob"})

	tests := []struct {
		name     string
		cookie   *http.Cookie
		wantCode int
		wantBody string
	}{
		{"anonymous", nil, http.StatusUnauthorized, `"error":"unauthorized"`},
		{"unverified", unverified, http.StatusForbidden, `"error":"forbidden"`},
		{"verified", verified, http.StatusOK, "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()

			protected(m).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

// failingStore simulates an unreachable session backend.
type failingStore struct{ session.Store }

func (failingStore) Get(context.Context, string) (*session.Session, error) {
	return nil, errors.New("connection refused")
}

func TestLoadSession_StoreFailureIs500(t *testing.T) {
	tokens := newTestTokenService(t)
	m := NewSessionManager(failingStore{}, tokens, time.Hour, false)

	token, _ := tokens.Sign("sid", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()

	protected(m).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

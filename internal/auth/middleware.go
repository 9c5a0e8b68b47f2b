package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/session"
)

// contextKey is unexported so only this package can read or write the
// session value in a request context.
type contextKey string

const sessionUserKey contextKey = "sessionUser"

// LoadSession attaches the caller's session snapshot to the request context
// when a valid session cookie is present. It never rejects a request because
// the caller is anonymous; RequireLogin does that.
//
// A failing session store (e.g. Redis unreachable) is a 500, not a silent
// logout.
func LoadSession(sessions *SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := sessions.Load(r.Context(), r)
			switch {
			case err == nil:
				r = r.WithContext(WithSessionUser(r.Context(), s.User))
			case !errors.Is(err, session.ErrNotFound):
				logger.Error("loading session failed", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLogin gates protected routes. It must run after LoadSession.
//
//	no session            → 401 unauthorized
//	session, not verified → 403 forbidden
//
// The verified flag comes from the snapshot taken at login, so a user
// verified after logging in must log in again.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := SessionUserFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Not logged in")
			return
		}
		if !user.Verified {
			writeAuthError(w, http.StatusForbidden, "forbidden", "User not verified")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithSessionUser returns a copy of ctx carrying user.
func WithSessionUser(ctx context.Context, user model.SessionUser) context.Context {
	return context.WithValue(ctx, sessionUserKey, user)
}

// SessionUserFromContext returns the logged-in identity, or false for an
// anonymous request.
func SessionUserFromContext(ctx context.Context) (model.SessionUser, bool) {
	user, ok := ctx.Value(sessionUserKey).(model.SessionUser)
	return user, ok
}

// writeAuthError writes the same error body as the handler package. It is
// duplicated here because handler imports auth.
func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

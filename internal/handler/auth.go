package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/social-demo/internal/auth"
	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/service"
)

const oauthStateCookie = "oauth_state"

// GoogleProvider is the part of auth.GoogleProvider the handler needs.
// Tests substitute a fake.
type GoogleProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthHandler serves local login/registration, the session endpoints and
// the Google sign-in redirect flow.
//
// DEPENDENCY CHAIN:
//   - auth     *service.AuthService  → account rules (register, login, provisioning)
//   - sessions *auth.SessionManager  → server-side session + "sid" cookie
//   - google   GoogleProvider        → nil when Google sign-in is not configured
type AuthHandler struct {
	auth          *service.AuthService
	sessions      *auth.SessionManager
	google        GoogleProvider
	clientURL     string
	secureCookies bool
	logger        *slog.Logger
}

// AuthHandlerConfig groups the optional Google settings.
type AuthHandlerConfig struct {
	Google        GoogleProvider // nil disables /auth/google
	ClientURL     string         // frontend origin, e.g. http://localhost:5173
	SecureCookies bool
}

func NewAuthHandler(
	authService *service.AuthService,
	sessions *auth.SessionManager,
	cfg AuthHandlerConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:          authService,
		sessions:      sessions,
		google:        cfg.Google,
		clientURL:     cfg.ClientURL,
		secureCookies: cfg.SecureCookies,
		logger:        logger,
	}
}

// GoogleEnabled reports whether the Google routes should be mounted.
func (h *AuthHandler) GoogleEnabled() bool { return h.google != nil }

// HandleRegister creates a local account.
//
// HTTP: POST /api/register
// BODY: {"username": "...", "password": "...", "name": "..."}
//
// The account is NOT logged in and starts unverified.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.auth.Register(r.Context(), in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Registered successfully",
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin checks credentials and starts a session.
//
// HTTP: POST /api/login
// RESPONSE: {"success": true, "user": {"id", "name", "username", "verified"}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	s, err := h.sessions.Start(r.Context(), w, user.SessionUser())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    s.User,
	})
}

// HandleLogout destroys the server-side session and clears the cookie.
// Logging out without a session is not an error.
//
// HTTP: POST /api/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), w, r); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleSession reports who is logged in. It never fails for anonymous
// callers.
//
// HTTP: GET /api/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.SessionUserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"loggedIn": false})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		LoggedIn bool              `json:"loggedIn"`
		User     model.SessionUser `json:"user"`
	}{true, user})
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /auth/google
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived cookie and sent to Google, which
// echoes it back on the callback. A mismatch means the callback was not
// started by this browser.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes Google sign-in.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// Every failure redirects to <client>/login; success starts a session and
// redirects to <client>/profile.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		h.redirectToClient(w, r, "/login")
		return
	}

	// Single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("google callback: authorization denied", slog.String("error", errParam))
		h.redirectToClient(w, r, "/login")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectToClient(w, r, "/login")
		return
	}

	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		h.redirectToClient(w, r, "/login")
		return
	}

	user, err := h.auth.LoginWithGoogle(r.Context(), profile)
	if err != nil {
		h.logger.Error("google callback: account resolution failed", slog.String("error", err.Error()))
		h.redirectToClient(w, r, "/login")
		return
	}

	if _, err := h.sessions.Start(r.Context(), w, user.SessionUser()); err != nil {
		h.logger.Error("google callback: starting session failed", slog.String("error", err.Error()))
		h.redirectToClient(w, r, "/login")
		return
	}

	h.redirectToClient(w, r, "/profile")
}

func (h *AuthHandler) redirectToClient(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, h.clientURL+path, http.StatusFound)
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/social-demo/internal/service"
)

// UserHandler serves public profiles.
type UserHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewUserHandler(authService *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{auth: authService, logger: logger}
}

// HandleGet returns {id, name, username, profileImage}. Password hash,
// verification state and Google id are never exposed.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := h.auth.GetPublicProfile(r.Context(), idParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Package handler contains the HTTP handlers of the social API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (URL params, JSON body, session from context)
//  2. Call the service layer
//  3. Write the response through writeJSON / writeError
//
// Handlers hold no business rules; validation, ownership and joins live in
// internal/service.
package handler

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SPAHandler serves a built single-page frontend from a directory.
//
// Existing files are served as-is. Any other GET falls back to index.html so
// client-side routes like /profile survive a page reload. Paths under /api/
// and /auth/ never fall back; an unknown API route stays a 404.
type SPAHandler struct {
	dir        string
	fileServer http.Handler
	logger     *slog.Logger
}

// NewSPAHandler returns a handler for dir. dir must contain index.html.
func NewSPAHandler(dir string, logger *slog.Logger) (*SPAHandler, error) {
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		return nil, err
	}
	return &SPAHandler{
		dir:        dir,
		fileServer: http.FileServer(http.Dir(dir)),
		logger:     logger,
	}, nil
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	if strings.HasPrefix(clean, "/api/") || strings.HasPrefix(clean, "/auth/") {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Not found"})
		return
	}

	// http.Dir rejects ".." itself; Clean above keeps the Stat consistent.
	info, err := os.Stat(filepath.Join(h.dir, filepath.FromSlash(clean)))
	if err == nil && !info.IsDir() {
		h.fileServer.ServeHTTP(w, r)
		return
	}

	http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
}

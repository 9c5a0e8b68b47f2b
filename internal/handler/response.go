package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the API has one
// success shape per endpoint and exactly one error shape:
//
//	{"success": false, "error": "not_found", "message": "Post not found"}
//
// "error" is machine-readable and stable; "message" is for humans and is
// what the frontend shows.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-demo/internal/apperror"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Success bool   `json:"success"` // always false
	Error   string `json:"error"`   // e.g. "not_found"
	Message string `json:"message"`
}

// maxBodyBytes caps request bodies. The largest legitimate body is a post
// with 1000 four-byte characters.
const maxBodyBytes = 64 << 10

// writeJSON sends data as JSON with the given status.
//
// HEADER ORDER MATTERS:
// Headers and status must be written before the body; once Encode writes,
// header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation   → 400 validation_error
//	ErrUnauthorized → 401 unauthorized
//	ErrForbidden    → 403 forbidden
//	ErrNotFound     → 404 not_found
//	ErrConflict     → 409 conflict
//	anything else   → 500 internal_error (ErrIO included)
//
// errors.Is walks the whole chain, so a service error wrapped as
// fmt.Errorf("service/post: ...: %w", apperror.New(...)) still maps correctly.
// Only *AppError messages reach the client; a 500 never leaks internals
// (file paths, SQL) and is logged instead.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, kind := http.StatusInternalServerError, "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, kind = http.StatusBadRequest, "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status, kind = http.StatusUnauthorized, "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status, kind = http.StatusForbidden, "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status, kind = http.StatusNotFound, "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status, kind = http.StatusConflict, "conflict"
		}

		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message})
			return
		}
	}

	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads the request body into dst. An empty body decodes as {}
// so a bare POST reports missing fields rather than bad JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}

// idParam returns the numeric URL parameter name, or 0 when it is missing
// or not a positive integer. Ids start at 1, so 0 always resolves to
// "not found" in the layers below.
func idParam(r *http.Request, name string) int64 {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// NotFound answers unknown routes with the standard error body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Not found"})
}

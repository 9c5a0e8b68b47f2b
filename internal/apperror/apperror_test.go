package apperror

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("post", "7"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("text", "Text must be 10-1000 characters"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "username alice"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("Not your post"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("Invalid credentials"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Unauthorized does NOT match ErrForbidden",
			err:       Unauthorized("Not logged in"),
			target:    ErrForbidden,
			wantMatch: false,
		},
		{
			name:      "wrapped NotFound still matches",
			err:       fmt.Errorf("service: %w", NotFound("post", "1")),
			target:    ErrNotFound,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("post", "42"),
			wantMessage: "post not found with id 42",
		},
		{
			name:        "Conflict message includes resource and key",
			err:         Conflict("user", "username alice"),
			wantMessage: "user conflict with username alice",
		},
		{
			name:        "Unauthorized uses custom message",
			err:         Unauthorized("Invalid credentials"),
			wantMessage: "Invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestIOKeepsBothChains(t *testing.T) {
	err := IO("jsonfile: loading", fs.ErrPermission)

	if !errors.Is(err, ErrIO) {
		t.Errorf("errors.Is(err, ErrIO) = false, want true")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("errors.Is(err, fs.ErrPermission) = false, want true")
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("reaction", "Reaction is required")

	if err.Field != "reaction" {
		t.Errorf("Field = %q, want %q", err.Field, "reaction")
	}
}

func TestNewUsesKindAndMessage(t *testing.T) {
	err := New(ErrNotFound, "Post not found")

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("errors.Is(err, ErrNotFound) = false, want true")
	}
	if err.Error() != "Post not found" {
		t.Errorf("Error() = %q, want %q", err.Error(), "Post not found")
	}
}

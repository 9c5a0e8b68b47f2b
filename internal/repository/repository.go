// Package repository declares the storage contracts used by the service layer.
//
// Two drivers implement them: repository/jsonfile (the whole-document JSON
// store) and repository/sqlite (a keyed record store). Every method is one
// atomic unit of work in both drivers, so a handler never needs to hold a
// lock across calls.
package repository

import (
	"context"

	"github.com/sakif/social-demo/internal/model"
)

type UserRepository interface {
	// Create assigns user.ID. Returns apperror.ErrConflict when the username
	// or the Google id is already taken.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	// Update rewrites name, profile image and verified flag.
	Update(ctx context.Context, user *model.User) error
}

type PostRepository interface {
	// Create assigns post.ID from a monotonic sequence; ids are never reused.
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	// List returns every post ordered by descending id.
	List(ctx context.Context) ([]model.Post, error)
	// Update writes title and text only. Reactions and comments are untouched.
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id int64) error
	AddReaction(ctx context.Context, postID int64, reaction model.Reaction) error
	// AddComment assigns comment.ID as max within the post + 1.
	AddComment(ctx context.Context, postID int64, comment *model.Comment) error
}

// Store bundles both repositories behind a single lifecycle.
type Store interface {
	Users() UserRepository
	Posts() PostRepository
	Close() error
}

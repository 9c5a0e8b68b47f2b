// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces ownership, joins data
//	Repository (data layer)  → reads/writes the JSON document or SQLite
//
// Services take repository interfaces, never a concrete store, so the same
// code runs against either driver and against the fakes in the tests.
//
// WHO IS CALLING?
// The logged-in identity is passed to every mutating method as an explicit
// model.SessionUser argument. Services never read it from ambient state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/social-demo/internal/apperror"
	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/repository"
)

// Text length bounds, counted in characters (runes), not bytes.
const (
	MinPostTextLength = 10
	MaxPostTextLength = 1000
)

const (
	msgTitleTextRequired = "Title and text are required"
	msgTextLength        = "Text must be 10-1000 characters"
	msgReactionRequired  = "Reaction is required"
	msgCommentRequired   = "Comment text is required"
	msgPostNotFound      = "Post not found"
	msgNotYourPost       = "Not your post"
)

// PostService handles posts, reactions and comments.
type PostService struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		users:  users,
		logger: logger,
	}
}

// CreatePostInput is the body of POST /api/posts.
type CreatePostInput struct {
	Title string `json:"title" validate:"required"`
	Text  string `json:"text" validate:"required,min=10,max=1000"`
}

// UpdatePostInput is the body of PUT /api/posts/{postId}. A nil field was
// not supplied and is left unchanged. A supplied text, even an empty one,
// must satisfy the length bounds.
type UpdatePostInput struct {
	Title *string `json:"title"`
	Text  *string `json:"text" validate:"omitnil,min=10,max=1000"`
}

// ReactInput is the body of POST /api/posts/{postId}/react.
type ReactInput struct {
	Reaction string `json:"reaction" validate:"required"`
}

// CommentInput is the body of POST /api/posts/{postId}/comments.
type CommentInput struct {
	Text string `json:"text" validate:"required"`
}

var postMessages = map[string]string{
	"Title.required": msgTitleTextRequired,
	"Text.required":  msgTitleTextRequired,
	"Text.min":       msgTextLength,
	"Text.max":       msgTextLength,
}

// List returns every post, newest id first, with raw reactions/comments.
func (s *PostService) List(ctx context.Context) ([]model.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts: %w", err)
	}
	return posts, nil
}

// Get returns a post joined with its author's name and image and with a
// username on every reaction and comment. Users that no longer resolve are
// shown as "Unknown" (and a nil author image).
func (s *PostService) Get(ctx context.Context, id int64) (*model.PostDetail, error) {
	post, err := s.getPost(ctx, id)
	if err != nil {
		return nil, err
	}

	lookup := s.userLookup(ctx)

	detail := &model.PostDetail{
		ID:         post.ID,
		AuthorID:   post.AuthorID,
		Title:      post.Title,
		Text:       post.Text,
		AuthorName: model.UnknownUsername,
		Reactions:  make([]model.ReactionDetail, 0, len(post.Reactions)),
		Comments:   make([]model.CommentDetail, 0, len(post.Comments)),
	}

	author, err := lookup(post.AuthorID)
	if err != nil {
		return nil, err
	}
	if author != nil {
		detail.AuthorName = author.Name
		image := author.ProfileImage
		detail.AuthorImage = &image
	}

	for _, r := range post.Reactions {
		name, err := usernameOf(lookup, r.UserID)
		if err != nil {
			return nil, err
		}
		detail.Reactions = append(detail.Reactions, model.ReactionDetail{
			UserID:   r.UserID,
			Username: name,
			Reaction: r.Reaction,
		})
	}

	for _, c := range post.Comments {
		name, err := usernameOf(lookup, c.UserID)
		if err != nil {
			return nil, err
		}
		detail.Comments = append(detail.Comments, model.CommentDetail{
			ID:       c.ID,
			Text:     c.Text,
			UserID:   c.UserID,
			Username: name,
		})
	}

	return detail, nil
}

// Create validates and stores a new post authored by actor.
func (s *PostService) Create(ctx context.Context, actor model.SessionUser, in CreatePostInput) (*model.Post, error) {
	if err := checkInput(in, postMessages); err != nil {
		return nil, err
	}

	post := &model.Post{
		AuthorID: actor.ID,
		Title:    in.Title,
		Text:     in.Text,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("postID", post.ID),
		slog.Int64("authorID", actor.ID),
	)
	return post, nil
}

// Update applies a partial edit. Checks run in this order: the post exists
// (404), actor is its author (403), the supplied text is valid (400).
func (s *PostService) Update(ctx context.Context, actor model.SessionUser, id int64, in UpdatePostInput) (*model.Post, error) {
	post, err := s.ownedPost(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if err := checkInput(in, postMessages); err != nil {
		return nil, err
	}

	if in.Title != nil {
		post.Title = *in.Title
	}
	if in.Text != nil {
		post.Text = *in.Text
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, s.postError(err, "updating", id)
	}

	s.logger.Info("post updated", slog.Int64("postID", id))
	return post, nil
}

// CheckOwner runs the first two Update checks alone: the post exists (404)
// and actor is its author (403). Handlers call it when the request body
// cannot be decoded, before reporting the decode error.
func (s *PostService) CheckOwner(ctx context.Context, actor model.SessionUser, id int64) error {
	_, err := s.ownedPost(ctx, actor, id)
	return err
}

// Delete removes a post owned by actor together with its reactions and
// comments.
func (s *PostService) Delete(ctx context.Context, actor model.SessionUser, id int64) error {
	if _, err := s.ownedPost(ctx, actor, id); err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return s.postError(err, "deleting", id)
	}

	s.logger.Info("post deleted", slog.Int64("postID", id))
	return nil
}

// React appends a reaction. The same user may react any number of times.
// The input is checked before the post is looked up.
func (s *PostService) React(ctx context.Context, actor model.SessionUser, postID int64, in ReactInput) error {
	if err := checkInput(in, map[string]string{"Reaction": msgReactionRequired}); err != nil {
		return err
	}

	err := s.posts.AddReaction(ctx, postID, model.Reaction{UserID: actor.ID, Reaction: in.Reaction})
	if err != nil {
		return s.postError(err, "reacting to", postID)
	}
	return nil
}

// Comment appends a comment and returns it with its per-post id.
func (s *PostService) Comment(ctx context.Context, actor model.SessionUser, postID int64, in CommentInput) (*model.Comment, error) {
	if err := checkInput(in, map[string]string{"Text": msgCommentRequired}); err != nil {
		return nil, err
	}

	comment := &model.Comment{UserID: actor.ID, Text: in.Text}
	if err := s.posts.AddComment(ctx, postID, comment); err != nil {
		return nil, s.postError(err, "commenting on", postID)
	}

	s.logger.Info("comment added",
		slog.Int64("postID", postID),
		slog.Int64("commentID", comment.ID),
	)
	return comment, nil
}

func (s *PostService) getPost(ctx context.Context, id int64) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, s.postError(err, "fetching", id)
	}
	return post, nil
}

func (s *PostService) ownedPost(ctx context.Context, actor model.SessionUser, id int64) (*model.Post, error) {
	post, err := s.getPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.ID {
		return nil, apperror.Forbidden(msgNotYourPost)
	}
	return post, nil
}

// postError gives a missing post the client-facing message and wraps
// everything else with context.
func (s *PostService) postError(err error, doing string, id int64) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.New(apperror.ErrNotFound, msgPostNotFound)
	}
	return fmt.Errorf("service/post: %s post %d: %w", doing, id, err)
}

// userLookup returns a memoised user resolver for one request. A missing
// user resolves to (nil, nil).
func (s *PostService) userLookup(ctx context.Context) func(id int64) (*model.User, error) {
	cache := make(map[int64]*model.User)
	return func(id int64) (*model.User, error) {
		if u, ok := cache[id]; ok {
			return u, nil
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				return nil, fmt.Errorf("service/post: resolving user %d: %w", id, err)
			}
			u = nil
		}
		cache[id] = u
		return u, nil
	}
}

func usernameOf(lookup func(int64) (*model.User, error), id int64) (string, error) {
	u, err := lookup(id)
	if err != nil {
		return "", err
	}
	if u == nil {
		return model.UnknownUsername, nil
	}
	return u.Username, nil
}

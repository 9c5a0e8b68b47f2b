package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/social-demo/internal/auth"
	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/service"
)

// PostHandler serves posts, reactions and comments.
//
// Write routes are mounted behind auth.RequireLogin, so the session user is
// always present in their request context.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// HandleList returns every post, newest id first, as stored.
//
// HTTP: GET /api/posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet returns one post with author and usernames joined in.
//
// HTTP: GET /api/posts/{postId}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	detail, err := h.posts.Get(r.Context(), idParam(r, "postId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleCreate creates a post authored by the session user.
//
// HTTP: POST /api/posts
// BODY: {"title": "...", "text": "10 to 1000 characters"}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.CreatePostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.posts.Create(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "post": post})
}

// HandleUpdate edits title and/or text of the caller's own post.
//
// HTTP: PUT /api/posts/{postId}
// BODY: {"title"?: "...", "text"?: "..."}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := idParam(r, "postId")

	// A body that does not decode is still answered 404/403 first.
	var in service.UpdatePostInput
	if decodeErr := decodeJSON(w, r, &in); decodeErr != nil {
		if err := h.posts.CheckOwner(r.Context(), actor(r), id); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeError(w, h.logger, decodeErr)
		return
	}

	post, err := h.posts.Update(r.Context(), actor(r), id, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "post": post})
}

// HandleDelete removes the caller's own post.
//
// HTTP: DELETE /api/posts/{postId}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), actor(r), idParam(r, "postId")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Post deleted"})
}

// HandleReact appends a reaction.
//
// HTTP: POST /api/posts/{postId}/react
// BODY: {"reaction": "👍"}
func (h *PostHandler) HandleReact(w http.ResponseWriter, r *http.Request) {
	var in service.ReactInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.posts.React(r.Context(), actor(r), idParam(r, "postId"), in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleComment appends a comment.
//
// HTTP: POST /api/posts/{postId}/comments
// BODY: {"text": "..."}
func (h *PostHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	var in service.CommentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comment, err := h.posts.Comment(r.Context(), actor(r), idParam(r, "postId"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "comment": comment})
}

// actor returns the session user put in the context by the auth middleware.
// On routes behind RequireLogin it is always present.
func actor(r *http.Request) model.SessionUser {
	user, _ := auth.SessionUserFromContext(r.Context())
	return user
}

package jsonfile

import (
	"context"
	"slices"
	"strconv"

	"github.com/sakif/social-demo/internal/apperror"
	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/repository"
)

type postRepo struct {
	store *Store
}

var _ repository.PostRepository = (*postRepo)(nil)

func (r *postRepo) Create(ctx context.Context, post *model.Post) error {
	return r.store.update(ctx, func(doc *Document) error {
		post.ID = doc.nextPostID()
		post.Reactions = []model.Reaction{}
		post.Comments = []model.Comment{}
		doc.Posts = append(doc.Posts, *post)
		return nil
	})
}

func (r *postRepo) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	var found *model.Post
	err := r.store.view(ctx, func(doc *Document) error {
		i := indexOfPost(doc, id)
		if i < 0 {
			return apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		p := doc.Posts[i]
		found = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// List returns the posts sorted by descending id. Stored order is insertion
// order, which is not guaranteed to be id order for hand-edited files.
func (r *postRepo) List(ctx context.Context) ([]model.Post, error) {
	var posts []model.Post
	err := r.store.view(ctx, func(doc *Document) error {
		posts = slices.Clone(doc.Posts)
		slices.SortFunc(posts, func(a, b model.Post) int {
			switch {
			case a.ID > b.ID:
				return -1
			case a.ID < b.ID:
				return 1
			}
			return 0
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Update copies title and text onto the stored post. Reactions and comments
// come from the freshly loaded document, not from the caller's copy.
func (r *postRepo) Update(ctx context.Context, post *model.Post) error {
	return r.store.update(ctx, func(doc *Document) error {
		i := indexOfPost(doc, post.ID)
		if i < 0 {
			return apperror.NotFound("post", strconv.FormatInt(post.ID, 10))
		}
		doc.Posts[i].Title = post.Title
		doc.Posts[i].Text = post.Text
		return nil
	})
}

func (r *postRepo) Delete(ctx context.Context, id int64) error {
	return r.store.update(ctx, func(doc *Document) error {
		i := indexOfPost(doc, id)
		if i < 0 {
			return apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		doc.Posts = slices.Delete(doc.Posts, i, i+1)
		return nil
	})
}

func (r *postRepo) AddReaction(ctx context.Context, postID int64, reaction model.Reaction) error {
	return r.store.update(ctx, func(doc *Document) error {
		i := indexOfPost(doc, postID)
		if i < 0 {
			return apperror.NotFound("post", strconv.FormatInt(postID, 10))
		}
		doc.Posts[i].Reactions = append(doc.Posts[i].Reactions, reaction)
		return nil
	})
}

func (r *postRepo) AddComment(ctx context.Context, postID int64, comment *model.Comment) error {
	return r.store.update(ctx, func(doc *Document) error {
		i := indexOfPost(doc, postID)
		if i < 0 {
			return apperror.NotFound("post", strconv.FormatInt(postID, 10))
		}
		comment.ID = doc.Posts[i].NextCommentID()
		doc.Posts[i].Comments = append(doc.Posts[i].Comments, *comment)
		return nil
	})
}

func indexOfPost(doc *Document, id int64) int {
	return slices.IndexFunc(doc.Posts, func(p model.Post) bool { return p.ID == id })
}

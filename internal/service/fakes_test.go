package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/sakif/social-demo/internal/apperror"
	"github.com/sakif/social-demo/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================
//
// Hand-written in-memory repositories. They copy on the way in and out so
// a test cannot accidentally mutate stored state through a pointer.

type fakeUserRepo struct {
	users  []model.User
	nextID int64

	// set to simulate a storage failure
	err error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.err != nil {
		return f.err
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", "username "+user.Username)
		}
		if user.GoogleID != nil && u.GoogleID != nil && *u.GoogleID == *user.GoogleID {
			return apperror.Conflict("user", "googleId "+*user.GoogleID)
		}
	}
	f.nextID++
	user.ID = f.nextID
	f.users = append(f.users, *user)
	return nil
}

func (f *fakeUserRepo) find(key string, match func(model.User) bool) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	return f.find(strconv.FormatInt(id, 10), func(u model.User) bool { return u.ID == id })
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(username, func(u model.User) bool { return u.Username == username })
}

func (f *fakeUserRepo) GetByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	return f.find(googleID, func(u model.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	if f.err != nil {
		return f.err
	}
	for i := range f.users {
		if f.users[i].ID == user.ID {
			f.users[i].Name = user.Name
			f.users[i].ProfileImage = user.ProfileImage
			f.users[i].Verified = user.Verified
			return nil
		}
	}
	return apperror.NotFound("user", strconv.FormatInt(user.ID, 10))
}

type fakePostRepo struct {
	posts  []model.Post
	nextID int64
	err    error
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{}
}

func (f *fakePostRepo) index(id int64) int {
	return slices.IndexFunc(f.posts, func(p model.Post) bool { return p.ID == id })
}

func notFoundPost(id int64) error {
	return apperror.NotFound("post", strconv.FormatInt(id, 10))
}

func (f *fakePostRepo) Create(_ context.Context, post *model.Post) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	post.ID = f.nextID
	post.Reactions = []model.Reaction{}
	post.Comments = []model.Comment{}
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakePostRepo) GetByID(_ context.Context, id int64) (*model.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := f.index(id)
	if i < 0 {
		return nil, notFoundPost(id)
	}
	p := f.posts[i]
	p.Reactions = slices.Clone(p.Reactions)
	p.Comments = slices.Clone(p.Comments)
	return &p, nil
}

func (f *fakePostRepo) List(_ context.Context) ([]model.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := slices.Clone(f.posts)
	slices.SortFunc(out, func(a, b model.Post) int { return int(b.ID - a.ID) })
	return out, nil
}

func (f *fakePostRepo) Update(_ context.Context, post *model.Post) error {
	i := f.index(post.ID)
	if i < 0 {
		return notFoundPost(post.ID)
	}
	f.posts[i].Title = post.Title
	f.posts[i].Text = post.Text
	return nil
}

func (f *fakePostRepo) Delete(_ context.Context, id int64) error {
	i := f.index(id)
	if i < 0 {
		return notFoundPost(id)
	}
	f.posts = slices.Delete(f.posts, i, i+1)
	return nil
}

func (f *fakePostRepo) AddReaction(_ context.Context, postID int64, r model.Reaction) error {
	i := f.index(postID)
	if i < 0 {
		return notFoundPost(postID)
	}
	f.posts[i].Reactions = append(f.posts[i].Reactions, r)
	return nil
}

func (f *fakePostRepo) AddComment(_ context.Context, postID int64, c *model.Comment) error {
	i := f.index(postID)
	if i < 0 {
		return notFoundPost(postID)
	}
	c.ID = f.posts[i].NextCommentID()
	f.posts[i].Comments = append(f.posts[i].Comments, *c)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

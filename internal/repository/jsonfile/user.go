package jsonfile

import (
	"context"
	"strconv"

	"github.com/sakif/social-demo/internal/apperror"
	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/repository"
)

type userRepo struct {
	store *Store
}

var _ repository.UserRepository = (*userRepo)(nil)

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.store.update(ctx, func(doc *Document) error {
		for _, existing := range doc.Users {
			if existing.Username == user.Username {
				return apperror.Conflict("user", "username "+user.Username)
			}
			if user.GoogleID != nil && existing.GoogleID != nil && *existing.GoogleID == *user.GoogleID {
				return apperror.Conflict("user", "googleId "+*user.GoogleID)
			}
		}

		user.ID = doc.nextUserID()
		doc.Users = append(doc.Users, UserRecord{
			ID:           user.ID,
			Username:     user.Username,
			Password:     user.Password,
			Name:         user.Name,
			ProfileImage: user.ProfileImage,
			Verified:     user.Verified,
			GoogleID:     user.GoogleID,
		})
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.find(ctx, strconv.FormatInt(id, 10), func(u UserRecord) bool { return u.ID == id })
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.find(ctx, username, func(u UserRecord) bool { return u.Username == username })
}

func (r *userRepo) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.find(ctx, googleID, func(u UserRecord) bool {
		return u.GoogleID != nil && *u.GoogleID == googleID
	})
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.store.update(ctx, func(doc *Document) error {
		for i := range doc.Users {
			if doc.Users[i].ID == user.ID {
				doc.Users[i].Name = user.Name
				doc.Users[i].ProfileImage = user.ProfileImage
				doc.Users[i].Verified = user.Verified
				return nil
			}
		}
		return apperror.NotFound("user", strconv.FormatInt(user.ID, 10))
	})
}

func (r *userRepo) find(ctx context.Context, key string, match func(UserRecord) bool) (*model.User, error) {
	var found *model.User
	err := r.store.view(ctx, func(doc *Document) error {
		for _, u := range doc.Users {
			if match(u) {
				found = u.toModel()
				return nil
			}
		}
		return apperror.NotFound("user", key)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// AUTHENTICATION BUSINESS LOGIC
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository
//	                   ↘ PasswordService (bcrypt)
//
// AuthService never touches cookies or sessions. It answers "who is this?"
// and the handler turns the answer into a session.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/social-demo/internal/apperror"
	"github.com/sakif/social-demo/internal/auth"
	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/repository"
)

const (
	msgMissingFields      = "Missing fields"
	msgUsernameTaken      = "Username taken"
	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"

	unnamedUser = "Unnamed"
)

// AuthService handles registration, login and account lookups.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		logger:    logger,
	}
}

// RegisterInput is the body of POST /api/register.
//
// Username and name are stored exactly as sent, so "bob" and " bob" are two
// accounts and Login must be given the same string. Whitespace-only values
// count as missing.
type RegisterInput struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,notblank"`
}

// Register creates an unverified local account.
//
// Local accounts start with verified=false and nothing in the HTTP API ever
// flips it; the `users verify` operator command is the only way. Until then
// RequireLogin answers 403 on every protected route.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if err := checkInput(in, map[string]string{
		"Username": msgMissingFields,
		"Password": msgMissingFields,
		"Name":     msgMissingFields,
	}); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		// The only input-dependent failure is bcrypt's 72-byte limit.
		return nil, apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
	}

	user := &model.User{
		Username:     in.Username,
		Password:     &hash,
		Name:         in.Name,
		ProfileImage: model.DefaultProfileImage,
		Verified:     false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.New(apperror.ErrConflict, msgUsernameTaken)
		}
		return nil, fmt.Errorf("service/auth: registering %q: %w", in.Username, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks local credentials.
//
// Unknown usernames, Google-only accounts (no password) and wrong passwords
// all produce the same 401 "Invalid credentials", and all pay for one bcrypt
// comparison so timing does not reveal which case occurred.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.VerifyDummy(password)
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	if user.Password == nil {
		_ = s.passwords.VerifyDummy(password)
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	if err := s.passwords.Verify(*user.Password, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unusable",
				slog.Int64("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return user, nil
}

// LoginWithGoogle resolves a Google profile to a local account, creating one
// on first sign-in.
//
// PROVISIONING RULES (first sign-in):
//   - verified=true straight away, no password
//   - name: the Google display name, or "Unnamed"
//   - username: the Google email; when it is missing or already used by
//     another account, googleUser<google id>@example.com
//   - profileImage: the Google picture, or the placeholder
//
// Returning users keep their record; only an empty name or profile image is
// filled in from Google.
func (s *AuthService) LoginWithGoogle(ctx context.Context, g *auth.GoogleUser) (*model.User, error) {
	if g == nil || g.ID == "" {
		return nil, fmt.Errorf("service/auth: Google profile must have an id")
	}

	existing, err := s.users.GetByGoogleID(ctx, g.ID)
	switch {
	case err == nil:
		return s.backfillGoogleProfile(ctx, existing, g)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up google id %s: %w", g.ID, err)
	}

	googleID := g.ID
	user := &model.User{
		Username:     g.Email,
		Name:         firstNonEmpty(g.Name, unnamedUser),
		ProfileImage: firstNonEmpty(g.Picture, model.DefaultProfileImage),
		Verified:     true,
		GoogleID:     &googleID,
	}

	if user.Username == "" || s.usernameTaken(ctx, user.Username) {
		user.Username = syntheticGoogleUsername(g.ID)
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: provisioning google user %s: %w", g.ID, err)
	}

	s.logger.Info("user provisioned via Google",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

func (s *AuthService) backfillGoogleProfile(ctx context.Context, user *model.User, g *auth.GoogleUser) (*model.User, error) {
	changed := false
	if user.Name == "" {
		user.Name = firstNonEmpty(g.Name, unnamedUser)
		changed = true
	}
	if user.ProfileImage == "" {
		user.ProfileImage = firstNonEmpty(g.Picture, model.DefaultProfileImage)
		changed = true
	}

	if changed {
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: backfilling user %d: %w", user.ID, err)
		}
	}

	s.logger.Info("user logged in via Google", slog.Int64("userID", user.ID))
	return user, nil
}

func (s *AuthService) usernameTaken(ctx context.Context, username string) bool {
	_, err := s.users.GetByUsername(ctx, username)
	return err == nil
}

// GetPublicProfile returns the public fields of a user.
func (s *AuthService) GetPublicProfile(ctx context.Context, id int64) (model.PublicProfile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return model.PublicProfile{}, apperror.New(apperror.ErrNotFound, msgUserNotFound)
		}
		return model.PublicProfile{}, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	return user.PublicProfile(), nil
}

// VerifyUser marks an account verified. It backs the operator CLI; no HTTP
// route calls it. Sessions opened before verification keep their old
// snapshot until the user logs in again.
func (s *AuthService) VerifyUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.New(apperror.ErrNotFound, msgUserNotFound)
		}
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	if user.Verified {
		return user, nil
	}

	user.Verified = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: verifying user %d: %w", id, err)
	}

	s.logger.Info("user verified", slog.Int64("userID", user.ID))
	return user, nil
}

func syntheticGoogleUsername(googleID string) string {
	return "googleUser" + googleID + "@example.com"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}


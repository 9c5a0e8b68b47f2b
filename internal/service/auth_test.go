package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/social-demo/internal/apperror"
	"github.com/sakif/social-demo/internal/auth"
	"github.com/sakif/social-demo/internal/model"
)

func newTestAuthService(repo *fakeUserRepo) *AuthService {
	return NewAuthService(repo, auth.NewPasswordServiceForTest(bcrypt.MinCost), discardLogger())
}

func strPtr(s string) *string { return &s }

// =========================================================================
// Register
// =========================================================================

func TestRegister_CreatesUnverifiedUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	user, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "pw", Name: "Alice"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if user.ID == 0 {
		t.Error("Register() should assign an id")
	}
	if user.Verified {
		t.Error("local accounts must start unverified")
	}
	if user.ProfileImage != model.DefaultProfileImage {
		t.Errorf("ProfileImage = %q, want placeholder", user.ProfileImage)
	}
	if user.Password == nil || *user.Password == "pw" || !strings.HasPrefix(*user.Password, "$2") {
		t.Error("password must be stored as a bcrypt hash")
	}
}

func TestRegister_MissingFields(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())

	inputs := []RegisterInput{
		{Password: "pw", Name: "A"},
		{Username: "a", Name: "A"},
		{Username: "a", Password: "pw"},
		{Username: "   ", Password: "pw", Name: "A"},
		{Username: "a", Password: "pw", Name: "\t\n"},
	}
	for _, in := range inputs {
		_, err := svc.Register(context.Background(), in)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("Register(%+v) error = %v, want ErrValidation", in, err)
			continue
		}
		if err.Error() != "Missing fields" {
			t.Errorf("message = %q, want %q", err.Error(), "Missing fields")
		}
	}
}

func TestRegister_DuplicateUsernameIsConflict(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "pw", Name: "A"}); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "other", Name: "B"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Register() error = %v, want ErrConflict", err)
	}
	if err.Error() != "Username taken" {
		t.Errorf("message = %q, want %q", err.Error(), "Username taken")
	}
}

func TestRegister_PasswordTooLong(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), RegisterInput{Username: "a", Password: strings.Repeat("x", 73), Name: "A"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// Login
// =========================================================================

func TestLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "secret", Name: "Alice"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// A Google-only account has no password at all.
	_ = repo.Create(ctx, &model.User{Username: "g@example.com", Name: "G", GoogleID: strPtr("g-1"), Verified: true})

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"correct", "alice", "secret", false},
		{"wrong password", "alice", "nope", true},
		{"unknown user", "bob", "secret", true},
		{"google-only account", "g@example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Login(ctx, tt.username, tt.password)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Login() error = %v", err)
				}
				if user.Username != tt.username {
					t.Errorf("Username = %q, want %q", user.Username, tt.username)
				}
				return
			}
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
			}
			if err.Error() != "Invalid credentials" {
				t.Errorf("message = %q, want %q", err.Error(), "Invalid credentials")
			}
		})
	}
}

func TestRegisterThenLogin_UsernameKeptVerbatim(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	ctx := context.Background()

	spaced, err := svc.Register(ctx, RegisterInput{Username: "carol ", Password: "secret", Name: " Carol "})
	if err != nil {
		t.Fatalf("Register(%q) error = %v", "carol ", err)
	}
	if spaced.Username != "carol " || spaced.Name != " Carol " {
		t.Errorf("stored username/name = %q/%q, want them unchanged", spaced.Username, spaced.Name)
	}

	user, err := svc.Login(ctx, "carol ", "secret")
	if err != nil {
		t.Fatalf("Login(%q) error = %v", "carol ", err)
	}
	if user.ID != spaced.ID {
		t.Errorf("Login() returned user %d, want %d", user.ID, spaced.ID)
	}

	if _, err := svc.Login(ctx, "carol", "secret"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login(%q) error = %v, want ErrUnauthorized", "carol", err)
	}

	// The unspaced name is a different account.
	plain, err := svc.Register(ctx, RegisterInput{Username: "carol", Password: "other", Name: "Carol"})
	if err != nil {
		t.Fatalf("Register(%q) error = %v", "carol", err)
	}
	if plain.ID == spaced.ID {
		t.Error("\"carol\" and \"carol \" must be separate accounts")
	}
}

func TestLogin_StorageErrorIsNotUnauthorized(t *testing.T) {
	repo := newFakeUserRepo()
	repo.err = apperror.IO("fake: reading", errors.New("disk gone"))
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), "alice", "pw")
	if !errors.Is(err, apperror.ErrIO) {
		t.Errorf("Login() error = %v, want ErrIO", err)
	}
}

// =========================================================================
// LoginWithGoogle
// =========================================================================

func TestLoginWithGoogle_ProvisionsVerifiedUser(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())

	user, err := svc.LoginWithGoogle(context.Background(), &auth.GoogleUser{
		ID: "sub-1", Email: "ann@example.com", Name: "Ann", Picture: "http://img/ann.png",
	})
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}

	if !user.Verified {
		t.Error("Google accounts must be verified immediately")
	}
	if user.Password != nil {
		t.Error("Google accounts must not have a password")
	}
	if user.Username != "ann@example.com" || user.Name != "Ann" || user.ProfileImage != "http://img/ann.png" {
		t.Errorf("unexpected profile: %+v", user)
	}
	if user.GoogleID == nil || *user.GoogleID != "sub-1" {
		t.Errorf("GoogleID = %v, want sub-1", user.GoogleID)
	}
}

func TestLoginWithGoogle_Defaults(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())

	user, err := svc.LoginWithGoogle(context.Background(), &auth.GoogleUser{ID: "42"})
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}

	if user.Name != "Unnamed" {
		t.Errorf("Name = %q, want Unnamed", user.Name)
	}
	if user.Username != "googleUser42@example.com" {
		t.Errorf("Username = %q, want googleUser42@example.com", user.Username)
	}
	if user.ProfileImage != model.DefaultProfileImage {
		t.Errorf("ProfileImage = %q, want placeholder", user.ProfileImage)
	}
}

func TestLoginWithGoogle_EmailCollidesWithLocalUsername(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "ann@example.com", Password: "pw", Name: "Local Ann"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	user, err := svc.LoginWithGoogle(ctx, &auth.GoogleUser{ID: "7", Email: "ann@example.com", Name: "Ann"})
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}
	if user.Username != "googleUser7@example.com" {
		t.Errorf("Username = %q, want the synthetic fallback", user.Username)
	}
}

func TestLoginWithGoogle_ReturningUserIsReusedAndBackfilled(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	_ = repo.Create(ctx, &model.User{Username: "old@example.com", GoogleID: strPtr("sub-9"), Verified: true})

	user, err := svc.LoginWithGoogle(ctx, &auth.GoogleUser{ID: "sub-9", Email: "new@example.com", Name: "New Name", Picture: "http://img"})
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}

	if user.ID != 1 || len(repo.users) != 1 {
		t.Fatalf("returning user should not be re-provisioned (id=%d, users=%d)", user.ID, len(repo.users))
	}
	if user.Username != "old@example.com" {
		t.Errorf("Username changed to %q; only empty fields are backfilled", user.Username)
	}
	stored, _ := repo.GetByID(ctx, 1)
	if stored.Name != "New Name" || stored.ProfileImage != "http://img" {
		t.Errorf("empty fields not backfilled: %+v", stored)
	}
}

func TestLoginWithGoogle_NilProfile(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	if _, err := svc.LoginWithGoogle(context.Background(), nil); err == nil {
		t.Fatal("LoginWithGoogle(nil) should fail")
	}
}

// =========================================================================
// Profiles and verification
// =========================================================================

func TestGetPublicProfile(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	ctx := context.Background()

	u, _ := svc.Register(ctx, RegisterInput{Username: "alice", Password: "pw", Name: "Alice"})

	profile, err := svc.GetPublicProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetPublicProfile() error = %v", err)
	}
	want := model.PublicProfile{ID: u.ID, Name: "Alice", Username: "alice", ProfileImage: model.DefaultProfileImage}
	if profile != want {
		t.Errorf("profile = %+v, want %+v", profile, want)
	}

	_, err = svc.GetPublicProfile(ctx, 999)
	if !errors.Is(err, apperror.ErrNotFound) || err.Error() != "User not found" {
		t.Errorf("missing user error = %v, want ErrNotFound %q", err, "User not found")
	}
}

func TestVerifyUser(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	ctx := context.Background()

	u, _ := svc.Register(ctx, RegisterInput{Username: "alice", Password: "pw", Name: "Alice"})

	verified, err := svc.VerifyUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("VerifyUser() error = %v", err)
	}
	if !verified.Verified {
		t.Error("VerifyUser() did not set Verified")
	}

	// Idempotent.
	if _, err := svc.VerifyUser(ctx, u.ID); err != nil {
		t.Errorf("second VerifyUser() error = %v", err)
	}

	if _, err := svc.VerifyUser(ctx, 404); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("VerifyUser(404) error = %v, want ErrNotFound", err)
	}
}

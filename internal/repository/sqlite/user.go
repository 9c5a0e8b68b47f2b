package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/social-demo/internal/apperror"
	"github.com/sakif/social-demo/internal/model"
	"github.com/sakif/social-demo/internal/repository"
)

// UserDB implements repository.UserRepository.
type UserDB struct {
	db *DB
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, username, password, name, profile_image, verified, google_id, created_at`

// Create inserts a new user and fills in user.ID and user.CreatedAt.
//
// The username / google_id checks run inside the same transaction as the
// INSERT so the caller gets a clean Conflict instead of a driver error.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	return u.db.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE username = ?`, user.Username,
		).Scan(&n); err != nil {
			return fmt.Errorf("sqlite: checking username: %w", err)
		}
		if n > 0 {
			return apperror.Conflict("user", "username "+user.Username)
		}

		if user.GoogleID != nil {
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM users WHERE google_id = ?`, *user.GoogleID,
			).Scan(&n); err != nil {
				return fmt.Errorf("sqlite: checking google_id: %w", err)
			}
			if n > 0 {
				return apperror.Conflict("user", "googleId "+*user.GoogleID)
			}
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password, name, profile_image, verified, google_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user.Username,
			user.Password,
			user.Name,
			user.ProfileImage,
			user.Verified,
			user.GoogleID,
			user.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return userConflict(err, user)
			}
			return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading user id: %w", err)
		}
		user.ID = id
		return nil
	})
}

// userConflict names the column a UNIQUE violation was raised on. SQLite
// reports it as "UNIQUE constraint failed: users.<column>".
func userConflict(err error, user *model.User) error {
	if strings.Contains(err.Error(), "users.google_id") && user.GoogleID != nil {
		return apperror.Conflict("user", "googleId "+*user.GoogleID)
	}
	return apperror.Conflict("user", "username "+user.Username)
}

// GetByID retrieves a user by id.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := u.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row, strconv.FormatInt(id, 10))
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := u.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row, username)
}

func (u *UserDB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	row := u.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID)
	return scanUser(row, googleID)
}

// Update rewrites the mutable profile fields. Username, password and
// google_id are immutable after creation.
func (u *UserDB) Update(ctx context.Context, user *model.User) error {
	result, err := u.db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, profile_image = ?, verified = ? WHERE id = ?`,
		user.Name,
		user.ProfileImage,
		user.Verified,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %d: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", strconv.FormatInt(user.ID, 10))
	}
	return nil
}

func scanUser(row *sql.Row, key string) (*model.User, error) {
	var (
		usr      model.User
		password sql.NullString
		googleID sql.NullString
	)
	err := row.Scan(
		&usr.ID,
		&usr.Username,
		&password,
		&usr.Name,
		&usr.ProfileImage,
		&usr.Verified,
		&googleID,
		&usr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}

	if password.Valid {
		usr.Password = &password.String
	}
	if googleID.Valid {
		usr.GoogleID = &googleID.String
	}
	return &usr, nil
}

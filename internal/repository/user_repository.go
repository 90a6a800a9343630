package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/altamontana/booking-api/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,password_hash,recovery_email,role FROM users WHERE username=? LIMIT 1",
		strings.TrimSpace(username)).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.RecoveryEmail, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,password_hash,recovery_email,role FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.RecoveryEmail, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// Update writes username, recovery email and password hash.  A username
// owned by another account returns ErrUsernameTaken.
func (r *UserRepo) Update(ctx context.Context, u model.User) error {
	var other uint64
	err := r.DB.QueryRowContext(ctx, "SELECT id FROM users WHERE username=? AND id<>? LIMIT 1", u.Username, u.ID).Scan(&other)
	if err == nil {
		return ErrUsernameTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username=?, recovery_email=?, password_hash=? WHERE id=?",
		u.Username, u.RecoveryEmail, u.PasswordHash, u.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrUsernameTaken
		}
		return err
	}
	return expectOne(res)
}

// Upsert inserts the user or, when the username exists, replaces its hash,
// email and role.  Used by the seed-admin command.
func (r *UserRepo) Upsert(ctx context.Context, u model.User) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, recovery_email, role) VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE password_hash=VALUES(password_hash), recovery_email=VALUES(recovery_email), role=VALUES(role)`,
		strings.TrimSpace(u.Username), u.PasswordHash, u.RecoveryEmail, u.Role)
	return err
}

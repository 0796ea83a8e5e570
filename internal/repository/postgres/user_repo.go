package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, username, pwd_hash, salt_auth, created_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, pwd_hash, salt_auth)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, u.PwdHash, u.SaltAuth)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id)
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Username, &u.PwdHash, &u.SaltAuth, &u.CreatedAt)
	switch {
	case err == nil:
		return &u, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, errs.ErrNotFound
	default:
		return nil, err
	}
}

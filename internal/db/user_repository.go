package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrUserNotFound = errors.New("user not found")
var ErrEmailExists = errors.New("email already exists")

// uniqueViolation is the postgres error code for unique-constraint failures.
const uniqueViolation = "23505"

type User struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	PasswordHash string
	ProfilePhoto string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	LastLogin    sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user. The unique constraint on email is the authoritative
// arbiter for the duplicate-email race: a concurrent insert between an
// existence check and this call still surfaces as ErrEmailExists.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, full_name, password_hash, profile_photo,
			is_active, is_staff, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.FullName, user.PasswordHash, user.ProfilePhoto,
		user.IsActive, user.IsStaff, user.IsSuperuser, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrEmailExists
		}
		return err
	}

	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = $1", email)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// UpdatePassword persists a new password hash. Every outstanding reset token
// is bound to the previous hash, so this also invalidates them.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`

	return r.exec(ctx, query, id, passwordHash)
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET last_login = $2, updated_at = NOW()
		WHERE id = $1
	`

	return r.exec(ctx, query, id, at)
}

func (r *UserRepository) UpdateProfilePhoto(ctx context.Context, id uuid.UUID, photoURL string) error {
	query := `
		UPDATE users
		SET profile_photo = $2, updated_at = NOW()
		WHERE id = $1
	`

	return r.exec(ctx, query, id, photoURL)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*User, error) {
	query := `
		SELECT id, email, full_name, password_hash, profile_photo,
			is_active, is_staff, is_superuser, last_login, created_at, updated_at
		FROM users
		WHERE ` + where

	user := &User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.ProfilePhoto,
		&user.IsActive, &user.IsStaff, &user.IsSuperuser, &user.LastLogin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for identities,
// including the single refresh-token digest each identity may hold.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, username, email, full_name, password_hash, avatar, cover_image,
        COALESCE(refresh_token_hash, ''), created_at, updated_at`

// Create persists a new user record. Duplicate usernames or emails yield ErrConflict.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, password_hash, avatar, cover_image, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Username, user.Email, user.FullName, user.Password, user.Avatar, user.CoverImage, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return translateWriteError("insert user", err)
	}

	return nil
}

// FindByID fetches a user by primary key.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "select user by id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsername fetches a user by their case-folded username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "select user by username", `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByLogin fetches a user whose username or email equals the case-folded login.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, login string) (models.User, error) {
	return r.findOne(ctx, "select user by login", `
        SELECT `+userColumns+`
        FROM users
        WHERE username = $1 OR email = $1
        LIMIT 1
    `, login)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, op, query string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var user models.User
	err = conn.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.Password,
		&user.Avatar, &user.CoverImage, &user.RefreshTokenHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, translateWriteError(op, err)
	}

	return user, nil
}

// UpdateDetails changes the full name and email of a user and returns the updated record.
func (r *PostgresUserRepository) UpdateDetails(ctx context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error) {
	return r.findOne(ctx, "update user details", `
        UPDATE users
        SET full_name = $2, email = $3, updated_at = $4
        WHERE id = $1
        RETURNING `+userColumns, id, fullName, email, updatedAt)
}

var imageColumns = map[models.ImageField]string{
	models.ImageAvatar:     "avatar",
	models.ImageCoverImage: "cover_image",
}

// UpdateImage points a profile image at location and returns the updated record together
// with the location it replaced.
func (r *PostgresUserRepository) UpdateImage(ctx context.Context, id string, field models.ImageField, location string, updatedAt time.Time) (models.User, string, error) {
	column, ok := imageColumns[field]
	if !ok {
		return models.User{}, "", fmt.Errorf("update image: unknown field %q", field)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		user     models.User
		previous string
	)
	err = conn.QueryRow(ctx, `
        WITH previous AS (
            SELECT `+column+` AS location FROM users WHERE id = $1 FOR UPDATE
        )
        UPDATE users
        SET `+column+` = $2, updated_at = $3
        FROM previous
        WHERE users.id = $1
        RETURNING `+userColumns+`, previous.location
    `, id, location, updatedAt).Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.Password,
		&user.Avatar, &user.CoverImage, &user.RefreshTokenHash, &user.CreatedAt, &user.UpdatedAt,
		&previous,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, "", ErrNotFound
		}
		return models.User{}, "", fmt.Errorf("update %s: %w", column, err)
	}

	return user, previous, nil
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, "update password", `
        UPDATE users
        SET password_hash = $2, updated_at = NOW()
        WHERE id = $1
    `, id, passwordHash)
}

// SaveRefreshToken overwrites whatever refresh-token digest the user holds.
func (r *PostgresUserRepository) SaveRefreshToken(ctx context.Context, id, digest string) error {
	return r.execOne(ctx, "save refresh token", `
        UPDATE users
        SET refresh_token_hash = $2
        WHERE id = $1
    `, id, digest)
}

// SwapRefreshToken replaces the stored digest only if it still equals previous.
// A lost race or a stale digest yields ErrStale.
func (r *PostgresUserRepository) SwapRefreshToken(ctx context.Context, id, previous, next string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token_hash = $3
        WHERE id = $1 AND refresh_token_hash = $2
    `, id, previous, next)
	if err != nil {
		return fmt.Errorf("swap refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}

	return nil
}

// ClearRefreshToken removes the stored digest so no refresh token is valid.
func (r *PostgresUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	return r.execOne(ctx, "clear refresh token", `
        UPDATE users
        SET refresh_token_hash = NULL
        WHERE id = $1
    `, id)
}

func (r *PostgresUserRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return translateWriteError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

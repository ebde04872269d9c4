package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Role      string
	Category  *string
	Avatar    *string
	CreatedAt time.Time
}

const userColumns = `id, email, name, role, category, avatar, created_at`

const getUserByEmailQuery = `
	SELECT ` + userColumns + `
	FROM users
	WHERE lower(email) = lower($1) AND deleted_at IS NULL`

const getUserByIDQuery = `
	SELECT ` + userColumns + `
	FROM users
	WHERE id = $1 AND deleted_at IS NULL`

const listUsersQuery = `
	SELECT ` + userColumns + `
	FROM users
	WHERE deleted_at IS NULL
	ORDER BY name ASC, email ASC`

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, getUserByEmailQuery, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, getUserByIDQuery, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, listUsersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.Category,
		&user.Avatar,
		&user.CreatedAt,
	)
	return user, err
}

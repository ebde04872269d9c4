package repository

import (
	"context"

	"github.com/google/uuid"
)

// UserReader is the read-only user surface auth depends on.
// Users are provisioned outside this service.
type UserReader interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// Ensure Repository implements UserReader
var _ UserReader = (*Repository)(nil)

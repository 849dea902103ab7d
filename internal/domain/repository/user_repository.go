package repository

import (
	"context"
	"errors"

	"github.com/adiprasetyo/playtube-backend/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when a unique constraint on username or email
	// rejects a write. The unique indexes are the correctness backstop for
	// concurrent registrations; callers must treat this as a conflict even
	// after a passing existence pre-check.
	ErrDuplicate = errors.New("username or email already taken")
)

// UserRepository defines the persistence operations for user records.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// GetByUsernameOrEmail matches either field; empty arguments never match.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error)
	// UpdateRefreshToken persists the current refresh token; an empty token
	// clears the session.
	UpdateRefreshToken(ctx context.Context, id, token string) error
}

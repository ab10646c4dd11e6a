package admin

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("system user not found")

// SystemUserRepository defines the persistence interface for system users.
type SystemUserRepository interface {
	// FindByRole returns one active user holding role, or ErrNotFound.
	FindByRole(ctx context.Context, role string) (*SystemUser, error)
}

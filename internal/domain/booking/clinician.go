package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/admin"
)

// ErrNoDefaultClinician means no user qualifies as owner of an
// auto-created patient.
var ErrNoDefaultClinician = errors.New("no default clinician available")

// ClinicianResolver chooses the clinician that owns patients created from
// booking events.
type ClinicianResolver interface {
	DefaultClinician(ctx context.Context) (uuid.UUID, error)
}

// RoleClinicianResolver picks an active user holding Role.
type RoleClinicianResolver struct {
	Users admin.SystemUserRepository
	Role  string
}

func NewRoleClinicianResolver(users admin.SystemUserRepository, role string) *RoleClinicianResolver {
	return &RoleClinicianResolver{Users: users, Role: role}
}

func (r *RoleClinicianResolver) DefaultClinician(ctx context.Context) (uuid.UUID, error) {
	u, err := r.Users.FindByRole(ctx, r.Role)
	if errors.Is(err, admin.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("%w: no active user with role %q", ErrNoDefaultClinician, r.Role)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return u.ID, nil
}

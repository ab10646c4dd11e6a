package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/db"
)

type userRepoPG struct {
	db db.Querier
}

func NewSystemUserRepo(q db.Querier) SystemUserRepository {
	return &userRepoPG{db: q}
}

const userColumns = `id, username, display_name, email, role, status, created_at, updated_at`

// FindByRole picks the oldest active user so repeated calls agree.
func (r *userRepoPG) FindByRole(ctx context.Context, role string) (*SystemUser, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM "system_user"
		WHERE role = $1 AND status = $2
		ORDER BY created_at, id
		LIMIT 1`, role, StatusActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find system user by role %q: %w", role, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*SystemUser, error) {
	var u SystemUser
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

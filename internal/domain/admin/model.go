package admin

import (
	"time"

	"github.com/google/uuid"
)

// RoleAdmin is the role DEFAULT_CLINICIAN_ROLE falls back to.
const RoleAdmin = "admin"

const StatusActive = "active"

// SystemUser maps to the system_user table. Only the columns the booking
// integration reads are mapped here.
type SystemUser struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName *string   `db:"display_name" json:"display_name,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Role        string    `db:"role" json:"role"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

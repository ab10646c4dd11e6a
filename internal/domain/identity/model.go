package identity

import (
	"time"

	"github.com/google/uuid"
)

// Gender values accepted on the patient table.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// Patient maps to the patient table. The clinic application owns further
// columns; only those written by the booking integration are mapped.
type Patient struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	FirstName          string    `db:"first_name" json:"first_name"`
	LastName           string    `db:"last_name" json:"last_name"`
	BirthDate          time.Time `db:"birth_date" json:"birth_date"`
	Gender             string    `db:"gender" json:"gender"`
	Phone              *string   `db:"phone" json:"phone,omitempty"`
	Email              *string   `db:"email" json:"email,omitempty"`
	BookingSystemID    *string   `db:"booking_system_id" json:"booking_system_id,omitempty"`
	BookingSystemEmail *string   `db:"booking_system_email" json:"booking_system_email,omitempty"`
	ClinicianID        uuid.UUID `db:"clinician_id" json:"clinician_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// HasBookingSystemID reports whether the patient is already linked to id.
func (p *Patient) HasBookingSystemID(id string) bool {
	return p.BookingSystemID != nil && *p.BookingSystemID == id
}

package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient not found")

// PatientRepository covers the patient lookups and writes made by the
// booking integration. Lookups return ErrNotFound when nothing matches.
type PatientRepository interface {
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	GetByBookingEmail(ctx context.Context, email string) (*Patient, error)
	GetByBookingSystemID(ctx context.Context, bookingID string) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	// AttachBookingSystemID links an existing patient to the booking system.
	AttachBookingSystemID(ctx context.Context, id uuid.UUID, bookingID, bookingEmail string) error
}

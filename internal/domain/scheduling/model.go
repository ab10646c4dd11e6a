package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses mirrored from the booking system.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Appointment is the local mirror of a booking-system appointment. It is
// keyed by BookingSystemAppointmentID and overwritten on every sync.
type Appointment struct {
	ID                         uuid.UUID `db:"id" json:"id"`
	PatientID                  uuid.UUID `db:"patient_id" json:"patient_id"`
	BookingSystemAppointmentID string    `db:"booking_system_appointment_id" json:"booking_system_appointment_id"`
	ScheduledAt                time.Time `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes            int       `db:"duration_minutes" json:"duration_minutes"`
	TherapistName              *string   `db:"therapist_name" json:"therapist_name,omitempty"`
	ServiceName                *string   `db:"service_name" json:"service_name,omitempty"`
	Status                     string    `db:"status" json:"status"`
	SyncedAt                   time.Time `db:"synced_at" json:"synced_at"`
	CreatedAt                  time.Time `db:"created_at" json:"created_at"`
}

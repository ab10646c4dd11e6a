package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/db"
)

type apptRepoPG struct {
	db db.Querier
}

func NewAppointmentRepo(q db.Querier) AppointmentRepository {
	return &apptRepoPG{db: q}
}

// UpsertByBookingID is last-write-wins: concurrent deliveries for the same
// booking id race, and whichever commits last is kept. The patient link is
// overwritten too, so a re-assigned appointment follows its new patient.
func (r *apptRepoPG) UpsertByBookingID(ctx context.Context, a *Appointment) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	var created bool
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointment (
			id, patient_id, booking_system_appointment_id, scheduled_at, duration_minutes,
			therapist_name, service_name, status, synced_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
		ON CONFLICT (booking_system_appointment_id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			scheduled_at = EXCLUDED.scheduled_at,
			duration_minutes = EXCLUDED.duration_minutes,
			therapist_name = EXCLUDED.therapist_name,
			service_name = EXCLUDED.service_name,
			status = EXCLUDED.status,
			synced_at = NOW()
		RETURNING id, synced_at, created_at, (xmax = 0)`,
		a.ID, a.PatientID, a.BookingSystemAppointmentID, a.ScheduledAt, a.DurationMinutes,
		a.TherapistName, a.ServiceName, a.Status,
	).Scan(&a.ID, &a.SyncedAt, &a.CreatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("appointment upsert %s: %w", a.BookingSystemAppointmentID, err)
	}
	return created, nil
}

package scheduling

import "context"

type AppointmentRepository interface {
	// UpsertByBookingID inserts a, or when the booking id already exists,
	// overwrites its mutable fields. It reports whether a row was created.
	UpsertByBookingID(ctx context.Context, a *Appointment) (created bool, err error)
}

package booking

import (
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/webhook"
)

// Deps are the collaborators of the booking event handlers.
type Deps struct {
	Patients     identity.PatientRepository
	Appointments scheduling.AppointmentRepository
	Clinicians   ClinicianResolver
	Logger       zerolog.Logger
}

// Register installs the booking event handlers on r. An appointment.cancelled
// event without a status is stored as cancelled; the other appointment events
// default to scheduled.
func Register(r *webhook.Router, d Deps) {
	r.Register(EventPatientCreated, NewPatientCreatedHandler(d.Patients, d.Clinicians, d.Logger))

	for eventType, status := range map[string]string{
		EventAppointmentCreated:   scheduling.StatusScheduled,
		EventAppointmentUpdated:   scheduling.StatusScheduled,
		EventAppointmentCancelled: scheduling.StatusCancelled,
	} {
		r.Register(eventType, NewAppointmentHandler(eventType, d.Patients, d.Appointments, status, d.Logger))
	}
}

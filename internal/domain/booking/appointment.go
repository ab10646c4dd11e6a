package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/webhook"
)

// AppointmentHandler mirrors appointment.* events into the appointment
// table. It never creates patients.
type AppointmentHandler struct {
	patients      identity.PatientRepository
	appointments  scheduling.AppointmentRepository
	defaultStatus string
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewAppointmentHandler builds a handler for one event type. defaultStatus
// applies when the payload omits status.
func NewAppointmentHandler(eventType string, patients identity.PatientRepository, appointments scheduling.AppointmentRepository, defaultStatus string, logger zerolog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		patients:      patients,
		appointments:  appointments,
		defaultStatus: defaultStatus,
		validate:      webhook.NewValidator(),
		logger:        logger.With().Str("event_type", eventType).Logger(),
	}
}

func (h *AppointmentHandler) Handle(ctx context.Context, raw json.RawMessage) webhook.Outcome {
	var p AppointmentPayload
	if details := decodePayload(h.validate, raw, &p); details != nil {
		return webhook.Invalid(details)
	}

	scheduledAt, err := time.Parse(dateTimeLayout, p.ScheduledAt)
	if err != nil {
		return webhook.Invalid(map[string][]string{"scheduled_at": {"Invalid format, expected RFC 3339 with offset."}})
	}

	patient, err := h.patients.GetByBookingSystemID(ctx, p.BookingPatientID)
	if errors.Is(err, identity.ErrNotFound) {
		return webhook.Failed("No patient with booking_patient_id %q; appointment %q not stored.",
			p.BookingPatientID, p.BookingAppointmentID)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("booking_patient_id", p.BookingPatientID).Msg("patient lookup failed")
		return webhook.Failed(msgStorageFailure)
	}

	status := p.Status
	if status == "" {
		status = h.defaultStatus
	}

	appt := &scheduling.Appointment{
		PatientID:                  patient.ID,
		BookingSystemAppointmentID: p.BookingAppointmentID,
		ScheduledAt:                scheduledAt.UTC(),
		DurationMinutes:            p.DurationMinutes,
		TherapistName:              nonEmpty(p.TherapistName),
		ServiceName:                nonEmpty(p.ServiceName),
		Status:                     status,
	}
	created, err := h.appointments.UpsertByBookingID(ctx, appt)
	if err != nil {
		h.logger.Error().Err(err).Str("booking_appointment_id", p.BookingAppointmentID).Msg("appointment upsert failed")
		return webhook.Failed(msgStorageFailure)
	}

	h.logger.Info().
		Str("booking_appointment_id", p.BookingAppointmentID).
		Str("appointment_id", appt.ID.String()).
		Str("status", status).
		Bool("created", created).
		Msg("appointment synced")
	return webhook.Success()
}

package booking

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/clinic/clinic/internal/platform/webhook"
)

// Event types sent by the booking system.
const (
	EventPatientCreated       = "patient.created"
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentUpdated   = "appointment.updated"
	EventAppointmentCancelled = "appointment.cancelled"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05Z07:00"
)

// PatientCreatedPayload uses the booking system's German field names.
type PatientCreatedPayload struct {
	BookingPatientID string  `json:"booking_patient_id" validate:"required,min=1"`
	Email            string  `json:"email" validate:"required,email"`
	Vorname          string  `json:"vorname" validate:"omitempty,max=100"`
	Nachname         string  `json:"nachname" validate:"omitempty,max=100"`
	Telefon          *string `json:"telefon" validate:"omitempty,max=30"`
	Geburtsdatum     *string `json:"geburtsdatum" validate:"omitempty,datetime=2006-01-02"`
	Geschlecht       string  `json:"geschlecht" validate:"omitempty,oneof=male female other unknown"`
}

type AppointmentPayload struct {
	BookingAppointmentID string  `json:"booking_appointment_id" validate:"required,min=1"`
	BookingPatientID     string  `json:"booking_patient_id" validate:"required,min=1"`
	ScheduledAt          string  `json:"scheduled_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes      int     `json:"duration_minutes" validate:"required,gt=0"`
	TherapistName        *string `json:"therapist_name" validate:"omitempty,max=200"`
	ServiceName          *string `json:"service_name" validate:"omitempty,max=200"`
	Status               string  `json:"status" validate:"omitempty,oneof=scheduled cancelled completed"`
}

// decodePayload unmarshals raw into dst and validates it. It returns nil when
// the payload is acceptable, otherwise field errors keyed by JSON name.
func decodePayload(v *validator.Validate, raw json.RawMessage, dst any) map[string][]string {
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return map[string][]string{
				typeErr.Field: {fmt.Sprintf("Incorrect type, expected %s.", typeErr.Type)},
			}
		}
		return map[string][]string{"non_field_errors": {"Malformed payload."}}
	}
	if err := v.Struct(dst); err != nil {
		return webhook.FieldErrors(err)
	}
	return nil
}

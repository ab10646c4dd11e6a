package booking

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/webhook"
)

// Placeholders for fields the booking system does not always send.
const placeholderName = "Unbekannt"

var placeholderBirthDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	msgStorageFailure   = "Storage error while processing event."
	msgReviewNewPatient = "Patient created from booking data; review manually for possible duplicates."
)

// PatientCreatedHandler links booking-system patients to local patients,
// creating one when no match by email exists.
type PatientCreatedHandler struct {
	patients   identity.PatientRepository
	clinicians ClinicianResolver
	validate   *validator.Validate
	logger     zerolog.Logger
}

func NewPatientCreatedHandler(patients identity.PatientRepository, clinicians ClinicianResolver, logger zerolog.Logger) *PatientCreatedHandler {
	return &PatientCreatedHandler{
		patients:   patients,
		clinicians: clinicians,
		validate:   webhook.NewValidator(),
		logger:     logger.With().Str("event_type", EventPatientCreated).Logger(),
	}
}

func (h *PatientCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) webhook.Outcome {
	var p PatientCreatedPayload
	if details := decodePayload(h.validate, raw, &p); details != nil {
		return webhook.Invalid(details)
	}

	existing, err := h.findByEmail(ctx, p.Email)
	if err != nil {
		h.logger.Error().Err(err).Str("booking_patient_id", p.BookingPatientID).Msg("patient lookup failed")
		return webhook.Failed(msgStorageFailure)
	}

	if existing != nil {
		if existing.HasBookingSystemID(p.BookingPatientID) {
			return webhook.Duplicate()
		}
		if err := h.patients.AttachBookingSystemID(ctx, existing.ID, p.BookingPatientID, p.Email); err != nil {
			h.logger.Error().Err(err).Str("patient_id", existing.ID.String()).Msg("attach booking id failed")
			return webhook.Failed(msgStorageFailure)
		}
		h.logger.Info().
			Str("patient_id", existing.ID.String()).
			Str("booking_patient_id", p.BookingPatientID).
			Msg("linked existing patient to booking system")
		return webhook.Success()
	}

	clinicianID, err := h.clinicians.DefaultClinician(ctx)
	if errors.Is(err, ErrNoDefaultClinician) {
		return webhook.Failed("Cannot create patient: %v.", err)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("default clinician lookup failed")
		return webhook.Failed(msgStorageFailure)
	}

	patient := newPatientFromPayload(&p, clinicianID)
	if err := h.patients.Create(ctx, patient); err != nil {
		h.logger.Error().Err(err).Str("booking_patient_id", p.BookingPatientID).Msg("patient create failed")
		return webhook.Failed(msgStorageFailure)
	}

	h.logger.Info().
		Str("patient_id", patient.ID.String()).
		Str("booking_patient_id", p.BookingPatientID).
		Msg("created patient from booking system")
	return webhook.Outcome{Status: webhook.StatusSuccess, Message: msgReviewNewPatient}
}

// findByEmail tries the primary email, then the booking email. It returns
// nil, nil when neither matches.
func (h *PatientCreatedHandler) findByEmail(ctx context.Context, email string) (*identity.Patient, error) {
	p, err := h.patients.GetByEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return nil, err
	}

	p, err = h.patients.GetByBookingEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, identity.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

func newPatientFromPayload(p *PatientCreatedPayload, clinicianID uuid.UUID) *identity.Patient {
	bookingID := p.BookingPatientID
	email := p.Email

	patient := &identity.Patient{
		FirstName:          orPlaceholder(p.Vorname),
		LastName:           orPlaceholder(p.Nachname),
		BirthDate:          placeholderBirthDate,
		Gender:             identity.GenderUnknown,
		Phone:              nonEmpty(p.Telefon),
		Email:              &email,
		BookingSystemID:    &bookingID,
		BookingSystemEmail: &email,
		ClinicianID:        clinicianID,
	}
	if p.Geschlecht != "" {
		patient.Gender = p.Geschlecht
	}
	if p.Geburtsdatum != nil {
		// Already validated against dateLayout.
		if d, err := time.Parse(dateLayout, *p.Geburtsdatum); err == nil {
			patient.BirthDate = d
		}
	}
	return patient
}

func orPlaceholder(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return placeholderName
	}
	return s
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

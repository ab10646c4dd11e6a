package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/db"
)

type patientRepoPG struct {
	db db.Querier
}

func NewPatientRepo(q db.Querier) PatientRepository {
	return &patientRepoPG{db: q}
}

const patientCols = `id, first_name, last_name, birth_date, gender, phone, email,
	booking_system_id, booking_system_email, clinician_id, created_at, updated_at`

func (r *patientRepoPG) getOne(ctx context.Context, column, value string) (*Patient, error) {
	p, err := scanPatient(r.db.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE `+column+` = $1 ORDER BY created_at, id LIMIT 1`, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient get by %s: %w", column, err)
	}
	return p, nil
}

func (r *patientRepoPG) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	return r.getOne(ctx, "email", email)
}

func (r *patientRepoPG) GetByBookingEmail(ctx context.Context, email string) (*Patient, error) {
	return r.getOne(ctx, "booking_system_email", email)
}

func (r *patientRepoPG) GetByBookingSystemID(ctx context.Context, bookingID string) (*Patient, error) {
	return r.getOne(ctx, "booking_system_id", bookingID)
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.db.QueryRow(ctx, `
		INSERT INTO patient (
			id, first_name, last_name, birth_date, gender, phone, email,
			booking_system_id, booking_system_email, clinician_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.Phone, p.Email,
		p.BookingSystemID, p.BookingSystemEmail, p.ClinicianID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	return nil
}

func (r *patientRepoPG) AttachBookingSystemID(ctx context.Context, id uuid.UUID, bookingID, bookingEmail string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE patient SET booking_system_id = $2, booking_system_email = $3, updated_at = NOW()
		WHERE id = $1`,
		id, bookingID, bookingEmail,
	)
	if err != nil {
		return fmt.Errorf("patient attach booking id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender, &p.Phone, &p.Email,
		&p.BookingSystemID, &p.BookingSystemEmail, &p.ClinicianID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

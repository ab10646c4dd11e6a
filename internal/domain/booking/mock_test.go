package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/admin"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/webhook"
)

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients map[uuid.UUID]*identity.Patient
	err      error
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*identity.Patient)}
}

func (m *mockPatientRepo) find(match func(*identity.Patient) bool) (*identity.Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.patients {
		if match(p) {
			return p, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (m *mockPatientRepo) GetByEmail(_ context.Context, email string) (*identity.Patient, error) {
	return m.find(func(p *identity.Patient) bool { return p.Email != nil && *p.Email == email })
}

func (m *mockPatientRepo) GetByBookingEmail(_ context.Context, email string) (*identity.Patient, error) {
	return m.find(func(p *identity.Patient) bool { return p.BookingSystemEmail != nil && *p.BookingSystemEmail == email })
}

func (m *mockPatientRepo) GetByBookingSystemID(_ context.Context, id string) (*identity.Patient, error) {
	return m.find(func(p *identity.Patient) bool { return p.HasBookingSystemID(id) })
}

func (m *mockPatientRepo) Create(_ context.Context, p *identity.Patient) error {
	if m.err != nil {
		return m.err
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) AttachBookingSystemID(_ context.Context, id uuid.UUID, bookingID, bookingEmail string) error {
	if m.err != nil {
		return m.err
	}
	p, ok := m.patients[id]
	if !ok {
		return identity.ErrNotFound
	}
	p.BookingSystemID = &bookingID
	p.BookingSystemEmail = &bookingEmail
	p.UpdatedAt = time.Now()
	return nil
}

func (m *mockPatientRepo) add(email, bookingID string) *identity.Patient {
	p := &identity.Patient{ID: uuid.New(), FirstName: "Max", LastName: "Muster", Gender: identity.GenderMale}
	if email != "" {
		p.Email = &email
	}
	if bookingID != "" {
		p.BookingSystemID = &bookingID
	}
	m.patients[p.ID] = p
	return p
}

// -- Mock Appointment Repository --

type mockAppointmentRepo struct {
	appointments map[string]*scheduling.Appointment
	err          error
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appointments: make(map[string]*scheduling.Appointment)}
}

func (m *mockAppointmentRepo) UpsertByBookingID(_ context.Context, a *scheduling.Appointment) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if existing, ok := m.appointments[a.BookingSystemAppointmentID]; ok {
		existing.PatientID = a.PatientID
		existing.ScheduledAt = a.ScheduledAt
		existing.DurationMinutes = a.DurationMinutes
		existing.TherapistName = a.TherapistName
		existing.ServiceName = a.ServiceName
		existing.Status = a.Status
		existing.SyncedAt = time.Now()
		a.ID = existing.ID
		return false, nil
	}
	a.ID = uuid.New()
	a.SyncedAt = time.Now()
	a.CreatedAt = a.SyncedAt
	cp := *a
	m.appointments[a.BookingSystemAppointmentID] = &cp
	return true, nil
}

// -- Mock System User Repository --

type mockUserRepo struct {
	users []*admin.SystemUser
	err   error
}

func (m *mockUserRepo) FindByRole(_ context.Context, role string) (*admin.SystemUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Role == role && u.Status == admin.StatusActive {
			return u, nil
		}
	}
	return nil, admin.ErrNotFound
}

func (m *mockUserRepo) addAdmin() *admin.SystemUser {
	u := &admin.SystemUser{ID: uuid.New(), Username: "praxis-admin", Role: admin.RoleAdmin, Status: admin.StatusActive}
	m.users = append(m.users, u)
	return u
}

// -- In-memory audit log --

type memAuditLog struct {
	mu     sync.Mutex
	events []*webhook.WebhookEvent
}

func (m *memAuditLog) Record(_ context.Context, ev *webhook.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memAuditLog) CountSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if !ev.ReceivedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

var errStorage = errors.New("connection reset by peer")

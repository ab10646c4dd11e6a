package scheduling

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

type stubQuerier struct {
	row     stubRow
	lastSQL string
	args    []any
}

func (q *stubQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not used")
}

func (q *stubQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (q *stubQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL, q.args = sql, args
	return q.row
}

func TestUpsertByBookingID_Insert(t *testing.T) {
	existing := uuid.New()
	now := time.Now()
	q := &stubQuerier{row: stubRow{vals: []any{existing, now, now, true}}}
	a := &Appointment{
		PatientID:                  uuid.New(),
		BookingSystemAppointmentID: "apt-1",
		ScheduledAt:                now.Add(24 * time.Hour),
		DurationMinutes:            45,
		Status:                     StatusScheduled,
	}

	created, err := NewAppointmentRepo(q).UpsertByBookingID(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true")
	}
	if a.ID != existing {
		t.Error("expected id from RETURNING")
	}
	if !strings.Contains(q.lastSQL, "ON CONFLICT (booking_system_appointment_id) DO UPDATE") {
		t.Errorf("expected upsert keyed by booking id, got %s", q.lastSQL)
	}
}

func TestUpsertByBookingID_Error(t *testing.T) {
	q := &stubQuerier{row: stubRow{err: errors.New("fk violation")}}
	_, err := NewAppointmentRepo(q).UpsertByBookingID(context.Background(), &Appointment{BookingSystemAppointmentID: "apt-2"})
	if err == nil || !strings.Contains(err.Error(), "apt-2") {
		t.Errorf("expected wrapped error naming the booking id, got %v", err)
	}
}

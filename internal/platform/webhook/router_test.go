package webhook

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRouter_DispatchesRegisteredHandler(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	var got json.RawMessage
	r.Register("patient.created", HandlerFunc(func(_ context.Context, p json.RawMessage) Outcome {
		got = p
		return Duplicate()
	}))

	out := r.Dispatch(context.Background(), &Envelope{EventType: "patient.created", Payload: json.RawMessage(`{"a":1}`)})
	if out.Status != StatusDuplicate {
		t.Errorf("expected duplicate, got %q", out.Status)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("expected payload to be passed through, got %s", got)
	}
}

func TestRouter_UnknownEventType(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	out := r.Dispatch(context.Background(), &Envelope{EventType: "invoice.paid", Payload: json.RawMessage(`{}`)})
	if out.Status != StatusError {
		t.Fatalf("expected error, got %q", out.Status)
	}
	if out.Message != "Unknown event type: invoice.paid" {
		t.Errorf("unexpected message %q", out.Message)
	}
}

func TestRouter_RecoversHandlerPanic(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	r.Register("boom", HandlerFunc(func(context.Context, json.RawMessage) Outcome {
		panic("nil map write")
	}))

	out := r.Dispatch(context.Background(), &Envelope{EventType: "boom", Payload: json.RawMessage(`{}`)})
	if out.Status != StatusError {
		t.Fatalf("expected error, got %q", out.Status)
	}
	if strings.Contains(out.Message, "nil map") {
		t.Error("panic value must not leak into the stored message")
	}
}

func TestRouter_EmptyOutcomeIsError(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	r.Register("noop", HandlerFunc(func(context.Context, json.RawMessage) Outcome { return Outcome{} }))

	out := r.Dispatch(context.Background(), &Envelope{EventType: "noop", Payload: json.RawMessage(`{}`)})
	if out.Status != StatusError {
		t.Errorf("expected error, got %q", out.Status)
	}
}

func TestRouter_DuplicateRegistrationPanics(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	h := HandlerFunc(func(context.Context, json.RawMessage) Outcome { return Success() })
	r.Register("a", h)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Register("a", h)
}

func TestRouter_EventTypes(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	h := HandlerFunc(func(context.Context, json.RawMessage) Outcome { return Success() })
	r.Register("b", h)
	r.Register("a", h)

	types := r.EventTypes()
	if len(types) != 2 || types[0] != "a" || types[1] != "b" {
		t.Errorf("unexpected event types %v", types)
	}
	if !r.Has("a") || r.Has("c") {
		t.Error("Has returned unexpected result")
	}
}

func TestOutcome_AuditMessage(t *testing.T) {
	if msg := Success().AuditMessage(); msg != "" {
		t.Errorf("expected empty message for success, got %q", msg)
	}
	if msg := Failed("Patient %s not found.", "p-1").AuditMessage(); msg != "Patient p-1 not found." {
		t.Errorf("unexpected message %q", msg)
	}
	msg := Invalid(map[string][]string{"email": {"Enter a valid email address."}}).AuditMessage()
	if !strings.HasPrefix(msg, "Invalid payload.") || !strings.Contains(msg, `"email"`) {
		t.Errorf("expected field details in message, got %q", msg)
	}
}

package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
)

// Outcome is what an EventHandler reports back to the pipeline. It is
// recorded in the audit log and never turned into an HTTP error.
type Outcome struct {
	Status  string
	Message string
	Details map[string][]string
}

func Success() Outcome   { return Outcome{Status: StatusSuccess} }
func Duplicate() Outcome { return Outcome{Status: StatusDuplicate} }

// Failed reports a handler-level error with a message safe to store.
func Failed(format string, args ...any) Outcome {
	return Outcome{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Invalid reports a payload that failed its event schema.
func Invalid(details map[string][]string) Outcome {
	return Outcome{Status: StatusError, Message: "Invalid payload.", Details: details}
}

// AuditMessage is the text stored in error_message, or "" for none.
func (o Outcome) AuditMessage() string {
	if len(o.Details) == 0 {
		return o.Message
	}
	b, err := json.Marshal(o.Details)
	if err != nil {
		return o.Message
	}
	return o.Message + " " + string(b)
}

// EventHandler applies one event type. Handlers must be idempotent.
type EventHandler interface {
	Handle(ctx context.Context, payload json.RawMessage) Outcome
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) Outcome

func (f HandlerFunc) Handle(ctx context.Context, payload json.RawMessage) Outcome {
	return f(ctx, payload)
}

// Router maps event types to handlers. Registration happens at startup;
// Dispatch only reads the table.
type Router struct {
	handlers map[string]EventHandler
	logger   zerolog.Logger
}

func NewRouter(logger zerolog.Logger) *Router {
	return &Router{handlers: make(map[string]EventHandler), logger: logger}
}

func (r *Router) Register(eventType string, h EventHandler) {
	if _, exists := r.handlers[eventType]; exists {
		panic(fmt.Sprintf("webhook: handler for %q registered twice", eventType))
	}
	r.handlers[eventType] = h
}

// EventTypes lists the registered event types in sorted order.
func (r *Router) EventTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispatch runs the handler for env.EventType. Unknown types and handler
// panics become error outcomes.
func (r *Router) Dispatch(ctx context.Context, env *Envelope) (out Outcome) {
	h, ok := r.handlers[env.EventType]
	if !ok {
		return Failed("Unknown event type: %s", env.EventType)
	}

	defer func() {
		if rec := recover(); rec != nil {
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			r.logger.Error().
				Str("event_type", env.EventType).
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("stack", string(stack[:n])).
				Msg("webhook handler panicked")
			out = Failed("Internal error while processing event.")
		}
	}()

	out = h.Handle(ctx, env.Payload)
	if out.Status == "" {
		out = Failed("Handler returned no status.")
	}
	return out
}

// Has reports whether eventType has a registered handler.
func (r *Router) Has(eventType string) bool {
	_, ok := r.handlers[eventType]
	return ok
}

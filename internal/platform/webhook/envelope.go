package webhook

import (
	"encoding/json"
	"net/http"
	"unicode/utf8"
)

const maxEventTypeLen = 100

// Envelope is the {event_type, payload} wrapper shared by all events. Payload
// keeps the exact JSON object so handlers can decode their own schema.
type Envelope struct {
	EventType string
	Payload   json.RawMessage
}

// EnvelopeError is a pipeline rejection raised before anything is audited.
type EnvelopeError struct {
	Status  int
	Message string
	Details map[string][]string
}

func (e *EnvelopeError) Error() string { return e.Message }

var errInvalidJSON = &EnvelopeError{Status: http.StatusBadRequest, Message: "Invalid JSON body."}

func invalidEnvelope(details map[string][]string) *EnvelopeError {
	return &EnvelopeError{
		Status:  http.StatusUnprocessableEntity,
		Message: "Invalid webhook envelope.",
		Details: details,
	}
}

// ParseEnvelope parses raw as JSON and checks the envelope shape. Unparsable
// input, including bytes that are not UTF-8, yields a 400 error; well-formed
// JSON of the wrong shape yields 422 with per-field details.
func ParseEnvelope(raw []byte) (*Envelope, *EnvelopeError) {
	if !utf8.Valid(raw) || !json.Valid(raw) {
		return nil, errInvalidJSON
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, invalidEnvelope(map[string][]string{
			"non_field_errors": {"Expected a JSON object."},
		})
	}

	details := map[string][]string{}
	env := &Envelope{}

	switch rawType, ok := fields["event_type"]; {
	case !ok || isNull(rawType):
		details["event_type"] = []string{"This field is required."}
	default:
		if err := json.Unmarshal(rawType, &env.EventType); err != nil {
			details["event_type"] = []string{"Not a valid string."}
		} else if env.EventType == "" {
			details["event_type"] = []string{"This field may not be blank."}
		} else if len([]rune(env.EventType)) > maxEventTypeLen {
			details["event_type"] = []string{"Ensure this field has no more than 100 characters."}
		}
	}

	switch rawPayload, ok := fields["payload"]; {
	case !ok || isNull(rawPayload):
		details["payload"] = []string{"This field is required."}
	default:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(rawPayload, &obj); err != nil {
			details["payload"] = []string{"Expected a JSON object."}
		} else {
			env.Payload = rawPayload
		}
	}

	if len(details) > 0 {
		return nil, invalidEnvelope(details)
	}
	return env, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

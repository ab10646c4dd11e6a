package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

type memAuditLog struct {
	mu      sync.Mutex
	events  []*WebhookEvent
	failRec error
	failCnt error

	// rejectNUL refuses rows holding a NUL character, as a JSONB column does.
	rejectNUL bool
}

func (m *memAuditLog) Record(_ context.Context, ev *WebhookEvent) error {
	if m.failRec != nil {
		return m.failRec
	}
	if m.rejectNUL && (strings.ContainsRune(ev.EventType, 0) || payloadHasNUL(ev.Payload)) {
		return errors.New("unsupported Unicode escape sequence")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memAuditLog) CountSince(_ context.Context, since time.Time) (int, error) {
	if m.failCnt != nil {
		return 0, m.failCnt
	}
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

func (m *memAuditLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memAuditLog) last() *WebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

type fakeSecretStore struct {
	secret string
	err    error
}

func (f *fakeSecretStore) SigningSecret(context.Context) (string, error) {
	return f.secret, f.err
}

func (f *fakeSecretStore) SetSigningSecret(_ context.Context, secret string) error {
	if secret == "" {
		return errors.New("empty")
	}
	f.secret = secret
	return nil
}

func payloadHasNUL(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	return valueHasNUL(v)
}

func valueHasNUL(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.ContainsRune(t, 0)
	case []any:
		for _, e := range t {
			if valueHasNUL(e) {
				return true
			}
		}
	case map[string]any:
		for k, e := range t {
			if strings.ContainsRune(k, 0) || valueHasNUL(e) {
				return true
			}
		}
	}
	return false
}

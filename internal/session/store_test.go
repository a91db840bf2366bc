package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/orttech/egeoffrey-sdk/internal/envelope"
)

// recordingLogger captures warnings for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordingLogger) Debug(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warnings)
}

// replyTo builds the reply an answering module would send back for request.
func replyTo(t *testing.T, request *envelope.Envelope) *envelope.Envelope {
	t.Helper()
	payload, err := request.Payload()
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	reply, err := envelope.Parse("egeoffrey/v1/house1/controller/db/system/monitor/GET/sensors", payload, false)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return reply
}

func TestRestore_ExactlyOnce(t *testing.T) {
	logger := &recordingLogger{}
	store := New(WithLogger(logger))

	request := envelope.NewFrom("house1", "system/monitor")
	id := store.Register(request, "chart:living")
	if id != request.CorrelationID() {
		t.Errorf("Register() = %d, want %d", id, request.CorrelationID())
	}

	reply := replyTo(t, request)
	if !store.IsRegistered(reply) {
		t.Error("IsRegistered() = false, want true")
	}

	value, ok := store.Restore(reply)
	if !ok {
		t.Fatal("Restore() ok = false, want true")
	}
	if value != "chart:living" {
		t.Errorf("Restore() = %v, want %q", value, "chart:living")
	}

	value, ok = store.Restore(reply)
	if ok || value != nil {
		t.Errorf("second Restore() = %v, %v, want nil, false", value, ok)
	}
	if logger.count() != 1 {
		t.Errorf("warnings = %d, want 1", logger.count())
	}
}

func TestRegister_WithoutRequestID(t *testing.T) {
	store := New()

	e, err := envelope.Parse("egeoffrey/v1/house1/controller/db/system/monitor/GET/x", []byte(`{"data":{}}`), false)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if id := store.Register(e, "ignored"); id != 0 {
		t.Errorf("Register() = %d, want 0", id)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
	if _, ok := store.Restore(e); ok {
		t.Error("Restore() ok = true, want false")
	}
}

func TestWithMaxEntries_EvictsOldest(t *testing.T) {
	store := New(WithMaxEntries(2))

	requests := make([]*envelope.Envelope, 0, 3)
	for len(requests) < 3 {
		e := envelope.NewFrom("house1", "system/monitor")
		duplicate := false
		for _, r := range requests {
			if r.CorrelationID() == e.CorrelationID() {
				duplicate = true
			}
		}
		if duplicate {
			continue
		}
		requests = append(requests, e)
	}

	for i, r := range requests {
		store.Register(r, fmt.Sprintf("ctx-%d", i))
	}

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	if store.IsRegistered(requests[0]) {
		t.Error("oldest session still registered")
	}
	if !store.IsRegistered(requests[2]) {
		t.Error("newest session not registered")
	}
}

func TestWithTTL_Expires(t *testing.T) {
	store := New(WithTTL(time.Minute))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	request := envelope.NewFrom("house1", "system/monitor")
	store.Register(request, "ctx")

	now = now.Add(30 * time.Second)
	if !store.IsRegistered(request) {
		t.Fatal("session expired too early")
	}

	now = now.Add(time.Minute)
	if _, ok := store.Restore(request); ok {
		t.Error("Restore() ok = true after TTL, want false")
	}
}

func TestCancel(t *testing.T) {
	store := New()
	request := envelope.NewFrom("house1", "system/monitor")
	id := store.Register(request, "ctx")

	if !store.Cancel(id) {
		t.Error("Cancel() = false, want true")
	}
	if store.Cancel(id) {
		t.Error("second Cancel() = true, want false")
	}
	if store.IsRegistered(request) {
		t.Error("IsRegistered() = true after Cancel")
	}
}

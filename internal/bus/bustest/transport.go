// Package bustest provides an in-memory bus.Transport for tests.
package bustest

import (
	"context"
	"slices"
	"sync"

	"github.com/orttech/egeoffrey-sdk/internal/bus"
)

// Transport operations recorded in Call.Op.
const (
	OpConnect     = "connect"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPublish     = "publish"
	OpDisconnect  = "disconnect"
)

// Call is one recorded transport operation.
type Call struct {
	Op       string
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Transport records every call and lets tests drive the bus events.
// Connect succeeds immediately and reports the connection synchronously
// unless ConnectErr is set.
type Transport struct {
	mu        sync.Mutex
	calls     []Call
	connected bool
	events    bus.Events
	options   bus.ConnectOptions

	// ConnectErr is returned by Connect when set.
	ConnectErr error

	// PublishErr is returned by Publish when set.
	PublishErr error

	// PublishHook, when set, runs before each publish is recorded. A non-nil
	// error is returned to the caller and the publish is not recorded. The
	// hook runs without the transport lock held, so it may call Sever.
	PublishHook func(topic string) error
}

// New returns a disconnected transport.
func New() *Transport {
	return &Transport{}
}

// Connect implements bus.Transport.
func (t *Transport) Connect(_ context.Context, opts bus.ConnectOptions, events bus.Events) error {
	t.mu.Lock()
	t.calls = append(t.calls, Call{Op: OpConnect})
	t.options = opts
	t.events = events
	if t.ConnectErr != nil {
		err := t.ConnectErr
		t.mu.Unlock()
		return err
	}
	t.connected = true
	t.mu.Unlock()

	events.HandleConnect()
	return nil
}

// Subscribe implements bus.Transport.
func (t *Transport) Subscribe(pattern string, qos byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return bus.ErrNotConnected
	}
	t.calls = append(t.calls, Call{Op: OpSubscribe, Topic: pattern, QoS: qos})
	return nil
}

// Unsubscribe implements bus.Transport.
func (t *Transport) Unsubscribe(pattern string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return bus.ErrNotConnected
	}
	t.calls = append(t.calls, Call{Op: OpUnsubscribe, Topic: pattern})
	return nil
}

// Publish implements bus.Transport.
func (t *Transport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return bus.ErrNotConnected
	}
	if t.PublishErr != nil {
		err := t.PublishErr
		t.mu.Unlock()
		return err
	}
	hook := t.PublishHook
	t.mu.Unlock()

	if hook != nil {
		if err := hook(topic); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{
		Op:       OpPublish,
		Topic:    topic,
		Payload:  slices.Clone(payload),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

// Sever marks the transport disconnected without telling the client, the
// way a socket dies before the broker library notices.
func (t *Transport) Sever() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
}

// SetPublishHook replaces PublishHook under the transport lock.
func (t *Transport) SetPublishHook(hook func(topic string) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.PublishHook = hook
}

// Disconnect implements bus.Transport.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.calls = append(t.calls, Call{Op: OpDisconnect})
}

// IsConnected implements bus.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Options returns the options passed to the last Connect.
func (t *Transport) Options() bus.ConnectOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.options
}

// Deliver feeds an inbound message to the client.
func (t *Transport) Deliver(topic, payload string) {
	t.DeliverRetained(topic, payload, false)
}

// DeliverRetained feeds an inbound message with the retained flag set as given.
func (t *Transport) DeliverRetained(topic, payload string, retained bool) {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()
	if events != nil {
		events.HandleMessage(topic, []byte(payload), retained)
	}
}

// Drop simulates an unexpected connection loss.
func (t *Transport) Drop(err error) {
	t.mu.Lock()
	t.connected = false
	events := t.events
	t.mu.Unlock()
	if events != nil {
		events.HandleConnectionLost(err)
	}
}

// Reconnect simulates the transport re-establishing the connection.
func (t *Transport) Reconnect() {
	t.mu.Lock()
	t.connected = true
	events := t.events
	t.mu.Unlock()
	if events != nil {
		events.HandleConnect()
	}
}

// Calls returns every recorded call in order.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.calls)
}

// Published returns the recorded publishes in order.
func (t *Transport) Published() []Call {
	return t.filter(OpPublish)
}

// Subscribed returns the recorded subscription patterns in order.
func (t *Transport) Subscribed() []string {
	var patterns []string
	for _, c := range t.filter(OpSubscribe) {
		patterns = append(patterns, c.Topic)
	}
	return patterns
}

// Reset forgets the recorded calls.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
}

func (t *Transport) filter(op string) []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Call
	for _, c := range t.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

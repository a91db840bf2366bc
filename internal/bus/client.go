package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/orttech/egeoffrey-sdk/internal/envelope"
	"github.com/orttech/egeoffrey-sdk/internal/topic"
)

// State is the connection state of a Client.
type State int

// Client connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler receives generic messages once the module is configured.
type MessageHandler interface {
	OnMessage(e *envelope.Envelope) error
}

// ConfigurationHandler receives CONF messages from controller/config.
// Returning an error (typically wrapping ErrConfigurationRejected) keeps the
// configuration from satisfying the gate.
type ConfigurationHandler interface {
	OnConfiguration(e *envelope.Envelope) error
}

// LifecycleHandler is notified of connection and configuration events.
type LifecycleHandler interface {
	// OnConnect runs after every (re)connection, once subscriptions are
	// restored and the offline queue is flushed.
	OnConnect()

	// OnDisconnect runs when the connection is lost or stopped.
	OnDisconnect()

	// OnStart runs when the last mandatory configuration has been received.
	OnStart()
}

// Options configures a Client.
type Options struct {
	// HouseID scopes every message. Required.
	HouseID string

	// Passcode authenticates the house against the gateway.
	Passcode string

	// Scope and Name identify the owning module. Required.
	Scope string
	Name  string

	// TLS requests an encrypted connection from the transport.
	TLS bool

	// QoS is used for every publish and subscribe.
	QoS byte

	// Transport carries the traffic. Required.
	Transport Transport

	// Queue buffers publishes while disconnected. Defaults to an
	// unbounded MemoryQueue.
	Queue Queue

	// Callbacks. Any of them may be nil.
	Messages       MessageHandler
	Configurations ConfigurationHandler
	Lifecycle      LifecycleHandler

	// Logger is optional; the client is silent without one.
	Logger Logger

	// Verbose logs every envelope sent and received at debug level.
	Verbose bool
}

// Client is the bus endpoint of a single module.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	houseID  string
	passcode string
	fullName string
	clientID string
	tls      bool
	qos      byte
	verbose  bool

	transport      Transport
	queue          Queue
	messages       MessageHandler
	configurations ConfigurationHandler
	lifecycle      LifecycleHandler
	logger         Logger

	// mu guards state, registry and gate. Transport calls made while
	// holding it are non-blocking per the Transport contract.
	mu       sync.Mutex
	state    State
	registry registry
	gate     gate

	// backlog is set while the queue holds messages that must go out
	// before any new publish. Guarded by mu.
	backlog bool

	// eventMu serializes inbound events from the transport.
	eventMu sync.Mutex

	// held keeps optional configurations that arrive before the mandatory
	// ones, replayed once the module is configured. Guarded by eventMu.
	held []*envelope.Envelope

	stats counters
}

// New creates a client. It does not connect; call Start.
func New(opts Options) (*Client, error) {
	if opts.Transport == nil {
		return nil, errors.New("bus: transport is required")
	}
	if opts.HouseID == "" {
		return nil, errors.New("bus: house id is required")
	}
	if opts.Scope == "" || opts.Name == "" {
		return nil, errors.New("bus: module scope and name are required")
	}
	if opts.QoS > 2 {
		return nil, fmt.Errorf("bus: invalid qos %d", opts.QoS)
	}

	queue := opts.Queue
	if queue == nil {
		queue = NewMemoryQueue(0)
	}

	return &Client{
		houseID:        opts.HouseID,
		passcode:       opts.Passcode,
		fullName:       opts.Scope + "/" + opts.Name,
		clientID:       "egeoffrey-" + opts.HouseID + "-" + opts.Scope + "-" + opts.Name,
		tls:            opts.TLS,
		qos:            opts.QoS,
		verbose:        opts.Verbose,
		transport:      opts.Transport,
		queue:          queue,
		messages:       opts.Messages,
		configurations: opts.Configurations,
		lifecycle:      opts.Lifecycle,
		logger:         opts.Logger,
		gate:           newGate(),
	}, nil
}

// HouseID returns the local house id.
func (c *Client) HouseID() string { return c.houseID }

// FullName returns the owning module's scope/name.
func (c *Client) FullName() string { return c.fullName }

// ClientID returns the identifier presented to the broker.
func (c *Client) ClientID() string { return c.clientID }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Configured reports whether every mandatory configuration has been received.
func (c *Client) Configured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.configured
}

// Waiting returns the configuration patterns still outstanding.
func (c *Client) Waiting() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.gate.waiting)
}

// ActiveSubscriptions returns the subscribed patterns in registration order.
func (c *Client) ActiveSubscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.registry.active)
}

// PendingSubscriptions returns patterns waiting for a connection.
func (c *Client) PendingSubscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.registry.pending)
}

// QueueLen returns the number of publishes waiting for a connection.
func (c *Client) QueueLen() int {
	return c.queue.Len()
}

// Stats returns a snapshot of the traffic counters.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// Start connects to the gateway.
//
// Subscriptions and queued publishes are replayed once the transport reports
// the connection through HandleConnect. Calling Start while connecting or
// connected is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.logDebug("connecting to the gateway", "client_id", c.clientID, "tls", c.tls)

	err := c.transport.Connect(ctx, ConnectOptions{
		ClientID: c.clientID,
		Username: c.houseID,
		Password: c.passcode,
		TLS:      c.tls,
	}, c)
	if err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		c.logError("unable to connect to the gateway", "error", err)
		return fmt.Errorf("%w: connect: %w", ErrTransport, err)
	}
	return nil
}

// Stop disconnects from the gateway.
// The disconnected callback runs only if a live connection existed.
func (c *Client) Stop() {
	c.mu.Lock()
	previous := c.state
	c.state = StateDisconnected
	c.mu.Unlock()

	live := previous == StateConnected || c.transport.IsConnected()
	if previous != StateDisconnected || live {
		c.transport.Disconnect()
	}
	if live {
		c.logInfo("disconnected from the gateway")
		c.notify("on_disconnect", c.onDisconnect)
	}
}

// HandleConnect implements Events.
func (c *Client) HandleConnect() {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	c.state = StateConnected
	for _, pattern := range c.registry.activate() {
		c.subscribeLocked(pattern)
	}
	flushed := c.flushLocked()
	c.mu.Unlock()

	c.stats.connects.Add(1)
	c.logInfo("connected to the gateway", "client_id", c.clientID, "flushed", flushed)
	c.notify("on_connect", c.onConnect)
}

// HandleConnectionLost implements Events.
func (c *Client) HandleConnectionLost(err error) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()

	c.stats.connectionsLost.Add(1)
	if err != nil {
		c.logWarn("unexpected disconnection from the gateway", "error", err)
	} else {
		c.logInfo("disconnected from the gateway")
	}
	c.notify("on_disconnect", c.onDisconnect)
}

// HandleMessage implements Events.
func (c *Client) HandleMessage(topicName string, payload []byte, retained bool) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.dispatch(topicName, payload, retained)
}

// Subscribe registers pattern. When connected the transport subscription is
// requested immediately, otherwise it is deferred to the next connection.
// Registering a known pattern again is a no-op.
func (c *Client) Subscribe(pattern string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registry.contains(pattern) {
		return pattern
	}
	if c.state == StateConnected {
		c.registry.addActive(pattern)
		c.subscribeLocked(pattern)
	} else {
		c.registry.addPending(pattern)
		c.logDebug("queued subscription", "pattern", pattern)
	}
	return pattern
}

// AddListener builds a listener pattern for messages from sender to
// recipient and subscribes it for any house. With waitForIt the pattern
// becomes a mandatory configuration.
func (c *Client) AddListener(sender, recipient, command, args string, waitForIt bool) string {
	pattern := topic.Build(topic.SingleLevel, sender, recipient, command, args)
	if waitForIt {
		c.mu.Lock()
		c.gate.addMandatory(pattern)
		c.mu.Unlock()
		c.logDebug("will wait for configuration", "pattern", pattern)
	}
	return c.Subscribe(pattern)
}

// Unsubscribe removes pattern. Patterns that are not registered are ignored.
func (c *Client) Unsubscribe(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.registry.remove(pattern) || c.state != StateConnected {
		return
	}
	if err := c.transport.Unsubscribe(pattern); err != nil {
		c.logError("unable to unsubscribe", "pattern", pattern, "error", err)
		return
	}
	c.logDebug("unsubscribed", "pattern", pattern)
}

// Publish sends data to recipient on behalf of the owning module.
// A nil data publishes an empty payload, clearing a retained value.
// While disconnected the message is queued.
func (c *Client) Publish(houseID, recipient, command, args string, data any, retain bool) error {
	var payload []byte
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("%w: encoding payload: %w", ErrParse, err)
		}
		payload = encoded
	}
	return c.publish(topic.Build(houseID, c.fullName, recipient, command, args), payload, retain)
}

// Send validates and publishes an envelope. The topic always carries the
// owning module as sender.
func (c *Client) Send(e *envelope.Envelope) error {
	if err := e.Validate(); err != nil {
		c.stats.invalid.Add(1)
		c.logWarn("invalid message to send", "message", e.Dump(), "error", err)
		return err
	}
	payload, err := e.Payload()
	if err != nil {
		c.logError("unable to encode message", "message", e.Dump(), "error", err)
		return err
	}
	if c.verbose {
		c.logDebug("sending message", "message", e.Dump())
	}
	return c.publish(topic.Build(e.HouseID, c.fullName, e.Recipient, e.Command, e.WireArgs()), payload, e.Retain)
}

func (c *Client) publish(topicName string, payload []byte, retain bool) error {
	if topic.IsPattern(topicName) {
		c.stats.invalid.Add(1)
		c.logWarn("refusing to publish on a wildcard topic", "topic", topicName)
		return fmt.Errorf("%w: wildcard in publish topic %s", ErrValidation, topicName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected && c.backlog {
		c.flushLocked()
	}
	if c.state == StateConnected && !c.backlog {
		err := c.transport.Publish(topicName, payload, c.qos, retain)
		if err == nil {
			c.stats.published.Add(1)
			return nil
		}
		if c.transport.IsConnected() {
			c.logError("unable to publish", "topic", topicName, "error", err)
			return fmt.Errorf("%w: publish %s: %w", ErrTransport, topicName, err)
		}
		c.logWarn("connection dropped while publishing, queueing message", "topic", topicName)
		c.backlog = true
	}

	if err := c.queue.Push(Pending{Topic: topicName, Payload: payload, Retain: retain}); err != nil {
		c.stats.queueRejected.Add(1)
		c.logError("unable to queue message", "topic", topicName, "error", err)
		return err
	}
	c.stats.queued.Add(1)
	c.logDebug("queued message", "topic", topicName)
	return nil
}

// subscribeLocked requests a transport subscription. Caller holds mu.
func (c *Client) subscribeLocked(pattern string) {
	if err := c.transport.Subscribe(pattern, c.qos); err != nil {
		c.logError("unable to subscribe", "pattern", pattern, "error", err)
		return
	}
	c.logDebug("subscribed", "pattern", pattern)
}

// flushLocked publishes queued messages in FIFO order. A message the
// transport rejects while still connected is dropped. If the connection
// goes away mid-flush the rest is queued again and backlog stays set, so
// later publishes line up behind it. Caller holds mu.
func (c *Client) flushLocked() int {
	pending, err := c.queue.Drain()
	if err != nil {
		c.backlog = true
		c.logError("unable to read offline queue", "error", err)
		return 0
	}

	sent := 0
	for i, p := range pending {
		err := c.transport.Publish(p.Topic, p.Payload, c.qos, p.Retain)
		if err == nil {
			sent++
			c.stats.flushed.Add(1)
			c.stats.published.Add(1)
			continue
		}
		if c.transport.IsConnected() {
			c.stats.flushDropped.Add(1)
			c.logError("dropping queued message rejected by the transport", "topic", p.Topic, "error", err)
			continue
		}

		c.logWarn("connection dropped while flushing, requeueing", "remaining", len(pending)-i, "error", err)
		for _, rest := range pending[i:] {
			if qerr := c.queue.Push(rest); qerr != nil {
				c.logError("dropping queued message", "topic", rest.Topic, "error", qerr)
			}
		}
		c.backlog = true
		return sent
	}
	c.backlog = false
	return sent
}

func (c *Client) onConnect() {
	if c.lifecycle != nil {
		c.lifecycle.OnConnect()
	}
}

func (c *Client) onDisconnect() {
	if c.lifecycle != nil {
		c.lifecycle.OnDisconnect()
	}
}

func (c *Client) onStart() {
	if c.lifecycle != nil {
		c.lifecycle.OnStart()
	}
}

// notify runs a lifecycle callback, recovering from panics.
func (c *Client) notify(callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.handlerErrors.Add(1)
			c.logError("callback panicked", "callback", callback, "panic", r)
		}
	}()
	fn()
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}

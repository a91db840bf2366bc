package module

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/orttech/egeoffrey-sdk/internal/bus"
	"github.com/orttech/egeoffrey-sdk/internal/envelope"
	"github.com/orttech/egeoffrey-sdk/internal/session"
	"github.com/orttech/egeoffrey-sdk/internal/topic"
)

// AnySchema registers a configuration listener for every schema version.
const AnySchema = -1

// Status values broadcast with the STATUS command.
const (
	statusStopped = "0"
	statusRunning = "1"
)

// Options configures a Module.
type Options struct {
	HouseID  string
	Passcode string
	Scope    string
	Name     string
	TLS      bool
	QoS      byte

	// Transport carries the bus traffic. Required.
	Transport bus.Transport

	// Queue buffers publishes while disconnected. Defaults to an
	// unbounded in-memory queue.
	Queue bus.Queue

	// Sessions correlates requests with replies. Defaults to an unbounded store.
	Sessions *session.Store

	// Logger is optional.
	Logger bus.Logger

	// Verbose logs every envelope sent and received.
	Verbose bool
}

// Module is a running eGeoffrey module.
//
// Thread Safety: All methods are safe for concurrent use.
type Module struct {
	scope    string
	name     string
	fullName string
	houseID  string

	handler  Handler
	client   *bus.Client
	sessions *session.Store
	logger   bus.Logger

	mu      sync.Mutex
	running bool
}

// New creates a module and calls handler.OnInit. It does not connect.
func New(opts Options, handler Handler) (*Module, error) {
	if handler == nil {
		return nil, errors.New("module: handler is required")
	}

	m := &Module{
		scope:    opts.Scope,
		name:     opts.Name,
		fullName: opts.Scope + "/" + opts.Name,
		houseID:  opts.HouseID,
		handler:  handler,
		sessions: opts.Sessions,
		logger:   opts.Logger,
	}
	if m.sessions == nil {
		m.sessions = session.New(session.WithLogger(sessionLogger{m}))
	}

	cb := callbacks{m: m}
	client, err := bus.New(bus.Options{
		HouseID:        opts.HouseID,
		Passcode:       opts.Passcode,
		Scope:          opts.Scope,
		Name:           opts.Name,
		TLS:            opts.TLS,
		QoS:            opts.QoS,
		Transport:      opts.Transport,
		Queue:          opts.Queue,
		Messages:       cb,
		Configurations: cb,
		Lifecycle:      cb,
		Logger:         opts.Logger,
		Verbose:        opts.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", m.fullName, err)
	}
	m.client = client

	m.logDebug("initializing module")
	if err := m.call("on_init", func() error { return handler.OnInit(m) }); err != nil {
		m.logError("runtime error during on_init", "error", err)
	}

	return m, nil
}

// Scope returns the module scope.
func (m *Module) Scope() string { return m.scope }

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// FullName returns scope/name.
func (m *Module) FullName() string { return m.fullName }

// HouseID returns the house the module belongs to.
func (m *Module) HouseID() string { return m.houseID }

// Client returns the underlying bus client.
func (m *Module) Client() *bus.Client { return m.client }

// Sessions returns the request/reply session store.
func (m *Module) Sessions() *session.Store { return m.sessions }

// Configured reports whether every mandatory configuration has been received.
func (m *Module) Configured() bool { return m.client.Configured() }

// AddConfigurationListener listens for the configuration file args at the
// given schema version (AnySchema for all). With waitForIt the module is not
// started until the configuration has been received.
func (m *Module) AddConfigurationListener(args string, schema int, waitForIt bool) string {
	version := topic.SingleLevel
	if schema != AnySchema {
		version = strconv.Itoa(schema)
	}
	return m.client.AddListener(topic.ConfigAuthority, topic.Broadcast, topic.CommandConf,
		version+topic.Separator+args, waitForIt)
}

// AddRequestListener listens for messages addressed to this module.
func (m *Module) AddRequestListener(from, command, args string) string {
	return m.client.AddListener(from, m.fullName, command, args, false)
}

// AddBroadcastListener listens for messages broadcast by from.
func (m *Module) AddBroadcastListener(from, command, args string) string {
	return m.client.AddListener(from, topic.Broadcast, command, args, false)
}

// AddInspectionListener intercepts messages between two other modules.
func (m *Module) AddInspectionListener(from, to, command, args string) string {
	return m.client.AddListener(from, to, command, args, false)
}

// RemoveListener removes a pattern returned by one of the Add methods.
func (m *Module) RemoveListener(pattern string) {
	m.client.Unsubscribe(pattern)
}

// NewEnvelope returns an envelope sent by this module in its house.
func (m *Module) NewEnvelope() *envelope.Envelope {
	return envelope.NewFrom(m.houseID, m.fullName)
}

// Send publishes an envelope. Invalid envelopes are logged and rejected.
func (m *Module) Send(e *envelope.Envelope) error {
	return m.client.Send(e)
}

// IsValidConfiguration reports whether every key is present and not null in
// the envelope data.
func (m *Module) IsValidConfiguration(keys []string, e *envelope.Envelope) bool {
	if e == nil || e.IsNull {
		m.logWarn("invalid configuration received, no content")
		return false
	}
	for _, key := range keys {
		value := e.Get(key)
		if value == nil || bytes.Equal(value, []byte("null")) {
			m.logWarn("invalid configuration received", "missing", key, "configuration", string(e.GetData()))
			return false
		}
	}
	return true
}

// UpgradeConfig asks controller/config to replace file at schema from with
// content at schema to.
func (m *Module) UpgradeConfig(file string, from, to int, content any) error {
	del := m.NewEnvelope()
	del.Recipient = topic.ConfigAuthority
	del.Command = topic.CommandDelete
	del.Args = file
	del.ConfigSchema = &from
	if err := m.Send(del); err != nil {
		return fmt.Errorf("deleting %s v%d: %w", file, from, err)
	}

	save := m.NewEnvelope()
	save.Recipient = topic.ConfigAuthority
	save.Command = topic.CommandSave
	save.Args = file
	save.ConfigSchema = &to
	if err := save.SetData(content); err != nil {
		return fmt.Errorf("saving %s v%d: %w", file, to, err)
	}
	if err := m.Send(save); err != nil {
		return fmt.Errorf("saving %s v%d: %w", file, to, err)
	}

	m.logInfo("requested configuration upgrade", "file", file, "from", from, "to", to)
	return nil
}

// Start connects the module, subscribes to requests addressed to it and
// announces it. OnStart runs now if the module needs no configuration.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	m.logInfo("starting module")

	configured := m.client.Configured()
	if err := m.client.Start(ctx); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return fmt.Errorf("module %s: %w", m.fullName, err)
	}

	m.AddRequestListener(topic.AnyModule, topic.SingleLevel, topic.MultiLevel)
	m.broadcastStatus(statusRunning)

	if configured {
		m.start()
	} else {
		m.logInfo("waiting for configuration", "pending", m.client.Waiting())
	}
	return nil
}

// Stop announces the module is stopping, calls OnStop and disconnects.
func (m *Module) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.logInfo("stopping module")
	if m.client.IsConnected() {
		m.broadcastStatus(statusStopped)
	}
	if err := m.call("on_stop", m.handler.OnStop); err != nil {
		m.logError("runtime error during on_stop", "error", err)
	}
	m.client.Stop()
}

// Run starts the module and blocks until ctx is cancelled, then stops it.
func (m *Module) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}

func (m *Module) broadcastStatus(status string) {
	e := m.NewEnvelope()
	e.Recipient = topic.Broadcast
	e.Command = topic.CommandStatus
	e.Args = status
	if err := m.Send(e); err != nil {
		m.logWarn("unable to broadcast status", "status", status, "error", err)
	}
}

func (m *Module) start() {
	if err := m.call("on_start", m.handler.OnStart); err != nil {
		m.logError("runtime error during on_start", "error", err)
	}
}

// call runs a handler callback, converting panics to errors.
func (m *Module) call(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", bus.ErrHandler, name, r)
		}
	}()
	return fn()
}

func (m *Module) logDebug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Module) logInfo(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}

func (m *Module) logWarn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

func (m *Module) logError(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Error(msg, args...)
	}
}

// callbacks adapts a Module to the bus callback interfaces.
type callbacks struct {
	m *Module
}

func (c callbacks) OnMessage(e *envelope.Envelope) error {
	return c.m.handler.OnMessage(e)
}

func (c callbacks) OnConfiguration(e *envelope.Envelope) error {
	return c.m.handler.OnConfiguration(e)
}

func (c callbacks) OnConnect()    { c.m.handler.OnConnect() }
func (c callbacks) OnDisconnect() { c.m.handler.OnDisconnect() }
func (c callbacks) OnStart()      { c.m.start() }

// sessionLogger routes session warnings to the module logger.
type sessionLogger struct {
	m *Module
}

func (l sessionLogger) Debug(msg string, args ...any) { l.m.logDebug(msg, args...) }
func (l sessionLogger) Warn(msg string, args ...any)  { l.m.logWarn(msg, args...) }

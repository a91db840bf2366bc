package module

import "github.com/orttech/egeoffrey-sdk/internal/envelope"

// Handler is implemented by the module's business logic.
//
// Callbacks run on the bus dispatch goroutine, one at a time; they may call
// back into the Module. Errors and panics are logged and never stop the
// module.
type Handler interface {
	// OnInit is called once from New. Listeners are usually registered here.
	OnInit(m *Module) error

	// OnConnect is called after every (re)connection to the gateway.
	OnConnect()

	// OnStart is called once the module is configured.
	OnStart() error

	// OnStop is called from Stop, before disconnecting.
	OnStop() error

	// OnDisconnect is called when the connection is lost or closed.
	OnDisconnect()

	// OnMessage receives requests, broadcasts and inspected messages.
	OnMessage(e *envelope.Envelope) error

	// OnConfiguration receives configuration files. Return an error wrapping
	// ErrInvalidConfiguration to reject one.
	OnConfiguration(e *envelope.Envelope) error
}

// Base implements every Handler callback as a no-op.
// Embed it and override what is needed.
type Base struct{}

func (Base) OnInit(*Module) error                     { return nil }
func (Base) OnConnect()                               {}
func (Base) OnStart() error                           { return nil }
func (Base) OnStop() error                            { return nil }
func (Base) OnDisconnect()                            {}
func (Base) OnMessage(*envelope.Envelope) error       { return nil }
func (Base) OnConfiguration(*envelope.Envelope) error { return nil }

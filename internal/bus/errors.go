package bus

import (
	"errors"

	"github.com/orttech/egeoffrey-sdk/internal/envelope"
	"github.com/orttech/egeoffrey-sdk/internal/topic"
)

// Domain errors for bus operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrParse is returned for malformed topics or payloads.
	ErrParse = topic.ErrParse

	// ErrValidation is returned when an outbound envelope is missing required fields.
	ErrValidation = envelope.ErrValidation

	// ErrScope is reported for messages addressed to another house.
	ErrScope = errors.New("bus: message for another house")

	// ErrHandler wraps errors and panics raised by module callbacks.
	ErrHandler = errors.New("bus: handler failed")

	// ErrConfigurationRejected is returned by configuration handlers to refuse
	// a configuration. A rejected configuration does not satisfy the gate.
	ErrConfigurationRejected = errors.New("bus: configuration rejected")

	// ErrTransport wraps failures reported by the transport.
	ErrTransport = errors.New("bus: transport failed")

	// ErrNotConnected is returned by transports when no connection is available.
	ErrNotConnected = errors.New("bus: not connected")

	// ErrQueueFull is returned when the offline queue cannot take more messages.
	ErrQueueFull = errors.New("bus: offline queue full")
)

// Package bus is the module-side protocol layer of the eGeoffrey message bus.
//
// It sits between the owning module's callbacks and a topic-based transport
// (MQTT in production, see internal/infrastructure/mqtt) and provides:
//   - Connection lifecycle: connect, react to connection loss, stop
//   - Subscription registry: patterns requested offline are replayed on connect
//   - Offline queue: publishes issued while disconnected are flushed in order
//   - Dispatch: inbound messages are parsed, scoped to the local house and
//     routed to exactly one handling path
//   - Configuration gate: the module is "configured" once every mandatory
//     configuration topic has been received
//
// # Dispatch
//
// For every inbound message the first active pattern (in registration order)
// that matches the topic selects the message, then:
//  1. CONF from controller/config goes to the configuration handler
//  2. PING is answered automatically with PONG
//  3. anything else goes to the message handler, only once configured
//
// A message is never delivered twice, even under overlapping patterns.
// Handler errors and panics are logged and never stop dispatch.
//
// # Reconnection
//
// Reconnecting is the transport's job. Every time the transport reports a
// successful connection the client resubscribes all patterns, flushes the
// offline queue and only then notifies the module.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Inbound events are
// serialized; callbacks are never invoked while internal state is locked, so
// they may call back into the client (send, add listeners, stop).
package bus

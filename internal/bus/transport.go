package bus

import "context"

// Transport is the topic-based pub/sub connection the client runs on.
//
// Implementations must not block on network round trips in Subscribe,
// Unsubscribe or Publish, and must not call back into Events synchronously
// from those methods.
type Transport interface {
	// Connect opens the connection. It returns an error when the connection
	// cannot be established. On success, and on every later reconnection,
	// the transport calls events.HandleConnect.
	Connect(ctx context.Context, opts ConnectOptions, events Events) error

	// Subscribe requests delivery of topics matching pattern.
	Subscribe(pattern string, qos byte) error

	// Unsubscribe cancels a subscription.
	Unsubscribe(pattern string) error

	// Publish sends payload on topic. A nil payload clears a retained value.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Disconnect closes the connection gracefully.
	Disconnect()

	// IsConnected reports whether the connection is currently up.
	IsConnected() bool
}

// Events receives notifications from the transport.
// *Client implements Events.
type Events interface {
	// HandleConnect is called on every successful (re)connection.
	HandleConnect()

	// HandleMessage is called for every inbound message.
	HandleMessage(topic string, payload []byte, retained bool)

	// HandleConnectionLost is called when the connection drops without
	// Disconnect having been called. err describes the reason, if known.
	HandleConnectionLost(err error)
}

// ConnectOptions carries the identity presented to the broker.
type ConnectOptions struct {
	// ClientID is egeoffrey-<house>-<scope>-<name>.
	ClientID string

	// Username is the house id.
	Username string

	// Password is the house passcode.
	Password string

	// TLS requests an encrypted connection.
	TLS bool
}

package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/orttech/egeoffrey-sdk/internal/bus"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/config"
)

// Client is the paho.mqtt.golang implementation of bus.Transport.
//
// Every inbound message is delivered through a single default publish
// handler to bus.Events. Publish, Subscribe and Unsubscribe never wait for
// the broker: acknowledgments are awaited in background goroutines and
// failures are logged.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg config.GatewayConfig

	client   pahomqtt.Client
	clientMu sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// New creates a transport for the configured gateway. It does not connect.
func New(cfg config.GatewayConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect establishes the connection to the gateway.
//
// It builds the connection options, wires the paho callbacks to events and
// waits for the initial connection until the configured timeout or ctx is
// done. Reconnections are handled by paho; each one is reported through
// events.HandleConnect.
func (c *Client) Connect(ctx context.Context, conn bus.ConnectOptions, events bus.Events) error {
	opts, err := buildClientOptions(c.cfg, conn)
	if err != nil {
		return err
	}

	opts.SetDefaultPublishHandler(c.messageHandler(events))

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		events.HandleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		events.HandleConnectionLost(err)
	})

	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("reconnecting to the gateway", "broker", brokerURL(c.cfg, conn.TLS || c.cfg.SSL))
		}
	})

	client := pahomqtt.NewClient(opts)
	c.clientMu.Lock()
	c.client = client
	c.clientMu.Unlock()

	timeout := time.Duration(c.cfg.ConnectTimeout) * time.Second
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return nil
}

// messageHandler feeds every inbound message to events, recovering panics.
func (c *Client) messageHandler(events bus.Events) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		events.HandleMessage(msg.Topic(), msg.Payload(), msg.Retained())
	}
}

// Disconnect gracefully closes the connection, waiting briefly for pending
// operations. Safe to call when not connected.
func (c *Client) Disconnect() {
	client := c.getClient()
	if client == nil {
		return
	}
	client.Disconnect(defaultDisconnectQuiesce)
}

// IsConnected reports whether the network connection is currently open.
// It is false while paho is reconnecting.
func (c *Client) IsConnected() bool {
	client := c.getClient()
	return client != nil && client.IsConnectionOpen()
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// SetLogger sets a logger for error and panic logging.
// If not set, asynchronous failures are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) getClient() pahomqtt.Client {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	return c.client
}

// watch waits for a token in the background and logs failures.
func (c *Client) watch(operation, topic string, sentinel error, token pahomqtt.Token) {
	go func() {
		var err error
		if !token.WaitTimeout(defaultOperationTimeout) {
			err = fmt.Errorf("%w: timeout after %v", sentinel, defaultOperationTimeout)
		} else if tokenErr := token.Error(); tokenErr != nil {
			err = fmt.Errorf("%w: %w", sentinel, tokenErr)
		}
		if err == nil {
			return
		}
		if logger := c.getLogger(); logger != nil {
			logger.Error("MQTT "+operation+" failed", "topic", topic, "error", err)
		}
	}()
}

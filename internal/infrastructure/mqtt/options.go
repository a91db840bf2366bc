package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/orttech/egeoffrey-sdk/internal/bus"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultOperationTimeout bounds how long a background goroutine waits
	// for a publish, subscribe or unsubscribe acknowledgment.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// websocketPath is where the gateway serves MQTT over websockets.
	websocketPath = "/mqtt"

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// brokerURL returns the gateway URL for the configured transport.
//
//	tcp        -> tcp://host:port  or ssl://host:port
//	websockets -> ws://host:port/mqtt or wss://host:port/mqtt
func brokerURL(cfg config.GatewayConfig, secure bool) string {
	if cfg.Transport == config.TransportWebsockets {
		scheme := "ws"
		if secure {
			scheme = "wss"
		}
		return fmt.Sprintf("%s://%s:%d%s", scheme, cfg.Host, cfg.Port, websocketPath)
	}

	scheme := "tcp"
	if secure {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

// buildClientOptions creates paho MQTT options for a bus connection.
//
// This configures:
//   - Gateway URL (tcp, ssl, ws or wss)
//   - Client ID and house credentials from the bus
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (if requested by the bus or the config)
//   - Clean session unless persistent_client is set
//
// Connection callbacks are wired by Connect.
func buildClientOptions(cfg config.GatewayConfig, conn bus.ConnectOptions) (*pahomqtt.ClientOptions, error) {
	opts := pahomqtt.NewClientOptions()

	secure := conn.TLS || cfg.SSL
	opts.AddBroker(brokerURL(cfg, secure))

	opts.SetClientID(conn.ClientID)
	if conn.Username != "" {
		opts.SetUsername(conn.Username)
		opts.SetPassword(conn.Password)
	}

	opts.SetCleanSession(!cfg.PersistentClient)

	// The bus resubscribes on every connection, paho only has to reconnect.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetResumeSubs(false)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second)
	opts.SetKeepAlive(defaultKeepAlive)

	if secure {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

// buildTLSConfig loads the optional CA bundle and client certificate.
func buildTLSConfig(cfg config.GatewayConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tlsMinVersion,
	}

	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("%w: reading ca_cert: %w", ErrTLSConfig, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrTLSConfig, cfg.CACert)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: loading client certificate: %w", ErrTLSConfig, err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

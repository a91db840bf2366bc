package mqtt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/orttech/egeoffrey-sdk/internal/bus"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/config"
)

// testConfig returns a gateway configuration pointing at a local broker.
func testConfig() config.GatewayConfig {
	return config.GatewayConfig{
		Host:           "127.0.0.1",
		Port:           1883,
		Transport:      config.TransportTCP,
		QoS:            1,
		ConnectTimeout: 2,
		Reconnect: config.ReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func testConnectOptions() bus.ConnectOptions {
	return bus.ConnectOptions{
		ClientID: "egeoffrey-house1-system-test",
		Username: "house1",
		Password: "secret",
	}
}

// recordingEvents captures the bus events raised by the transport.
type recordingEvents struct {
	mu       sync.Mutex
	connects int
	lost     []error
	messages []string
	retained []bool
	panicOn  string
}

func (r *recordingEvents) HandleConnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
}

func (r *recordingEvents) HandleConnectionLost(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost = append(r.lost, err)
}

func (r *recordingEvents) HandleMessage(topic string, payload []byte, retained bool) {
	r.mu.Lock()
	r.messages = append(r.messages, topic+" "+string(payload))
	r.retained = append(r.retained, retained)
	panicOn := r.panicOn
	r.mu.Unlock()
	if topic == panicOn {
		panic("events exploded")
	}
}

func (r *recordingEvents) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return m.retained }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(string, ...any) {}

// =============================================================================
// Option Tests
// =============================================================================

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		secure    bool
		want      string
	}{
		{name: "tcp", transport: config.TransportTCP, want: "tcp://gw:1883"},
		{name: "tcp tls", transport: config.TransportTCP, secure: true, want: "ssl://gw:1883"},
		{name: "websockets", transport: config.TransportWebsockets, want: "ws://gw:1883/mqtt"},
		{name: "websockets tls", transport: config.TransportWebsockets, secure: true, want: "wss://gw:1883/mqtt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.GatewayConfig{Host: "gw", Port: 1883, Transport: tt.transport}
			if got := brokerURL(cfg, tt.secure); got != tt.want {
				t.Errorf("brokerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()

	opts, err := buildClientOptions(cfg, testConnectOptions())
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}

	if opts.ClientID != "egeoffrey-house1-system-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "house1" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want house1/secret", opts.Username, opts.Password)
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if !opts.AutoReconnect || opts.ConnectRetry {
		t.Errorf("AutoReconnect = %v ConnectRetry = %v, want true/false", opts.AutoReconnect, opts.ConnectRetry)
	}
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.TLSConfig != nil && len(opts.TLSConfig.Certificates) > 0 {
		t.Error("TLS configured without ssl")
	}
}

func TestBuildClientOptions_PersistentAndTLS(t *testing.T) {
	cfg := testConfig()
	cfg.PersistentClient = true
	conn := testConnectOptions()
	conn.TLS = true

	opts, err := buildClientOptions(cfg, conn)
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}

	if opts.CleanSession {
		t.Error("CleanSession = true, want false for a persistent client")
	}
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLSConfig not set with minimum version")
	}
}

func TestBuildTLSConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	tests := []struct {
		name string
		cfg  config.GatewayConfig
	}{
		{name: "missing ca file", cfg: config.GatewayConfig{CACert: filepath.Join(dir, "missing.pem")}},
		{name: "invalid ca file", cfg: config.GatewayConfig{CACert: garbage}},
		{name: "invalid client certificate", cfg: config.GatewayConfig{CertFile: garbage, KeyFile: garbage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildTLSConfig(tt.cfg)
			if !errors.Is(err, ErrTLSConfig) {
				t.Errorf("buildTLSConfig() error = %v, want ErrTLSConfig", err)
			}
		})
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestOperationsWhileDisconnected(t *testing.T) {
	c := New(testConfig())

	if c.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}

	if err := c.Publish("egeoffrey/v1/h/a/b/c/d/CMD", []byte("{}"), 0, false); !errors.Is(err, bus.ErrNotConnected) {
		t.Errorf("Publish() error = %v, want bus.ErrNotConnected", err)
	}
	if err := c.Subscribe("egeoffrey/v1/#", 0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.Unsubscribe("egeoffrey/v1/#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	// Must not panic without a paho client.
	c.Disconnect()
}

func TestValidation(t *testing.T) {
	c := New(testConfig())

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "publish empty topic", err: c.Publish("", nil, 0, false), want: ErrInvalidTopic},
		{name: "publish wildcard topic", err: c.Publish("egeoffrey/v1/+/a/b/c/d/CMD", nil, 0, false), want: ErrInvalidTopic},
		{name: "publish invalid qos", err: c.Publish("t", nil, 3, false), want: ErrInvalidQoS},
		{name: "publish oversized payload", err: c.Publish("t", make([]byte, maxPayloadSize+1), 0, false), want: ErrPublishFailed},
		{name: "subscribe empty topic", err: c.Subscribe("", 0), want: ErrInvalidTopic},
		{name: "subscribe invalid qos", err: c.Subscribe("t", 3), want: ErrInvalidQoS},
		{name: "unsubscribe empty topic", err: c.Unsubscribe(""), want: ErrInvalidTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := New(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.HealthCheck(ctx)
	if err == nil || !strings.Contains(err.Error(), "canceled") {
		t.Errorf("HealthCheck() error = %v, want context canceled", err)
	}
}

// =============================================================================
// Message Handler Tests
// =============================================================================

func TestMessageHandler_ForwardsToEvents(t *testing.T) {
	c := New(testConfig())
	events := &recordingEvents{}
	handler := c.messageHandler(events)

	handler(nil, fakeMessage{topic: "egeoffrey/v1/h/a/b/c/d/CONF/1/x", payload: []byte(`{"request_id":1}`), retained: true})

	if events.messageCount() != 1 {
		t.Fatalf("messages = %d, want 1", events.messageCount())
	}
	if events.messages[0] != `egeoffrey/v1/h/a/b/c/d/CONF/1/x {"request_id":1}` {
		t.Errorf("message = %q", events.messages[0])
	}
	if !events.retained[0] {
		t.Error("retained flag lost")
	}
}

func TestMessageHandler_RecoversPanic(t *testing.T) {
	c := New(testConfig())
	logger := &recordingLogger{}
	c.SetLogger(logger)
	events := &recordingEvents{panicOn: "boom"}
	handler := c.messageHandler(events)

	handler(nil, fakeMessage{topic: "boom"})
	handler(nil, fakeMessage{topic: "after"})

	if events.messageCount() != 2 {
		t.Errorf("messages = %d, want 2", events.messageCount())
	}
	if len(logger.errors) != 1 {
		t.Errorf("logged errors = %v, want one panic", logger.errors)
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 19999 // nothing listens here

	c := New(cfg)
	events := &recordingEvents{}
	err := c.Connect(context.Background(), testConnectOptions(), events)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed connect")
	}
}

func TestConnect_InvalidTLS(t *testing.T) {
	cfg := testConfig()
	cfg.SSL = true
	cfg.CACert = filepath.Join(t.TempDir(), "missing.pem")

	err := New(cfg).Connect(context.Background(), testConnectOptions(), &recordingEvents{})
	if !errors.Is(err, ErrTLSConfig) {
		t.Errorf("Connect() error = %v, want ErrTLSConfig", err)
	}
}

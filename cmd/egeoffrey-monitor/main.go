// egeoffrey-monitor is an eGeoffrey module that watches every message
// exchanged in a house.
//
// It connects to the gateway as system/monitor (configurable), logs each
// observed envelope and, when InfluxDB is enabled, records per-message
// points and periodic bus counters. PINGs it observes between other modules
// are recorded but not answered; only PINGs addressed to the monitor or
// broadcast to */* get a PONG.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/orttech/egeoffrey-sdk/internal/bus"
	"github.com/orttech/egeoffrey-sdk/internal/envelope"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/config"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/database"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/influxdb"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/logging"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/mqtt"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/spool"
	"github.com/orttech/egeoffrey-sdk/internal/module"
	"github.com/orttech/egeoffrey-sdk/internal/session"
	"github.com/orttech/egeoffrey-sdk/internal/topic"
	"github.com/orttech/egeoffrey-sdk/migrations"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when EGEOFFREY_CONFIG is unset and the file
// exists. Without either, defaults and environment overrides apply.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		logging.Default().Critical("egeoffrey-monitor failed", "error", err)
		os.Exit(1)
	}
}

// run wires the module and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version).
		ForModule(cfg.House.ID, cfg.Module.Scope+"/"+cfg.Module.Name).
		With("instance_id", uuid.NewString())
	log.Info("starting eGeoffrey monitor",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	queue, closeQueue, err := openQueue(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeQueue()

	var metrics *influxdb.Client
	if cfg.InfluxDB.Enabled {
		metrics, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := metrics.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		metrics.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	transport := mqtt.New(cfg.Gateway)
	transport.SetLogger(log)

	mon := &monitor{log: log}
	if metrics != nil {
		mon.recorder = metrics
	}

	mod, err := module.New(module.Options{
		HouseID:   cfg.House.ID,
		Passcode:  cfg.House.Passcode,
		Scope:     cfg.Module.Scope,
		Name:      cfg.Module.Name,
		TLS:       cfg.Gateway.SSL,
		QoS:       byte(cfg.Gateway.QoS), // #nosec G115 -- validated 0..2
		Transport: transport,
		Queue:     queue,
		Sessions: session.New(
			session.WithMaxEntries(cfg.Bus.Sessions.MaxEntries),
			session.WithTTL(cfg.GetSessionTTL()),
			session.WithLogger(log),
		),
		Logger:  log,
		Verbose: cfg.Bus.Verbose,
	}, mon)
	if err != nil {
		return fmt.Errorf("creating module: %w", err)
	}

	if err := mod.Start(ctx); err != nil {
		return fmt.Errorf("starting module: %w", err)
	}
	log.Info("connected to gateway",
		"host", cfg.Gateway.Host,
		"port", cfg.Gateway.Port,
		"client_id", mod.Client().ClientID(),
	)

	if metrics != nil {
		go influxdb.NewReporter(mod.Client(), metrics, cfg.GetStatsInterval()).Run(ctx)
	}

	if err := healthCheck(ctx, transport, metrics); err != nil {
		log.Warn("health check failed", "error", err)
	}

	<-ctx.Done()
	log.Info("shutting down")
	mod.Stop()

	stats := mod.Client().Stats()
	log.Info("eGeoffrey monitor stopped",
		"received", stats.Received,
		"published", stats.Published,
		"queued", mod.Client().QueueLen(),
	)
	return nil
}

// openQueue returns the offline publish queue: the SQLite spool when
// bus.offline_queue.persistent is set, otherwise memory.
func openQueue(ctx context.Context, cfg *config.Config, log *logging.Logger) (bus.Queue, func(), error) {
	if !cfg.Bus.OfflineQueue.Persistent {
		return bus.NewMemoryQueue(cfg.Bus.OfflineQueue.MaxSize), func() {}, nil
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	closeDB := func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	s := spool.New(db, spool.WithMaxSize(cfg.Bus.OfflineQueue.MaxSize))
	log.Info("offline spool ready",
		"path", db.Path(),
		"migrations_applied", applied,
		"pending", s.Len(),
	)
	return s, closeDB, nil
}

// getConfigPath returns EGEOFFREY_CONFIG, else defaultConfigPath when it
// exists, else "" to run on defaults.
func getConfigPath() string {
	if path := os.Getenv("EGEOFFREY_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// healthChecker is implemented by the gateway transport and InfluxDB client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck checks the gateway and, when enabled, InfluxDB.
func healthCheck(ctx context.Context, transport healthChecker, metrics *influxdb.Client) error {
	var errs []error
	if transport != nil {
		if err := transport.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("gateway: %w", err))
		}
	}
	if metrics != nil {
		if err := metrics.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}

// messageRecorder stores observed envelopes.
type messageRecorder interface {
	WriteMessage(e *envelope.Envelope)
}

// monitor inspects every message in the house.
type monitor struct {
	module.Base

	log      *logging.Logger
	recorder messageRecorder
}

func (m *monitor) OnInit(mod *module.Module) error {
	mod.AddInspectionListener(topic.AnyModule, topic.AnyModule, topic.SingleLevel, topic.MultiLevel)
	return nil
}

func (m *monitor) OnStart() error {
	m.log.Info("monitoring bus traffic")
	return nil
}

func (m *monitor) OnConnect() {
	m.log.Info("gateway connected")
}

func (m *monitor) OnDisconnect() {
	m.log.Warn("gateway disconnected")
}

func (m *monitor) OnMessage(e *envelope.Envelope) error {
	m.log.Info("observed message",
		"sender", e.Sender,
		"recipient", e.Recipient,
		"command", e.Command,
		"args", e.Args,
		"retain", e.Retain,
		"dump", e.Dump(),
	)
	if m.recorder != nil {
		m.recorder.WriteMessage(e)
	}
	return nil
}

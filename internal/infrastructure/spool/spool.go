// Package spool persists publishes issued while the gateway is unreachable,
// so they survive a module restart.
//
// Spool implements bus.Queue on top of the offline_queue table created by
// the migrations package.
package spool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/orttech/egeoffrey-sdk/internal/bus"
	"github.com/orttech/egeoffrey-sdk/internal/infrastructure/database"
)

const defaultTimeout = 5 * time.Second

// Spool is a SQLite-backed FIFO of pending publishes.
//
// Thread Safety: All methods are safe for concurrent use. The underlying
// connection pool has a single connection, so operations serialise.
type Spool struct {
	db      *database.DB
	maxSize int
	timeout time.Duration
}

var _ bus.Queue = (*Spool)(nil)

// Option configures a Spool.
type Option func(*Spool)

// WithMaxSize caps the number of pending rows. Zero means unbounded.
func WithMaxSize(n int) Option {
	return func(s *Spool) { s.maxSize = n }
}

// WithTimeout bounds each database round trip.
func WithTimeout(d time.Duration) Option {
	return func(s *Spool) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns a Spool over db. The schema must already be migrated.
func New(db *database.DB, opts ...Option) *Spool {
	s := &Spool{db: db, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push appends p, or returns bus.ErrQueueFull when the cap is reached.
func (s *Spool) Push(p bus.Pending) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	payload := p.Payload
	if payload == nil {
		payload = []byte{}
	}

	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if s.maxSize > 0 {
			var n int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM offline_queue").Scan(&n); err != nil {
				return fmt.Errorf("counting spool: %w", err)
			}
			if n >= s.maxSize {
				return fmt.Errorf("%w: %d messages spooled", bus.ErrQueueFull, n)
			}
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO offline_queue (topic, payload, retain, queued_at) VALUES (?, ?, ?, ?)",
			p.Topic, payload, p.Retain, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("spooling %s: %w", p.Topic, err)
		}
		return nil
	})
}

// Drain removes and returns every spooled publish in insertion order.
func (s *Spool) Drain() ([]bus.Pending, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var out []bus.Pending
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id, topic, payload, retain FROM offline_queue ORDER BY id")
		if err != nil {
			return fmt.Errorf("reading spool: %w", err)
		}
		defer rows.Close()

		var last int64
		for rows.Next() {
			var p bus.Pending
			if err := rows.Scan(&last, &p.Topic, &p.Payload, &p.Retain); err != nil {
				return fmt.Errorf("scanning spool row: %w", err)
			}
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating spool: %w", err)
		}
		if len(out) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM offline_queue WHERE id <= ?", last); err != nil {
			return fmt.Errorf("clearing spool: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Len returns the number of spooled publishes, or 0 if the count fails.
func (s *Spool) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM offline_queue").Scan(&n); err != nil {
		return 0
	}
	return n
}

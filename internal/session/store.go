package session

import (
	"sync"
	"time"

	"github.com/orttech/egeoffrey-sdk/internal/envelope"
)

// Logger is the logging interface used by the store.
// Satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Store maps request ids to session contexts.
//
// Thread Safety: All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[int]entry
	seq      uint64

	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	logger Logger
}

type entry struct {
	value   any
	created time.Time
	seq     uint64
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries bounds the number of pending sessions. When the store is
// full the oldest session is evicted. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// WithTTL expires sessions that have not been restored within ttl.
// Zero means sessions never expire.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[int]entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register associates value with the request id of e and returns the id.
// Envelopes without a request id are ignored and 0 is returned.
func (s *Store) Register(e *envelope.Envelope, value any) int {
	id := e.CorrelationID()
	if id == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	if _, exists := s.sessions[id]; !exists && s.maxEntries > 0 && len(s.sessions) >= s.maxEntries {
		s.evictOldestLocked()
	}

	s.seq++
	s.sessions[id] = entry{value: value, created: s.now(), seq: s.seq}

	if s.logger != nil {
		s.logger.Debug("created session", "request_id", id)
	}
	return id
}

// Restore returns the context registered for the request id of e and
// removes it. A second Restore for the same id finds nothing.
func (s *Store) Restore(e *envelope.Envelope) (any, bool) {
	id := e.CorrelationID()
	if id == 0 {
		return nil, false
	}

	s.mu.Lock()
	s.expireLocked()
	ent, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		if s.logger != nil {
			s.logger.Warn("invalid session requested",
				"request_id", id,
				"message", e.Dump(),
			)
		}
		return nil, false
	}
	return ent.value, true
}

// IsRegistered reports whether a session exists for the request id of e.
func (s *Store) IsRegistered(e *envelope.Envelope) bool {
	id := e.CorrelationID()
	if id == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	_, ok := s.sessions[id]
	return ok
}

// Cancel forgets the session registered under id. It reports whether one existed.
func (s *Store) Cancel(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of pending sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return len(s.sessions)
}

// expireLocked drops sessions older than the TTL. Caller holds s.mu.
func (s *Store) expireLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, ent := range s.sessions {
		if ent.created.Before(cutoff) {
			delete(s.sessions, id)
			if s.logger != nil {
				s.logger.Debug("session expired", "request_id", id)
			}
		}
	}
}

// evictOldestLocked drops the least recently registered session. Caller holds s.mu.
func (s *Store) evictOldestLocked() {
	oldestID := 0
	var oldestSeq uint64
	for id, ent := range s.sessions {
		if oldestID == 0 || ent.seq < oldestSeq {
			oldestID = id
			oldestSeq = ent.seq
		}
	}
	if oldestID == 0 {
		return
	}
	delete(s.sessions, oldestID)
	if s.logger != nil {
		s.logger.Warn("session store full, evicted oldest session", "request_id", oldestID)
	}
}

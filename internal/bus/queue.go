package bus

import (
	"fmt"
	"sync"
)

// Pending is a publish waiting for a connection.
type Pending struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// Queue buffers publishes issued while disconnected.
//
// Drain must return every pending entry in submission order and leave the
// queue empty.
type Queue interface {
	Push(p Pending) error
	Drain() ([]Pending, error)
	Len() int
}

// MemoryQueue is an in-memory FIFO Queue.
//
// Thread Safety: All methods are safe for concurrent use.
type MemoryQueue struct {
	mu      sync.Mutex
	items   []Pending
	maxSize int
}

// NewMemoryQueue creates a queue holding at most maxSize entries.
// Zero means unbounded.
func NewMemoryQueue(maxSize int) *MemoryQueue {
	return &MemoryQueue{maxSize: maxSize}
}

// Push appends p, or returns ErrQueueFull.
func (q *MemoryQueue) Push(p Pending) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		return fmt.Errorf("%w: %d messages pending", ErrQueueFull, len(q.items))
	}
	q.items = append(q.items, p)
	return nil
}

// Drain removes and returns all entries in FIFO order.
func (q *MemoryQueue) Drain() ([]Pending, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items, nil
}

// Len returns the number of pending entries.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

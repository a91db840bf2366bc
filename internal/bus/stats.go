package bus

import "sync/atomic"

// Stats is a snapshot of bus traffic counters since the client was created.
type Stats struct {
	Published           uint64
	Queued              uint64
	Flushed             uint64
	FlushDropped        uint64
	QueueRejected       uint64
	Invalid             uint64
	Received            uint64
	Dispatched          uint64
	Configurations      uint64
	Pongs               uint64
	DroppedParse        uint64
	DroppedScope        uint64
	DroppedUnmatched    uint64
	DroppedUnconfigured uint64
	HandlerErrors       uint64
	Connects            uint64
	ConnectionsLost     uint64
}

type counters struct {
	published           atomic.Uint64
	queued              atomic.Uint64
	flushed             atomic.Uint64
	flushDropped        atomic.Uint64
	queueRejected       atomic.Uint64
	invalid             atomic.Uint64
	received            atomic.Uint64
	dispatched          atomic.Uint64
	configurations      atomic.Uint64
	pongs               atomic.Uint64
	droppedParse        atomic.Uint64
	droppedScope        atomic.Uint64
	droppedUnmatched    atomic.Uint64
	droppedUnconfigured atomic.Uint64
	handlerErrors       atomic.Uint64
	connects            atomic.Uint64
	connectionsLost     atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Published:           c.published.Load(),
		Queued:              c.queued.Load(),
		Flushed:             c.flushed.Load(),
		FlushDropped:        c.flushDropped.Load(),
		QueueRejected:       c.queueRejected.Load(),
		Invalid:             c.invalid.Load(),
		Received:            c.received.Load(),
		Dispatched:          c.dispatched.Load(),
		Configurations:      c.configurations.Load(),
		Pongs:               c.pongs.Load(),
		DroppedParse:        c.droppedParse.Load(),
		DroppedScope:        c.droppedScope.Load(),
		DroppedUnmatched:    c.droppedUnmatched.Load(),
		DroppedUnconfigured: c.droppedUnconfigured.Load(),
		HandlerErrors:       c.handlerErrors.Load(),
		Connects:            c.connects.Load(),
		ConnectionsLost:     c.connectionsLost.Load(),
	}
}

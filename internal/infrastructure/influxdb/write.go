package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/orttech/egeoffrey-sdk/internal/bus"
	"github.com/orttech/egeoffrey-sdk/internal/envelope"
)

// Measurement names.
const (
	MeasurementBusStats = "bus_stats"
	MeasurementMessages = "bus_messages"
)

// WriteBusStats records a snapshot of a module's bus counters, tagged with
// the house and the module's full name.
func (c *Client) WriteBusStats(houseID, module string, s bus.Stats, at time.Time) {
	c.writePoint(write.NewPoint(
		MeasurementBusStats,
		map[string]string{
			"house_id": houseID,
			"module":   module,
		},
		statsFields(s),
		at,
	))
}

// WriteMessage counts one observed envelope, tagged by its addressing.
// The payload is not stored.
func (c *Client) WriteMessage(e *envelope.Envelope) {
	tags := map[string]string{
		"house_id":  e.HouseID,
		"sender":    e.Sender,
		"recipient": e.Recipient,
		"command":   e.Command,
	}
	if e.Retain {
		tags["retained"] = "true"
	}

	fields := map[string]interface{}{"count": int64(1)}
	if !e.IsNull {
		fields["bytes"] = int64(len(e.GetData()))
	}

	c.writePoint(write.NewPoint(MeasurementMessages, tags, fields, time.Now()))
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func statsFields(s bus.Stats) map[string]interface{} {
	counters := map[string]uint64{
		"published":            s.Published,
		"queued":               s.Queued,
		"flushed":              s.Flushed,
		"flush_dropped":        s.FlushDropped,
		"queue_rejected":       s.QueueRejected,
		"invalid":              s.Invalid,
		"received":             s.Received,
		"dispatched":           s.Dispatched,
		"configurations":       s.Configurations,
		"pongs":                s.Pongs,
		"dropped_parse":        s.DroppedParse,
		"dropped_scope":        s.DroppedScope,
		"dropped_unmatched":    s.DroppedUnmatched,
		"dropped_unconfigured": s.DroppedUnconfigured,
		"handler_errors":       s.HandlerErrors,
		"connects":             s.Connects,
		"connections_lost":     s.ConnectionsLost,
	}

	fields := make(map[string]interface{}, len(counters))
	for name, v := range counters {
		fields[name] = int64(v) // #nosec G115 -- counters never approach 2^63
	}
	return fields
}

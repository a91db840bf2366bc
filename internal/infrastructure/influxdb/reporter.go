package influxdb

import (
	"context"
	"time"

	"github.com/orttech/egeoffrey-sdk/internal/bus"
)

// StatsSource exposes bus counters, typically a *bus.Client.
type StatsSource interface {
	HouseID() string
	FullName() string
	Stats() bus.Stats
}

// StatsWriter is the write side of Client used by Reporter.
type StatsWriter interface {
	WriteBusStats(houseID, module string, s bus.Stats, at time.Time)
}

// Reporter periodically writes bus counters.
type Reporter struct {
	source   StatsSource
	writer   StatsWriter
	interval time.Duration
}

// NewReporter returns a Reporter sampling source every interval.
func NewReporter(source StatsSource, writer StatsWriter, interval time.Duration) *Reporter {
	return &Reporter{source: source, writer: writer, interval: interval}
}

// Run writes a sample every interval and a final one when ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.sample(time.Now())
			return
		case now := <-ticker.C:
			r.sample(now)
		}
	}
}

func (r *Reporter) sample(at time.Time) {
	r.writer.WriteBusStats(r.source.HouseID(), r.source.FullName(), r.source.Stats(), at)
}

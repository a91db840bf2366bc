// Package influxdb records eGeoffrey bus metrics in InfluxDB v2.
//
// Two measurements are written:
//   - bus_stats: periodic snapshots of a module's bus.Stats counters,
//     tagged with house_id and module, written by Reporter
//   - bus_messages: one point per observed envelope, tagged with its
//     house, sender, recipient and command
//
// Writes use the client's non-blocking batched API. Asynchronous failures
// are delivered to the callback set with SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//
//	go influxdb.NewReporter(busClient, client, cfg.GetStatsInterval()).Run(ctx)
package influxdb

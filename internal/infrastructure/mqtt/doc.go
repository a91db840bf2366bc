// Package mqtt connects the eGeoffrey bus client to the MQTT gateway.
//
// Client implements bus.Transport on top of paho.mqtt.golang:
//   - TCP, TLS, websocket and secure websocket gateways
//   - House credentials (house id / passcode) and optional client certificates
//   - Auto-reconnect with exponential backoff, every reconnection reported
//     to the bus so it can resubscribe and flush its offline queue
//   - Non-blocking publish/subscribe, acknowledgments checked in the background
//
// The topic layout and message semantics live in the topic, envelope and
// bus packages; this package only moves bytes.
//
// # Security Considerations
//
//   - Set gateway.ssl (or EGEOFFREY_GATEWAY_SSL=1) outside a trusted network
//   - The house passcode is the MQTT password and is never logged
//
// # Usage
//
//	transport := mqtt.New(cfg.Gateway)
//	transport.SetLogger(logger)
//
//	client, err := bus.New(bus.Options{
//	    HouseID:   cfg.House.ID,
//	    Passcode:  cfg.House.Passcode,
//	    Scope:     "system",
//	    Name:      "monitor",
//	    Transport: transport,
//	})
package mqtt

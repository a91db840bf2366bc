// Package topic builds, parses and matches eGeoffrey bus topics.
//
// Every message exchanged on the bus is addressed by a structured topic:
//
//	egeoffrey/v1/<house>/<sender-scope>/<sender-name>/<recipient-scope>/<recipient-name>/<command>[/<args...>]
//
// Configuration messages (command CONF) carry the configuration schema
// version as the first argument segment:
//
//	egeoffrey/v1/house1/controller/config/*/*/CONF/2/house
//
// # Patterns
//
// Listener registrations produce patterns containing MQTT wildcards:
//   - + matches exactly one segment
//   - # matches one or more trailing segments and must be last
//   - * (house or broadcast recipient) matches any single segment locally
//
// Wildcards are only meaningful in patterns. Addresses used for publishing
// must be concrete.
//
// # Usage
//
//	t := topic.Build("house1", "system/monitor", "controller/config", "GET", "house")
//	addr, err := topic.Parse(t)
//	if topic.Matches("egeoffrey/v1/+/+/+/system/monitor/+/#", t) { ... }
package topic

// Package logging provides structured logging for eGeoffrey modules on top
// of log/slog.
//
// Entries carry service and version fields; ForModule adds house_id and
// module. Levels are debug, info, warn, error and critical, the last
// rendered as CRITICAL.
//
//	logging:
//	  level: "info"      # EGEOFFREY_DEBUG=1 forces debug
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
//	logger := logging.New(cfg.Logging, version).ForModule(cfg.House.ID, "system/monitor")
//	logger.Info("starting module")
//
// Never log the house passcode or InfluxDB tokens.
package logging

// Package migrations embeds the SQLite schema for module-local state.
package migrations

import "embed"

// FS holds the NNNN_name.{up,down}.sql files at its root.
//
//go:embed *.sql
var FS embed.FS

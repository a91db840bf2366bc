// Package database provides the SQLite handle used for module-local state,
// currently the persistent offline publish spool.
//
// Open creates the directory and file (mode 0600), enables WAL and a busy
// timeout, and pins the pool to one connection since SQLite has a single
// writer.
//
// Schema changes are plain SQL files named NNNN_description.up.sql with an
// optional NNNN_description.down.sql. They are passed to Migrate as an
// fs.FS, normally the embedded set from the migrations package:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive. Applied versions are recorded in
// schema_migrations.
package database

// Package database opens the SQLite file that keeps run history and
// applies its schema migrations.
//
// The connection is limited to one open handle: SQLite has a single
// writer, and the automation goroutine and the HTTP API share it. WAL
// mode lets API reads proceed while a run record is being written.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are applied oldest first, each in its own
// transaction. Applied versions are recorded in schema_migrations, so
// Migrate is safe to call on every start.
package database

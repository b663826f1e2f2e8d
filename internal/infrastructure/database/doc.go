// Package database provides SQLite connectivity for the bridge.
//
// The database backs the optional SQLite identity store (store.backend:
// sqlite). It is opened with WAL mode and a busy timeout, limited to a single
// connection, and migrated from SQL files embedded by the migrations package.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Migrations are additive; columns are never renamed.
package database

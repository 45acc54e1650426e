// Package database provides SQLite connectivity for the RF control core.
//
// This package manages:
//   - Database connection with WAL mode and enforced foreign keys
//   - Schema migrations embedded into the binary (see the migrations package)
//   - Connection pool and lifecycle management
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each migration runs in its own transaction.
package database

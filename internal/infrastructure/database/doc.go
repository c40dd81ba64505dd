// Package database provides SQLite connectivity for yolink-bridge.
//
// The bridge keeps one small SQLite file: a cache of the last successful
// device enumeration, used when the YoLink API is unreachable at startup.
//
// This package manages:
//   - Opening the file with WAL mode and a busy timeout
//   - Embedded, versioned schema migrations
//   - Transaction helpers
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600; it holds per-device API tokens
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFromCatalog(cfg.Catalog))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations live in the top-level migrations package as
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql pairs.
package database

// Package database provides SQLite connection management for Fleet Core.
//
// It wraps database/sql with:
//   - Connection setup (WAL mode, busy timeout, foreign keys)
//   - Embedded schema migrations with per-migration transactions
//   - Health checks and lifecycle management
//
// SQLite is configured with a single writer connection; all repositories
// share the same *DB and rely on transactions for atomic read-modify-write.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/fleetcore.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database

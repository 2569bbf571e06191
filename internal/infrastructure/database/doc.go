// Package database provides SQLite connectivity for the intent graph store.
//
// This package manages:
//   - Opening a SQLite file with busy timeout and optional WAL mode
//   - Versioned schema migrations read from an fs.FS
//   - Connection health checks
//
// The graph store keeps at most one row per database, so the connection
// pool is capped at a single connection.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "graph.db"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
package database

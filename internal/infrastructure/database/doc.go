// Package database provides the SQLite connection layer for the SonicLink
// device directory.
//
// The polling core itself holds no persisted state; this package backs the
// directory of configured devices (name, host, hardware address) so the
// fleet survives restarts.
//
// # Features
//
//   - WAL mode with busy-timeout pragmas for concurrent reads
//   - Embedded SQL migrations applied at startup
//   - Health check and pool statistics for the system endpoint
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: "./data/soniclink.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database

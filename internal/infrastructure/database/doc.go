// Package database provides SQLite persistence for homewatch.
//
// The database stores the small amount of local state that survives a
// session: the favorites set and session metadata. Entity state is
// deliberately not persisted; the hub is authoritative and the store is
// reseeded by a fresh snapshot on every connect.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Init(ctx); err != nil {
//	    return err
//	}
package database

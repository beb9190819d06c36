// Package navdb persists analysis runs and their metric tables to SQLite so
// repeated analyses of a study can be compared later.
package navdb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the analysis results database.
type DB struct {
	*sql.DB
}

// Open opens the results database at path, creating it if needed, and
// applies pending migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// retryOnBusy retries fn with exponential backoff while SQLite reports the
// database as busy or locked. Other errors return immediately.
func retryOnBusy(fn func() error) error {
	const maxRetries = 5
	backoff := 10 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil || !isSQLiteBusy(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// isSQLiteBusy reports whether err is a transient SQLite contention error.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// package repositories provides the persistence layer for credentials and playlists.
//
// Each repository is bound to a [Dialect] so that the same contract runs against SQLite
// (default, embedded) and PostgreSQL. Track sequences live in a JSON array column and are
// mutated with single statements using the engine's native JSON functions.
package repositories

import (
	"fmt"
	"time"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// Dialect selects the SQL flavour a repository emits.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectFor maps a database/sql driver name to its [Dialect].
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case shared.DriverSQLite:
		return DialectSQLite, nil
	case shared.DriverPostgres:
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("%w: unsupported database driver %q", shared.ErrInvalidConfig, driver)
	}
}

// Timestamps are stored as UTC unix nanoseconds so both engines order and compare them the same way.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

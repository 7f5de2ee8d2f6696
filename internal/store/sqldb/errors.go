package sqldb

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

// classify maps driver errors onto store sentinels, keeping the original as
// the cause. Unrecognised errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if sentinel := sentinelFor(err); sentinel != nil {
		return sentinel.WithCause(err)
	}
	return err
}

func sentinelFor(err error) *store.Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sentinelForSQLState(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return sentinelForSQLState(string(pqErr.Code))
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return sentinelForSQLite(liteErr.Code())
	}

	return nil
}

func sentinelForSQLState(code string) *store.Error {
	switch code {
	case pgerrcode.UniqueViolation:
		return store.ErrAlreadyExists
	case pgerrcode.ForeignKeyViolation, pgerrcode.CheckViolation, pgerrcode.RestrictViolation:
		return store.ErrConflict
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return store.ErrTransient
	}
	return nil
}

func sentinelForSQLite(code int) *store.Error {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return store.ErrAlreadyExists
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_TRIGGER:
		return store.ErrConflict
	}
	// Extended codes carry the primary code in the low byte.
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return store.ErrTransient
	}
	return nil
}

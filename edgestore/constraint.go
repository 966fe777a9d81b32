package edgestore

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE code for unique violations
// (Class 23).
const pgUniqueViolation = "23505"

// mysqlDuplicateEntry is the MySQL error number for duplicate entries in a
// unique index.
const mysqlDuplicateEntry = 1062

// isUniqueViolation reports if the error resulted from a database uniqueness
// constraint violation, e.g. inserting a duplicate edge identity.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqerr *pq.Error
	if errors.As(err, &pqerr) {
		return pqerr.Code == pgUniqueViolation
	}
	var myerr *mysql.MySQLError
	if errors.As(err, &myerr) {
		return myerr.Number == mysqlDuplicateEntry
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	// Fallback to string matching for wrapped or third-party drivers.
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
	)
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

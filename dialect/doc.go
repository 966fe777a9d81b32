// Package dialect provides the database abstraction shared by all fitting
// storage backends.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The Driver interface wraps all database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with Commit and Rollback, and the
// ExecQuerier interface is implemented by both Driver and Tx.
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/pipeworks/fitting/dialect"
//	    "github.com/pipeworks/fitting/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.SQLite, "file:pipes.db?_pragma=foreign_keys(1)")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// Wrap any driver with dialect.Debug to log every statement through slog.
//
// # Sub-packages
//
//   - dialect/sql: database/sql-backed driver implementation and the query
//     statistics wrapper.
package dialect

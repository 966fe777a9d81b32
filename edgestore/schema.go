package edgestore

import (
	"context"
	"fmt"

	"github.com/pipeworks/fitting/dialect"
)

// Create creates the edge table with its composite unique index and the two
// secondary endpoint indexes. It is idempotent: every statement guards with
// IF NOT EXISTS.
//
// The unique index over (namespace, source_kind, source_id, sink_kind,
// sink_id) enforces the edge identity invariant; the endpoint indexes keep
// BySource and BySink sublinear.
func (s *Store) Create(ctx context.Context) error {
	var stmts []string
	switch d := s.drv.Dialect(); d {
	case dialect.SQLite:
		stmts = []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				%s INTEGER PRIMARY KEY AUTOINCREMENT,
				%s INTEGER NOT NULL DEFAULT 1,
				%s TEXT NOT NULL,
				%s INTEGER NOT NULL CHECK (%[5]s > 0),
				%s TEXT NOT NULL,
				%s INTEGER NOT NULL CHECK (%[7]s > 0)
			)`, Table, ColumnID, ColumnNamespace, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID),
			uniqueIndex(), sourceIndex(), sinkIndex(),
		}
	case dialect.Postgres:
		stmts = []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				%s BIGSERIAL PRIMARY KEY,
				%s INTEGER NOT NULL DEFAULT 1,
				%s TEXT NOT NULL,
				%s BIGINT NOT NULL CHECK (%[5]s > 0),
				%s TEXT NOT NULL,
				%s BIGINT NOT NULL CHECK (%[7]s > 0)
			)`, Table, ColumnID, ColumnNamespace, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID),
			uniqueIndex(), sourceIndex(), sinkIndex(),
		}
	case dialect.MySQL:
		// MySQL lacks CREATE INDEX IF NOT EXISTS; inline all indexes.
		stmts = []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				%s BIGINT AUTO_INCREMENT PRIMARY KEY,
				%s INT NOT NULL DEFAULT 1,
				%s VARCHAR(255) NOT NULL,
				%s BIGINT NOT NULL,
				%s VARCHAR(255) NOT NULL,
				%s BIGINT NOT NULL,
				UNIQUE KEY %[1]s_identity (%[3]s, %[4]s, %[5]s, %[6]s, %[7]s),
				KEY %[1]s_source (%[4]s, %[5]s),
				KEY %[1]s_sink (%[6]s, %[7]s)
			)`, Table, ColumnID, ColumnNamespace, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID),
		}
	default:
		return fmt.Errorf("edgestore: unsupported dialect %q", d)
	}
	for _, stmt := range stmts {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("edgestore: create schema: %w", err)
		}
	}
	return nil
}

func uniqueIndex() string {
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_identity ON %[1]s (%s, %s, %s, %s, %s)",
		Table, ColumnNamespace, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID)
}

func sourceIndex() string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_source ON %[1]s (%s, %s)",
		Table, ColumnSourceKind, ColumnSourceID)
}

func sinkIndex() string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_sink ON %[1]s (%s, %s)",
		Table, ColumnSinkKind, ColumnSinkID)
}

// Package edgestore implements the durable collection of fitting edges.
//
// The store owns the uniqueness invariant: no two edges share the same
// (namespace, source_kind, source_id, sink_kind, sink_id) identity. The
// invariant is enforced by a database unique index, not by in-process
// locking, so concurrent creates of the same tuple race safely: exactly one
// wins and the rest observe a ConstraintError.
package edgestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipeworks/fitting"
	"github.com/pipeworks/fitting/dialect"
	fsql "github.com/pipeworks/fitting/dialect/sql"
)

// Table is the name of the edge table.
const Table = "fittings"

// Columns of the edge table.
const (
	ColumnID         = "id"
	ColumnNamespace  = "namespace"
	ColumnSourceKind = "source_kind"
	ColumnSourceID   = "source_id"
	ColumnSinkKind   = "sink_kind"
	ColumnSinkID     = "sink_id"
)

// Store provides filtered queries and mutations over the edge table.
type Store struct {
	drv dialect.Driver
}

// New returns a Store backed by the given driver.
func New(drv dialect.Driver) *Store {
	return &Store{drv: drv}
}

// Open opens a store from a validated configuration. Driver registration
// (e.g. importing modernc.org/sqlite) is the caller's responsibility.
func Open(cfg fitting.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	drv, err := fsql.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("edgestore: open %s: %w", cfg.Dialect, err)
	}
	return New(drv), nil
}

// Driver returns the underlying driver.
func (s *Store) Driver() dialect.Driver {
	return s.drv
}

// WithDriver returns a copy of the store using drv, typically the original
// driver wrapped with instrumentation such as sql.WithStats or
// dialect.Debug.
func (s *Store) WithDriver(drv dialect.Driver) *Store {
	return &Store{drv: drv}
}

// Close closes the underlying driver.
func (s *Store) Close() error {
	return s.drv.Close()
}

// rebind rewrites ? placeholders into the dialect's placeholder style.
func (s *Store) rebind(query string) string {
	if s.drv.Dialect() != dialect.Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Insert creates a new edge and returns it with its assigned id. It returns
// a *fitting.ConstraintError if an edge with the same identity already
// exists. The insert is atomic with respect to the uniqueness check: the
// unique index is the sole serialization point.
func (s *Store) Insert(ctx context.Context, ns fitting.Namespace, source, sink fitting.EntityRef) (fitting.Edge, error) {
	query := s.rebind(fmt.Sprintf(
		"INSERT INTO %s (%s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?)",
		Table, ColumnNamespace, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID,
	))
	args := []any{int(ns), string(source.Kind), source.ID, string(sink.Kind), sink.ID}
	edge := fitting.Edge{Namespace: ns, Source: source, Sink: sink}
	if s.drv.Dialect() == dialect.Postgres {
		// LastInsertId is not supported by lib/pq; use RETURNING.
		rows := &fsql.Rows{}
		query += " RETURNING " + ColumnID
		if err := s.drv.Query(ctx, query, args, rows); err != nil {
			return fitting.Edge{}, s.wrapInsert(ns, source, sink, err)
		}
		defer rows.Close()
		if rows.Next() {
			if err := rows.Scan(&edge.ID); err != nil {
				return fitting.Edge{}, err
			}
		}
		return edge, rows.Err()
	}
	var res fsql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return fitting.Edge{}, s.wrapInsert(ns, source, sink, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fitting.Edge{}, err
	}
	edge.ID = id
	return edge, nil
}

func (s *Store) wrapInsert(ns fitting.Namespace, source, sink fitting.EntityRef, err error) error {
	if isUniqueViolation(err) {
		return fitting.NewConstraintError(ns, source, sink, err)
	}
	return fmt.Errorf("edgestore: insert edge: %w", err)
}

// BySource returns all edges in the namespace whose source endpoint matches
// ref, ordered by (sink_kind, sink_id) ascending.
func (s *Store) BySource(ctx context.Context, ns fitting.Namespace, ref fitting.EntityRef) ([]fitting.Edge, error) {
	query := s.rebind(fmt.Sprintf(
		"SELECT %s, %s, %s, %s, %s, %s FROM %s WHERE %s = ? AND %s = ? AND %s = ? ORDER BY %s, %s",
		ColumnID, ColumnNamespace, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID,
		Table, ColumnNamespace, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID,
	))
	return s.queryEdges(ctx, query, []any{int(ns), string(ref.Kind), ref.ID})
}

// BySink returns all edges in the namespace whose sink endpoint matches ref,
// ordered by (source_kind, source_id) ascending.
func (s *Store) BySink(ctx context.Context, ns fitting.Namespace, ref fitting.EntityRef) ([]fitting.Edge, error) {
	query := s.rebind(fmt.Sprintf(
		"SELECT %s, %s, %s, %s, %s, %s FROM %s WHERE %s = ? AND %s = ? AND %s = ? ORDER BY %s, %s",
		ColumnID, ColumnNamespace, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID,
		Table, ColumnNamespace, ColumnSinkKind, ColumnSinkID, ColumnSourceKind, ColumnSourceID,
	))
	return s.queryEdges(ctx, query, []any{int(ns), string(ref.Kind), ref.ID})
}

// All returns every edge in the namespace, ordered by id. This is the single
// table scan the materializer builds a whole-namespace mapping from.
func (s *Store) All(ctx context.Context, ns fitting.Namespace) ([]fitting.Edge, error) {
	query := s.rebind(fmt.Sprintf(
		"SELECT %s, %s, %s, %s, %s, %s FROM %s WHERE %s = ? ORDER BY %s",
		ColumnID, ColumnNamespace, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID,
		Table, ColumnNamespace, ColumnID,
	))
	return s.queryEdges(ctx, query, []any{int(ns)})
}

func (s *Store) queryEdges(ctx context.Context, query string, args []any) ([]fitting.Edge, error) {
	rows := &fsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("edgestore: query edges: %w", err)
	}
	defer rows.Close()
	var edges []fitting.Edge
	for rows.Next() {
		var (
			e                 fitting.Edge
			ns                int
			srcKind, sinkKind string
		)
		if err := rows.Scan(&e.ID, &ns, &srcKind, &e.Source.ID, &sinkKind, &e.Sink.ID); err != nil {
			return nil, fmt.Errorf("edgestore: scan edge: %w", err)
		}
		e.Namespace = fitting.Namespace(ns)
		e.Source.Kind = fitting.Kind(srcKind)
		e.Sink.Kind = fitting.Kind(sinkKind)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Delete removes a single edge by id. It is idempotent.
func (s *Store) Delete(ctx context.Context, id int64) error {
	query := s.rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", Table, ColumnID))
	if err := s.drv.Exec(ctx, query, []any{id}, nil); err != nil {
		return fmt.Errorf("edgestore: delete edge %d: %w", id, err)
	}
	return nil
}

// DeleteBySource removes all edges in the namespace whose source endpoint
// matches ref. It is idempotent and returns the number of edges removed.
func (s *Store) DeleteBySource(ctx context.Context, ns fitting.Namespace, ref fitting.EntityRef) (int, error) {
	query := s.rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE %s = ? AND %s = ? AND %s = ?",
		Table, ColumnNamespace, ColumnSourceKind, ColumnSourceID,
	))
	return s.execDelete(ctx, query, []any{int(ns), string(ref.Kind), ref.ID})
}

// DeleteBySink removes all edges in the namespace whose sink endpoint
// matches ref. It is idempotent and returns the number of edges removed.
func (s *Store) DeleteBySink(ctx context.Context, ns fitting.Namespace, ref fitting.EntityRef) (int, error) {
	query := s.rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE %s = ? AND %s = ? AND %s = ?",
		Table, ColumnNamespace, ColumnSinkKind, ColumnSinkID,
	))
	return s.execDelete(ctx, query, []any{int(ns), string(ref.Kind), ref.ID})
}

// DeleteEndpoint removes every edge, in any namespace, where ref appears as
// source or sink. This is the cascade-cleanup primitive used when the
// referenced entity is deleted.
func (s *Store) DeleteEndpoint(ctx context.Context, ref fitting.EntityRef) (int, error) {
	query := s.rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE (%s = ? AND %s = ?) OR (%s = ? AND %s = ?)",
		Table, ColumnSourceKind, ColumnSourceID, ColumnSinkKind, ColumnSinkID,
	))
	return s.execDelete(ctx, query, []any{string(ref.Kind), ref.ID, string(ref.Kind), ref.ID})
}

func (s *Store) execDelete(ctx context.Context, query string, args []any) (int, error) {
	var res fsql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("edgestore: delete edges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Not all drivers report affected rows; the delete itself succeeded.
		return 0, nil
	}
	return int(n), nil
}

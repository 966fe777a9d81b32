package edgestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pipeworks/fitting"
)

// snapshotEdge is the wire form of an edge in a snapshot stream. The
// surrogate id is deliberately not carried: the restoring store assigns its
// own ids.
type snapshotEdge struct {
	Namespace  int    `msgpack:"ns"`
	SourceKind string `msgpack:"sk"`
	SourceID   int64  `msgpack:"si"`
	SinkKind   string `msgpack:"tk"`
	SinkID     int64  `msgpack:"ti"`
}

// Snapshot writes the edges of the given namespaces to w as a msgpack
// stream. With no namespaces given, it dumps DefaultNamespace.
func (s *Store) Snapshot(ctx context.Context, w io.Writer, namespaces ...fitting.Namespace) error {
	if len(namespaces) == 0 {
		namespaces = []fitting.Namespace{fitting.DefaultNamespace}
	}
	enc := msgpack.NewEncoder(w)
	for _, ns := range namespaces {
		edges, err := s.All(ctx, ns)
		if err != nil {
			return err
		}
		for _, e := range edges {
			se := snapshotEdge{
				Namespace:  int(e.Namespace),
				SourceKind: string(e.Source.Kind),
				SourceID:   e.Source.ID,
				SinkKind:   string(e.Sink.Kind),
				SinkID:     e.Sink.ID,
			}
			if err := enc.Encode(se); err != nil {
				return fmt.Errorf("edgestore: encode snapshot: %w", err)
			}
		}
	}
	return nil
}

// Restore reads a msgpack snapshot stream and inserts its edges. Edges that
// already exist in the store are skipped, so restoring into a non-empty
// store is an idempotent merge. It returns the number of edges inserted.
func (s *Store) Restore(ctx context.Context, r io.Reader) (int, error) {
	dec := msgpack.NewDecoder(r)
	inserted := 0
	for {
		var se snapshotEdge
		if err := dec.Decode(&se); err != nil {
			if errors.Is(err, io.EOF) {
				return inserted, nil
			}
			return inserted, fmt.Errorf("edgestore: decode snapshot: %w", err)
		}
		_, err := s.Insert(ctx,
			fitting.Namespace(se.Namespace),
			fitting.Ref(fitting.Kind(se.SourceKind), se.SourceID),
			fitting.Ref(fitting.Kind(se.SinkKind), se.SinkID),
		)
		switch {
		case err == nil:
			inserted++
		case fitting.IsConstraint(err):
			// Already present; merge semantics.
		default:
			return inserted, err
		}
	}
}

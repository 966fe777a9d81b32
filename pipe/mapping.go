// Package pipe provides the in-memory side of the fitting system: whole
// namespace materialization, the scoped mapping cache, and the element-level
// operations (PipeTo, Sources, Descendants, ...) that callers compose into
// pipelines.
package pipe

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pipeworks/fitting"
	"github.com/pipeworks/fitting/edgestore"
)

// fetchConcurrency bounds the number of per-kind batch fetches in flight.
const fetchConcurrency = 4

// Mapping is the materialized source -> [sinks] index for one namespace,
// together with its reverse index and the resolved objects. It is built
// fresh per cache activation and never persisted.
type Mapping struct {
	ns      fitting.Namespace
	forward map[fitting.EntityRef][]fitting.EntityRef
	reverse map[fitting.EntityRef][]fitting.EntityRef
	objects map[fitting.EntityRef]fitting.Entity
}

// Namespace returns the namespace the mapping was built for.
func (m *Mapping) Namespace() fitting.Namespace {
	return m.ns
}

// Len returns the number of distinct sources in the mapping.
func (m *Mapping) Len() int {
	return len(m.forward)
}

// Forward exposes the source -> [sinks] reference index. The returned map
// is the mapping's own; callers must treat it as read-only.
func (m *Mapping) Forward() map[fitting.EntityRef][]fitting.EntityRef {
	return m.forward
}

// Materialize builds the in-memory mapping for one namespace with minimal
// backend round-trips: one edge-table scan plus one batched fetch per
// distinct entity kind referenced, never a per-edge lookup.
//
// Edges whose endpoint kind is unknown to the registry, or whose id fetch
// returned nothing (a deleted entity that has not been cascaded yet), are
// silently skipped. This is the system's tolerance for eventual cascade
// consistency.
func Materialize(ctx context.Context, store *edgestore.Store, reg fitting.Registry, ns fitting.Namespace) (*Mapping, error) {
	edges, err := store.All(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("pipe: materialize namespace %d: %w", ns, err)
	}

	// Distinct refs grouped by kind, preserving first-seen id order.
	byKind := make(map[fitting.Kind][]int64)
	seen := make(map[fitting.EntityRef]struct{})
	for _, e := range edges {
		for _, ref := range []fitting.EntityRef{e.Source, e.Sink} {
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			byKind[ref.Kind] = append(byKind[ref.Kind], ref.ID)
		}
	}

	m := &Mapping{
		ns:      ns,
		forward: make(map[fitting.EntityRef][]fitting.EntityRef),
		reverse: make(map[fitting.EntityRef][]fitting.EntityRef),
		objects: make(map[fitting.EntityRef]fitting.Entity, len(seen)),
	}

	// One batched fetch per kind. Batches resolve independently, so they
	// may run concurrently; each goroutine writes only its own slot.
	hinter, _ := reg.(fitting.PrefetchHinter)
	kinds := make([]fitting.Kind, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	batches := make([][]fitting.Entity, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			fctx := gctx
			if hinter != nil {
				fctx = fitting.WithPrefetch(gctx, hinter.PrefetchHint(kind))
			}
			fetched, err := reg.FetchBatch(fctx, kind, byKind[kind])
			if err != nil {
				if fitting.IsNotRegistered(err) {
					// Kind removed from the universe; its edges
					// dangle and are skipped below.
					return nil
				}
				return fmt.Errorf("pipe: fetch %s batch: %w", kind, err)
			}
			batches[i] = fetched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, kind := range kinds {
		for _, ent := range batches[i] {
			m.objects[fitting.Ref(kind, ent.EntityID())] = ent
		}
	}

	// Re-walk the edges; only edges with both endpoints live make it in.
	for _, e := range edges {
		if _, ok := m.objects[e.Source]; !ok {
			continue
		}
		if _, ok := m.objects[e.Sink]; !ok {
			continue
		}
		m.forward[e.Source] = append(m.forward[e.Source], e.Sink)
		m.reverse[e.Sink] = append(m.reverse[e.Sink], e.Source)
	}
	return m, nil
}

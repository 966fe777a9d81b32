// Package fitting maintains directed, namespaced links ("fittings") between
// arbitrary typed, identified entities, forming independent labeled graphs
// ("pipe namespaces") over a heterogeneous object universe.
//
// Endpoints are referenced by (kind, id) pairs rather than native references,
// so entities of unrelated Go types can be linked without a shared base type.
// A pipeline is just N connections between elements; there are N possible
// pipe namespaces, where each namespace forms an independent source:sink
// mapping.
//
// The package assumes pipe graphs are small: it is reasonable to load a whole
// namespace into memory to optimize repeated queries (see package pipe).
//
// # Structure
//
// The module is split into focused packages:
//
//   - fitting: shared vocabulary (Kind, EntityRef, Edge, Namespace), the
//     collaborator contracts (Registry, EntityStore), and store configuration.
//   - dialect, dialect/sql: database abstraction shared by all backends.
//   - edgestore: the durable edge table, owning the uniqueness invariant.
//   - pipe: in-memory materialization, the scoped mapping cache, and the
//     element-level operations (PipeTo, Sources, Descendants, ...).
//   - registry: an in-memory Registry/EntityStore for embedders and tests.
//
// # Basic usage
//
//	drv, err := sql.Open(dialect.SQLite, "file:pipes.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := edgestore.New(drv)
//	if err := store.Create(ctx); err != nil {
//		log.Fatal(err)
//	}
//	reg := registry.New()
//	registry.Register[*Valve](reg)
//	p := pipe.New(store, reg)
//	if _, err := p.PipeTo(ctx, pump, valve); err != nil {
//		log.Fatal(err)
//	}
//
// Edges are weak: deleting an endpoint entity through pipe.Deleter removes
// every edge referencing it, in every namespace, and reads tolerate edges
// whose endpoint has not been cascaded yet.
package fitting

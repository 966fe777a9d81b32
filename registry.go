package fitting

import "context"

// Registry resolves entity kinds and fetches entities in batches. The core
// never talks to entity tables directly; every resolution of a (kind, id)
// pair into a live object goes through a Registry.
type Registry interface {
	// KindOf returns the kind label of v's type. It returns a
	// *NotRegisteredError for unknown types.
	KindOf(v any) (Kind, error)

	// FetchBatch returns the entities of the given kind with the given
	// ids, in one backend round-trip. Missing ids are omitted from the
	// result, not reported as errors: a deleted entity that has not been
	// cascaded yet is an expected condition.
	FetchBatch(ctx context.Context, kind Kind, ids []int64) ([]Entity, error)
}

// PrefetchHinter is an optional Registry extension. When implemented, the
// materializer passes the hint for each kind to FetchBatch callers so a
// batched fetch can eagerly load related data and avoid secondary
// round-trips. The hint format is backend-specific.
type PrefetchHinter interface {
	PrefetchHint(kind Kind) []string
}

// ctxPrefetchKey is the key used for attaching and reading the prefetch hint.
type ctxPrefetchKey struct{}

// WithPrefetch returns a new context carrying a prefetch hint for a batched
// fetch. The materializer attaches the hint reported by a PrefetchHinter;
// FetchBatch implementations backed by a relational store may consult it to
// eagerly load related rows and avoid secondary round-trips.
func WithPrefetch(ctx context.Context, fields []string) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxPrefetchKey{}, fields)
}

// PrefetchFromContext returns the prefetch hint attached to the context,
// if any.
func PrefetchFromContext(ctx context.Context) []string {
	fields, _ := ctx.Value(ctxPrefetchKey{}).([]string)
	return fields
}

// EntityStore is the per-kind entity storage contract the core depends on
// for cascade cleanup and kind-level queries.
type EntityStore interface {
	// DeleteEntity removes the referenced entity.
	DeleteEntity(ctx context.Context, ref EntityRef) error

	// ExistsEntity reports whether the referenced entity exists.
	ExistsEntity(ctx context.Context, ref EntityRef) (bool, error)

	// ListIDs enumerates the ids of all entities of the given kind.
	ListIDs(ctx context.Context, kind Kind) ([]int64, error)
}

// Cleaner is an optional hook an entity can implement to run custom cleanup
// before its edges are stripped on deletion. Errors returned here are
// logged and swallowed: they never block deletion of the entity.
type Cleaner interface {
	PipeCleanup(ctx context.Context) error
}

// Exempt marks an entity kind as not participating in pipes. Deleting an
// exempt entity skips edge cleanup entirely.
type Exempt interface {
	PipeExempt() bool
}

package pipe

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pipeworks/fitting"
)

// ctxCacheKey is the key used for attaching and reading the scoped cache.
type ctxCacheKey struct{ ns fitting.Namespace }

// WithCache materializes the namespace once and returns a context carrying
// the resulting cache. Every Sources/Sinks call made with the returned
// context (or a descendant) for that namespace answers from the cache,
// amortizing materialization cost across a batch of operations.
//
// The scope is reentrant: if the context already carries a cache for the
// namespace, it is reused without re-materializing and the same context is
// returned. The cache is torn down when the outermost context is discarded;
// there is no process-wide state, so independent logical tasks get
// independent caches by construction.
func (p *Pipeline) WithCache(ctx context.Context, ns ...fitting.Namespace) (context.Context, error) {
	namespace := p.pick(ns)
	if cacheFromContext(ctx, namespace) != nil {
		return ctx, nil
	}
	m, err := Materialize(ctx, p.store, p.registry, namespace)
	if err != nil {
		return nil, err
	}
	scope := uuid.NewString()
	p.log.LogAttrs(ctx, slog.LevelDebug, "pipe cache activated",
		slog.String("scope", scope),
		slog.Int("namespace", int(namespace)),
		slog.Int("sources", m.Len()),
	)
	return context.WithValue(ctx, ctxCacheKey{ns: namespace}, NewCache(m)), nil
}

// cacheFromContext returns the cache installed for the namespace, or nil.
func cacheFromContext(ctx context.Context, ns fitting.Namespace) *Cache {
	c, _ := ctx.Value(ctxCacheKey{ns: ns}).(*Cache)
	return c
}

// CacheFromContext exposes the installed cache for the namespace, if any.
// Callers use it to Replace stale instances after a re-fetch.
func CacheFromContext(ctx context.Context, ns fitting.Namespace) (*Cache, bool) {
	c := cacheFromContext(ctx, ns)
	return c, c != nil
}

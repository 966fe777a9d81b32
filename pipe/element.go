package pipe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pipeworks/fitting"
	"github.com/pipeworks/fitting/edgestore"
)

// Pipeline exposes pipe membership operations over any registered entity
// kind. It composes the edge store with the registry; entities themselves
// only need an id, the rest of the capability lives here.
type Pipeline struct {
	store    *edgestore.Store
	registry fitting.Registry
	entities fitting.EntityStore
	ns       fitting.Namespace
	log      *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithEntityStore attaches the per-kind entity storage used by NoSources
// and DeleteEntity.
func WithEntityStore(es fitting.EntityStore) PipelineOption {
	return func(p *Pipeline) { p.entities = es }
}

// WithNamespace sets the default namespace for operations that are not
// given an explicit one.
func WithNamespace(ns fitting.Namespace) PipelineOption {
	return func(p *Pipeline) { p.ns = ns }
}

// WithLogger sets the logger used for cache activation and cleanup events.
func WithLogger(log *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// New returns a Pipeline over the given store and registry.
func New(store *edgestore.Store, reg fitting.Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:    store,
		registry: reg,
		ns:       fitting.DefaultNamespace,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if es, ok := reg.(fitting.EntityStore); ok && p.entities == nil {
		p.entities = es
	}
	return p
}

// Option configures a single pipeline operation.
type Option func(*callOptions)

type callOptions struct {
	ns      fitting.Namespace
	noClear bool
}

// In selects the namespace the operation works in, overriding the
// pipeline's default.
func In(ns fitting.Namespace) Option {
	return func(o *callOptions) { o.ns = ns }
}

// NoClear makes PipeTo and PipeFrom append an edge instead of replacing all
// current outgoing (respectively incoming) edges first.
func NoClear() Option {
	return func(o *callOptions) { o.noClear = true }
}

func (p *Pipeline) apply(opts []Option) callOptions {
	o := callOptions{ns: p.ns}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (p *Pipeline) pick(ns []fitting.Namespace) fitting.Namespace {
	if len(ns) > 0 && ns[0] != 0 {
		return ns[0]
	}
	return p.ns
}

// Sources returns all entities currently piped into v, ordered by
// (kind, id) of the source. An active cache for the namespace answers
// without touching the store; otherwise the edges are read and each
// opposite endpoint is resolved through the registry, dropping (and
// best-effort deleting) any edge whose endpoint no longer resolves.
//
// A transient entity (no durable identity yet) has no edges: the result is
// empty, not an error.
func (p *Pipeline) Sources(ctx context.Context, v any, opts ...Option) ([]fitting.Entity, error) {
	o := p.apply(opts)
	ref, err := fitting.RefOf(p.registry, v)
	if err != nil {
		if fitting.IsInvalidIdentity(err) {
			return nil, nil
		}
		return nil, err
	}
	if c := cacheFromContext(ctx, o.ns); c != nil {
		return c.SourcesOf(ref), nil
	}
	edges, err := p.store.BySink(ctx, o.ns, ref)
	if err != nil {
		return nil, err
	}
	return p.resolvePeers(ctx, edges, func(e fitting.Edge) fitting.EntityRef { return e.Source })
}

// Sinks returns all entities v currently pipes into, ordered by (kind, id)
// of the sink. Cache and dangling-edge semantics match Sources.
func (p *Pipeline) Sinks(ctx context.Context, v any, opts ...Option) ([]fitting.Entity, error) {
	o := p.apply(opts)
	ref, err := fitting.RefOf(p.registry, v)
	if err != nil {
		if fitting.IsInvalidIdentity(err) {
			return nil, nil
		}
		return nil, err
	}
	if c := cacheFromContext(ctx, o.ns); c != nil {
		return c.SinksOf(ref), nil
	}
	edges, err := p.store.BySource(ctx, o.ns, ref)
	if err != nil {
		return nil, err
	}
	return p.resolvePeers(ctx, edges, func(e fitting.Edge) fitting.EntityRef { return e.Sink })
}

// resolvePeers resolves the peer endpoint of each edge with one batched
// fetch per distinct kind, preserving edge order. Edges whose peer no
// longer resolves are dropped from the result and opportunistically
// deleted; a failed heal is logged and otherwise ignored.
func (p *Pipeline) resolvePeers(ctx context.Context, edges []fitting.Edge, peer func(fitting.Edge) fitting.EntityRef) ([]fitting.Entity, error) {
	if len(edges) == 0 {
		return nil, nil
	}
	byKind := make(map[fitting.Kind][]int64)
	seen := make(map[fitting.EntityRef]struct{})
	for _, e := range edges {
		ref := peer(e)
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		byKind[ref.Kind] = append(byKind[ref.Kind], ref.ID)
	}
	resolved := make(map[fitting.EntityRef]fitting.Entity, len(seen))
	for kind, ids := range byKind {
		fetched, err := p.registry.FetchBatch(ctx, kind, ids)
		if err != nil {
			if fitting.IsNotRegistered(err) {
				continue
			}
			return nil, fmt.Errorf("pipe: fetch %s batch: %w", kind, err)
		}
		for _, ent := range fetched {
			resolved[fitting.Ref(kind, ent.EntityID())] = ent
		}
	}
	out := make([]fitting.Entity, 0, len(edges))
	for _, e := range edges {
		ent, ok := resolved[peer(e)]
		if !ok {
			p.heal(ctx, e)
			continue
		}
		out = append(out, ent)
	}
	return out, nil
}

// heal deletes an edge whose endpoint no longer resolves. Best effort: the
// read that discovered the edge already treats it as absent.
func (p *Pipeline) heal(ctx context.Context, e fitting.Edge) {
	if err := p.store.Delete(ctx, e.ID); err != nil {
		p.log.LogAttrs(ctx, slog.LevelDebug, "dangling edge heal failed",
			slog.Int64("edge", e.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	p.log.LogAttrs(ctx, slog.LevelDebug, "dangling edge healed",
		slog.Int64("edge", e.ID),
		slog.String("source", e.Source.String()),
		slog.String("sink", e.Sink.String()),
	)
}

// PipeTo pipes v into other: it deletes all current outgoing edges of v in
// the namespace (unless NoClear is given), then creates the single edge
// v -> other. With NoClear, creating an edge that already exists returns a
// *fitting.ConstraintError.
func (p *Pipeline) PipeTo(ctx context.Context, v, other any, opts ...Option) (fitting.Edge, error) {
	o := p.apply(opts)
	source, err := fitting.RefOf(p.registry, v)
	if err != nil {
		return fitting.Edge{}, err
	}
	sink, err := fitting.RefOf(p.registry, other)
	if err != nil {
		return fitting.Edge{}, err
	}
	if !o.noClear {
		if _, err := p.store.DeleteBySource(ctx, o.ns, source); err != nil {
			return fitting.Edge{}, err
		}
	}
	return p.store.Insert(ctx, o.ns, source, sink)
}

// PipeFrom pipes v from other: it deletes all current incoming edges of v
// in the namespace (unless NoClear is given), then creates the single edge
// other -> v without clearing other's outgoing edges.
func (p *Pipeline) PipeFrom(ctx context.Context, v, other any, opts ...Option) (fitting.Edge, error) {
	o := p.apply(opts)
	if !o.noClear {
		sink, err := fitting.RefOf(p.registry, v)
		if err != nil {
			return fitting.Edge{}, err
		}
		if _, err := p.store.DeleteBySink(ctx, o.ns, sink); err != nil {
			return fitting.Edge{}, err
		}
	}
	return p.PipeTo(ctx, other, v, append(opts, NoClear())...)
}

// DetachSources deletes all incoming edges of v in the namespace and
// returns the number removed. Idempotent.
func (p *Pipeline) DetachSources(ctx context.Context, v any, opts ...Option) (int, error) {
	o := p.apply(opts)
	ref, err := fitting.RefOf(p.registry, v)
	if err != nil {
		if fitting.IsInvalidIdentity(err) {
			return 0, nil
		}
		return 0, err
	}
	return p.store.DeleteBySink(ctx, o.ns, ref)
}

// DetachSinks deletes all outgoing edges of v in the namespace and returns
// the number removed. Idempotent.
func (p *Pipeline) DetachSinks(ctx context.Context, v any, opts ...Option) (int, error) {
	o := p.apply(opts)
	ref, err := fitting.RefOf(p.registry, v)
	if err != nil {
		if fitting.IsInvalidIdentity(err) {
			return 0, nil
		}
		return 0, err
	}
	return p.store.DeleteBySource(ctx, o.ns, ref)
}

// Detach deletes all edges touching v in the namespace, in both directions,
// and returns the number removed.
func (p *Pipeline) Detach(ctx context.Context, v any, opts ...Option) (int, error) {
	in, err := p.DetachSources(ctx, v, opts...)
	if err != nil {
		return in, err
	}
	out, err := p.DetachSinks(ctx, v, opts...)
	return in + out, err
}

// NoSources returns all entities of sample's kind with zero incoming edges
// in the namespace: the set difference between all ids of the kind and the
// ids appearing as sink in the namespace's edges. Results are ordered by id
// ascending. Requires an entity store.
func (p *Pipeline) NoSources(ctx context.Context, sample any, opts ...Option) ([]fitting.Entity, error) {
	if p.entities == nil {
		return nil, fmt.Errorf("pipe: NoSources requires an entity store")
	}
	o := p.apply(opts)
	kind, err := p.registry.KindOf(sample)
	if err != nil {
		return nil, err
	}
	ids, err := p.entities.ListIDs(ctx, kind)
	if err != nil {
		return nil, err
	}
	edges, err := p.store.All(ctx, o.ns)
	if err != nil {
		return nil, err
	}
	piped := make(map[int64]struct{})
	for _, e := range edges {
		if e.Sink.Kind == kind {
			piped[e.Sink.ID] = struct{}{}
		}
	}
	free := ids[:0:0]
	for _, id := range ids {
		if _, ok := piped[id]; !ok {
			free = append(free, id)
		}
	}
	if len(free) == 0 {
		return nil, nil
	}
	return p.registry.FetchBatch(ctx, kind, free)
}

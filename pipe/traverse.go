package pipe

import (
	"context"

	"github.com/pipeworks/fitting"
)

// Ancestors enumerates every entity reachable from v by following sources,
// in pre-order depth-first order: each frontier node is yielded before its
// own ancestors, which are visited before the next sibling. A visited set
// keyed by entity identity guarantees each entity appears at most once even
// when the edge relation contains cycles or diamonds; v itself is never
// yielded.
func (p *Pipeline) Ancestors(ctx context.Context, v any, opts ...Option) ([]fitting.Entity, error) {
	return p.traverse(ctx, v, p.Sources, opts)
}

// Descendants enumerates every entity reachable from v by following sinks,
// with the same order and cycle guarantees as Ancestors.
func (p *Pipeline) Descendants(ctx context.Context, v any, opts ...Option) ([]fitting.Entity, error) {
	return p.traverse(ctx, v, p.Sinks, opts)
}

func (p *Pipeline) traverse(
	ctx context.Context,
	v any,
	next func(context.Context, any, ...Option) ([]fitting.Entity, error),
	opts []Option,
) ([]fitting.Entity, error) {
	ref, err := fitting.RefOf(p.registry, v)
	if err != nil {
		if fitting.IsInvalidIdentity(err) {
			return nil, nil
		}
		return nil, err
	}
	// The visited set is the sole termination guard: a cycle leads back to
	// an already-visited reference and stops there.
	visited := map[fitting.EntityRef]struct{}{ref: {}}
	var out []fitting.Entity
	var walk func(node any) error
	walk = func(node any) error {
		frontier, err := next(ctx, node, opts...)
		if err != nil {
			return err
		}
		for _, ent := range frontier {
			r, err := fitting.RefOf(p.registry, ent)
			if err != nil {
				return err
			}
			if _, ok := visited[r]; ok {
				continue
			}
			visited[r] = struct{}{}
			out = append(out, ent)
			if err := walk(ent); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}

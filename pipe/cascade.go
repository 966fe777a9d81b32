package pipe

import (
	"context"
	"log/slog"

	"github.com/pipeworks/fitting"
)

// DeleteEntity deletes v through the edge-aware facade: it strips every
// edge referencing v as source or sink, across all namespaces, then removes
// the entity from the entity store.
//
// Edge cleanup never blocks the deletion of the entity itself:
//
//   - an entity marked pipe-exempt skips cleanup entirely;
//   - an entity without a usable positive id cannot participate in edges,
//     so cleanup is short-circuited silently;
//   - a failing entity-supplied cleanup hook is logged and swallowed;
//   - a backend error while stripping edges (e.g. mid-migration) is logged
//     and swallowed.
//
// Only a failure to delete the entity itself is returned.
func (p *Pipeline) DeleteEntity(ctx context.Context, v any) error {
	ref, refErr := fitting.RefOf(p.registry, v)
	switch {
	case exempt(v):
		// No cleanup for exempt kinds.
	case refErr != nil:
		if !fitting.IsInvalidIdentity(refErr) {
			p.log.LogAttrs(ctx, slog.LevelWarn, "edge cleanup skipped",
				slog.String("error", refErr.Error()),
			)
		}
	default:
		if cl, ok := v.(fitting.Cleaner); ok {
			if err := cl.PipeCleanup(ctx); err != nil {
				p.log.LogAttrs(ctx, slog.LevelWarn, "pipe cleanup hook failed",
					slog.String("entity", ref.String()),
					slog.String("error", err.Error()),
				)
			}
		}
		if n, err := p.store.DeleteEndpoint(ctx, ref); err != nil {
			p.log.LogAttrs(ctx, slog.LevelWarn, "edge cleanup failed",
				slog.String("entity", ref.String()),
				slog.String("error", err.Error()),
			)
		} else if n > 0 {
			p.log.LogAttrs(ctx, slog.LevelDebug, "edges unlinked",
				slog.String("entity", ref.String()),
				slog.Int("edges", n),
			)
		}
	}
	if p.entities == nil {
		return nil
	}
	if refErr != nil {
		// Cannot address the entity in the store without a reference.
		return refErr
	}
	return p.entities.DeleteEntity(ctx, ref)
}

func exempt(v any) bool {
	ex, ok := v.(fitting.Exempt)
	return ok && ex.PipeExempt()
}

package pipe

import (
	"github.com/pipeworks/fitting"
)

// Cache answers source/sink point queries from a materialized mapping in
// constant time, instead of re-querying the store. A cache instance is
// valid only for the namespace it was built for: operations asked for a
// different namespace bypass it and materialize fresh.
type Cache struct {
	mapping *Mapping
}

// NewCache wraps a materialized mapping.
func NewCache(m *Mapping) *Cache {
	return &Cache{mapping: m}
}

// Namespace returns the namespace the cache covers.
func (c *Cache) Namespace() fitting.Namespace {
	return c.mapping.ns
}

// SourcesOf returns the resolved source entities piped into ref, in edge
// order. A reference with no durable identity yet returns nil: a transient
// entity never has edges.
func (c *Cache) SourcesOf(ref fitting.EntityRef) []fitting.Entity {
	return c.resolve(c.mapping.reverse[ref])
}

// SinksOf returns the resolved sink entities ref pipes into, in edge order.
func (c *Cache) SinksOf(ref fitting.EntityRef) []fitting.Entity {
	return c.resolve(c.mapping.forward[ref])
}

// Contains reports whether ref participates in the mapping at all.
func (c *Cache) Contains(ref fitting.EntityRef) bool {
	if _, ok := c.mapping.forward[ref]; ok {
		return true
	}
	_, ok := c.mapping.reverse[ref]
	return ok
}

// Replace substitutes the cached object for fresh's (kind, id) slot, so
// later lookups observe the fresher instance, e.g. a more complete
// projection of the same backing row fetched after the cache was built.
// Replacing an entity the mapping does not hold is a no-op.
//
// The mapping is keyed by EntityRef and resolves to objects only at read
// time, so the substitution is a single slot overwrite: no keys or value
// lists need rewriting.
func (c *Cache) Replace(reg fitting.Registry, fresh fitting.Entity) error {
	ref, err := fitting.RefOf(reg, fresh)
	if err != nil {
		return err
	}
	if _, ok := c.mapping.objects[ref]; ok {
		c.mapping.objects[ref] = fresh
	}
	return nil
}

func (c *Cache) resolve(refs []fitting.EntityRef) []fitting.Entity {
	if len(refs) == 0 {
		return nil
	}
	out := make([]fitting.Entity, 0, len(refs))
	for _, r := range refs {
		if ent, ok := c.mapping.objects[r]; ok {
			out = append(out, ent)
		}
	}
	return out
}

// Package registry provides an in-memory implementation of the fitting
// Registry and EntityStore contracts, intended for tests and for embedders
// whose entity universe lives in process.
//
// Kind labels are derived from Go type names (CamelCase singularized and
// snake-cased, e.g. PumpStation -> "pump_station") and can be overridden per
// registration.
package registry

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/pipeworks/fitting"
)

// Memory is an in-memory Registry and EntityStore. It is safe for
// concurrent use.
type Memory struct {
	mu       sync.RWMutex
	kinds    map[reflect.Type]fitting.Kind
	entities map[fitting.Kind]map[int64]fitting.Entity
	hints    map[fitting.Kind][]string
}

// New returns an empty Memory registry.
func New() *Memory {
	return &Memory{
		kinds:    make(map[reflect.Type]fitting.Kind),
		entities: make(map[fitting.Kind]map[int64]fitting.Entity),
		hints:    make(map[fitting.Kind][]string),
	}
}

// Option configures a kind registration.
type Option func(*registration)

type registration struct {
	label fitting.Kind
	hint  []string
}

// WithLabel overrides the derived kind label.
func WithLabel(label fitting.Kind) Option {
	return func(r *registration) { r.label = label }
}

// WithPrefetch sets the prefetch hint reported for the kind.
func WithPrefetch(fields ...string) Option {
	return func(r *registration) { r.hint = fields }
}

// Register registers the Go type of sample as an entity kind and returns its
// label. Registering the same type again is a no-op that returns the
// existing label.
func (m *Memory) Register(sample fitting.Entity, opts ...Option) fitting.Kind {
	t := baseType(sample)
	var reg registration
	for _, opt := range opts {
		opt(&reg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind, ok := m.kinds[t]; ok {
		return kind
	}
	kind := reg.label
	if kind == "" {
		kind = fitting.Kind(inflect.Underscore(inflect.Singularize(t.Name())))
	}
	m.kinds[t] = kind
	m.entities[kind] = make(map[int64]fitting.Entity)
	if len(reg.hint) > 0 {
		m.hints[kind] = reg.hint
	}
	return kind
}

// Deregister removes a kind and all its entities, as if the kind were
// deleted from the content-type universe. Edges referencing it become
// dangling and are skipped on read.
func (m *Memory) Deregister(kind fitting.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for t, k := range m.kinds {
		if k == kind {
			delete(m.kinds, t)
		}
	}
	delete(m.entities, kind)
	delete(m.hints, kind)
}

// KindOf implements fitting.Registry.
func (m *Memory) KindOf(v any) (fitting.Kind, error) {
	t := baseType(v)
	m.mu.RLock()
	defer m.mu.RUnlock()
	kind, ok := m.kinds[t]
	if !ok {
		return "", &fitting.NotRegisteredError{TypeName: reflect.TypeOf(v).String()}
	}
	return kind, nil
}

// Put stores an entity under its registered kind. The entity must carry a
// positive id.
func (m *Memory) Put(v fitting.Entity) (fitting.EntityRef, error) {
	ref, err := fitting.RefOf(m, v)
	if err != nil {
		return fitting.EntityRef{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[ref.Kind][ref.ID] = v
	return ref, nil
}

// Get returns the entity with the given reference, or nil if absent.
func (m *Memory) Get(ref fitting.EntityRef) fitting.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entities[ref.Kind][ref.ID]
}

// FetchBatch implements fitting.Registry. Missing ids are omitted from the
// result, not reported as errors.
func (m *Memory) FetchBatch(_ context.Context, kind fitting.Kind, ids []int64) ([]fitting.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table, ok := m.entities[kind]
	if !ok {
		return nil, &fitting.NotRegisteredError{Kind: kind}
	}
	out := make([]fitting.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := table[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// PrefetchHint implements fitting.PrefetchHinter.
func (m *Memory) PrefetchHint(kind fitting.Kind) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hints[kind]
}

// DeleteEntity implements fitting.EntityStore. Deleting an absent entity is
// a no-op.
func (m *Memory) DeleteEntity(_ context.Context, ref fitting.EntityRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if table, ok := m.entities[ref.Kind]; ok {
		delete(table, ref.ID)
	}
	return nil
}

// ExistsEntity implements fitting.EntityStore.
func (m *Memory) ExistsEntity(_ context.Context, ref fitting.EntityRef) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table, ok := m.entities[ref.Kind]
	if !ok {
		return false, nil
	}
	_, ok = table[ref.ID]
	return ok, nil
}

// ListIDs implements fitting.EntityStore. The ids are sorted ascending.
func (m *Memory) ListIDs(_ context.Context, kind fitting.Kind) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table, ok := m.entities[kind]
	if !ok {
		return nil, &fitting.NotRegisteredError{Kind: kind}
	}
	ids := make([]int64, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// baseType returns the non-pointer type of v.
func baseType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

var (
	_ fitting.Registry       = (*Memory)(nil)
	_ fitting.PrefetchHinter = (*Memory)(nil)
	_ fitting.EntityStore    = (*Memory)(nil)
)

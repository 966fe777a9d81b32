package fitting

import (
	"fmt"
)

// Namespace partitions the edge set into independent graphs. Callers that
// need only one graph can ignore namespaces entirely and work in
// DefaultNamespace.
type Namespace int

// DefaultNamespace is the namespace assumed by every operation that is not
// given an explicit one.
const DefaultNamespace Namespace = 1

// Kind is the stable identifier of an entity kind. It is the persisted form
// of a Go type: the Registry owns the mapping between the two.
type Kind string

// EntityRef identifies any entity in the universe by (kind, id), without
// requiring a shared base type. It is comparable and used as a map key
// throughout; equality is structural.
type EntityRef struct {
	Kind Kind
	ID   int64
}

// Ref returns an EntityRef for the given kind and id.
func Ref(kind Kind, id int64) EntityRef {
	return EntityRef{Kind: kind, ID: id}
}

// Valid reports whether the reference can participate in edges: a non-empty
// kind and a positive id. Entities with composite or natural keys have no
// usable id and never carry edges.
func (r EntityRef) Valid() bool {
	return r.Kind != "" && r.ID > 0
}

// String returns the "kind/id" form of the reference.
func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Less orders references by (kind, id) ascending. Edge query results are
// ordered by the peer endpoint with this ordering for determinism.
func (r EntityRef) Less(other EntityRef) bool {
	if r.Kind != other.Kind {
		return r.Kind < other.Kind
	}
	return r.ID < other.ID
}

// Edge is a directional fitting in a pipeline: a link from a source endpoint
// to a sink endpoint within one namespace. An edge does not own its
// endpoints; it holds weak references by (kind, id) only.
type Edge struct {
	// ID is the surrogate key assigned by the store. Zero for edges that
	// have not been persisted.
	ID int64

	Namespace Namespace
	Source    EntityRef
	Sink      EntityRef
}

// View returns the serialization form of the edge for external consumption.
func (e Edge) View() EdgeView {
	return EdgeView{
		ID:        e.ID,
		Namespace: e.Namespace,
		Source:    RefView{Kind: e.Source.Kind, ID: e.Source.ID},
		Sink:      RefView{Kind: e.Sink.Kind, ID: e.Sink.ID},
	}
}

// EdgeView is the JSON rendition of an Edge.
type EdgeView struct {
	ID        int64     `json:"id"`
	Namespace Namespace `json:"namespace"`
	Source    RefView   `json:"source"`
	Sink      RefView   `json:"sink"`
}

// RefView is the JSON rendition of an EntityRef.
type RefView struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

// MapView groups a set of edges by source reference, each rendered as an
// EdgeView. It is the grouped form of a namespace dump.
func MapView(edges []Edge) map[RefView][]EdgeView {
	m := make(map[RefView][]EdgeView)
	for _, e := range edges {
		k := RefView{Kind: e.Source.Kind, ID: e.Source.ID}
		m[k] = append(m[k], e.View())
	}
	return m
}

// Entity is the minimal surface an object needs to participate in pipes:
// a durable positive integer id. The kind half of its identity comes from
// the Registry.
type Entity interface {
	EntityID() int64
}

// RefOf resolves the (kind, id) reference of v through the registry.
// It returns an *InvalidIdentityError if v does not expose a usable id,
// and a *NotRegisteredError if v's type is unknown to the registry.
func RefOf(reg Registry, v any) (EntityRef, error) {
	kind, err := reg.KindOf(v)
	if err != nil {
		return EntityRef{}, err
	}
	ent, ok := v.(Entity)
	if !ok {
		return EntityRef{}, &InvalidIdentityError{Kind: kind}
	}
	id := ent.EntityID()
	if id <= 0 {
		return EntityRef{}, &InvalidIdentityError{Kind: kind, ID: id}
	}
	return EntityRef{Kind: kind, ID: id}, nil
}

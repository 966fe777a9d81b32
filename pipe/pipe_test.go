package pipe_test

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/pipeworks/fitting"
	"github.com/pipeworks/fitting/dialect"
	fsql "github.com/pipeworks/fitting/dialect/sql"
	"github.com/pipeworks/fitting/edgestore"
	"github.com/pipeworks/fitting/pipe"
	"github.com/pipeworks/fitting/registry"
)

type Pump struct {
	ID   int64
	Name string
}

func (p *Pump) EntityID() int64 { return p.ID }

type Valve struct{ ID int64 }

func (v *Valve) EntityID() int64 { return v.ID }

type Tank struct{ ID int64 }

func (t *Tank) EntityID() int64 { return t.ID }

// Gauge is pipe-exempt: deleting one never touches the edge table.
type Gauge struct{ ID int64 }

func (g *Gauge) EntityID() int64 { return g.ID }
func (g *Gauge) PipeExempt() bool { return true }

// Sensor carries a cleanup hook that can be made to fail.
type Sensor struct {
	ID         int64
	CleanupErr error
	CleanedUp  bool
}

func (s *Sensor) EntityID() int64 { return s.ID }
func (s *Sensor) PipeCleanup(context.Context) error {
	s.CleanedUp = true
	return s.CleanupErr
}

// fixture wires an in-memory store, a populated registry and a pipeline.
type fixture struct {
	store *edgestore.Store
	reg   *registry.Memory
	pl    *pipe.Pipeline
}

var dbSeq atomic.Int64

func newFixture(t *testing.T, opts ...pipe.PipelineOption) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", "#", "_").Replace(t.Name())
	drv, err := fsql.Open(dialect.SQLite,
		fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)))
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	store := edgestore.New(drv)
	require.NoError(t, store.Create(context.Background()))
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	reg := registry.New()
	reg.Register(&Pump{})
	reg.Register(&Valve{})
	reg.Register(&Tank{})
	reg.Register(&Gauge{})
	reg.Register(&Sensor{})
	return &fixture{store: store, reg: reg, pl: pipe.New(store, reg, opts...)}
}

func (f *fixture) pump(t *testing.T, id int64) *Pump {
	t.Helper()
	p := &Pump{ID: id}
	_, err := f.reg.Put(p)
	require.NoError(t, err)
	return p
}

func (f *fixture) valve(t *testing.T, id int64) *Valve {
	t.Helper()
	v := &Valve{ID: id}
	_, err := f.reg.Put(v)
	require.NoError(t, err)
	return v
}

func (f *fixture) tank(t *testing.T, id int64) *Tank {
	t.Helper()
	tk := &Tank{ID: id}
	_, err := f.reg.Put(tk)
	require.NoError(t, err)
	return tk
}

// refs projects entities onto their references for order-sensitive asserts.
func refs(t *testing.T, reg fitting.Registry, ents []fitting.Entity) []fitting.EntityRef {
	t.Helper()
	out := make([]fitting.EntityRef, 0, len(ents))
	for _, e := range ents {
		r, err := fitting.RefOf(reg, e)
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

// refSet projects entities onto an unordered reference set.
func refSet(t *testing.T, reg fitting.Registry, ents []fitting.Entity) map[fitting.EntityRef]struct{} {
	t.Helper()
	out := make(map[fitting.EntityRef]struct{}, len(ents))
	for _, r := range refs(t, reg, ents) {
		out[r] = struct{}{}
	}
	return out
}

// countingRegistry counts batched fetches to prove I/O bounds.
type countingRegistry struct {
	*registry.Memory
	fetches atomic.Int64
}

func (c *countingRegistry) FetchBatch(ctx context.Context, kind fitting.Kind, ids []int64) ([]fitting.Entity, error) {
	c.fetches.Add(1)
	return c.Memory.FetchBatch(ctx, kind, ids)
}

package pipe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeworks/fitting"
	fsql "github.com/pipeworks/fitting/dialect/sql"
	"github.com/pipeworks/fitting/pipe"
	"github.com/pipeworks/fitting/registry"
)

func TestMaterialize(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a, b, c := f.pump(t, 1), f.valve(t, 2), f.tank(t, 3)
	_, err := f.pl.PipeTo(ctx, a, b)
	require.NoError(t, err)
	_, err = f.pl.PipeTo(ctx, b, c)
	require.NoError(t, err)

	m, err := pipe.Materialize(ctx, f.store, f.reg, fitting.DefaultNamespace)
	require.NoError(t, err)
	assert.Equal(t, fitting.DefaultNamespace, m.Namespace())
	assert.Equal(t, 2, m.Len())

	cache := pipe.NewCache(m)
	sinks := cache.SinksOf(fitting.Ref("pump", 1))
	require.Len(t, sinks, 1)
	assert.Same(t, b, sinks[0])
	sources := cache.SourcesOf(fitting.Ref("tank", 3))
	require.Len(t, sources, 1)
	assert.Same(t, b, sources[0])
}

// TestMaterializeQueryBound proves the I/O contract: for N edges spanning K
// distinct entity kinds, materialization issues exactly one edge scan and
// one batched fetch per kind, regardless of N.
func TestMaterializeQueryBound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// 12 edges over 3 kinds.
	for i := int64(1); i <= 4; i++ {
		pump, valve, tank := f.pump(t, i), f.valve(t, i), f.tank(t, i)
		_, err := f.pl.PipeTo(ctx, pump, valve)
		require.NoError(t, err)
		_, err = f.pl.PipeTo(ctx, valve, tank)
		require.NoError(t, err)
		_, err = f.pl.PipeTo(ctx, tank, pump, pipe.NoClear())
		require.NoError(t, err)
	}

	var stats fsql.QueryStats
	counted := fsql.WithStats(f.store.Driver(), &stats)
	creg := &countingRegistry{Memory: f.reg}

	m, err := pipe.Materialize(ctx, f.store.WithDriver(counted), creg, fitting.DefaultNamespace)
	require.NoError(t, err)
	assert.Equal(t, 12, mappingEdges(m))

	assert.Equal(t, int64(1), stats.Stats().TotalQueries, "one edge-table scan")
	assert.Equal(t, int64(0), stats.Stats().TotalExecs)
	assert.Equal(t, int64(3), creg.fetches.Load(), "one batched fetch per kind")
}

func mappingEdges(m *pipe.Mapping) int {
	n := 0
	for _, sinks := range m.Forward() {
		n += len(sinks)
	}
	return n
}

func TestMaterializeSkipsDangling(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a, b, c := f.pump(t, 1), f.valve(t, 2), f.tank(t, 3)
	_, err := f.pl.PipeTo(ctx, a, b)
	require.NoError(t, err)
	_, err = f.pl.PipeTo(ctx, a, c, pipe.NoClear())
	require.NoError(t, err)

	// b's row is gone but its edge was not cascaded yet.
	require.NoError(t, f.reg.DeleteEntity(ctx, fitting.Ref("valve", 2)))

	m, err := pipe.Materialize(ctx, f.store, f.reg, fitting.DefaultNamespace)
	require.NoError(t, err)
	cache := pipe.NewCache(m)
	sinks := cache.SinksOf(fitting.Ref("pump", 1))
	require.Len(t, sinks, 1)
	assert.Same(t, c, sinks[0])
}

func TestMaterializeSkipsDeregisteredKind(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a, b := f.pump(t, 1), f.valve(t, 2)
	_, err := f.pl.PipeTo(ctx, a, b)
	require.NoError(t, err)
	f.reg.Deregister("valve")

	m, err := pipe.Materialize(ctx, f.store, f.reg, fitting.DefaultNamespace)
	require.NoError(t, err)
	assert.Zero(t, m.Len())
}

// prefetchRegistry records the hint it observes during FetchBatch.
type prefetchRegistry struct {
	*countingRegistry
	observed map[fitting.Kind][]string
}

func (p *prefetchRegistry) FetchBatch(ctx context.Context, kind fitting.Kind, ids []int64) ([]fitting.Entity, error) {
	p.observed[kind] = fitting.PrefetchFromContext(ctx)
	return p.countingRegistry.FetchBatch(ctx, kind, ids)
}

func (p *prefetchRegistry) PrefetchHint(kind fitting.Kind) []string {
	return p.Memory.PrefetchHint(kind)
}

func TestMaterializePrefetchHint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := registry.New()
	mem.Register(&Pump{}, registry.WithPrefetch("impeller", "motor"))
	mem.Register(&Valve{})
	reg := &prefetchRegistry{
		countingRegistry: &countingRegistry{Memory: mem},
		observed:         make(map[fitting.Kind][]string),
	}

	f := newFixture(t)
	pl := pipe.New(f.store, mem)
	a, b := &Pump{ID: 1}, &Valve{ID: 2}
	_, err := mem.Put(a)
	require.NoError(t, err)
	_, err = mem.Put(b)
	require.NoError(t, err)
	_, err = pl.PipeTo(ctx, a, b)
	require.NoError(t, err)

	_, err = pipe.Materialize(ctx, f.store, reg, fitting.DefaultNamespace)
	require.NoError(t, err)
	assert.Equal(t, []string{"impeller", "motor"}, reg.observed["pump"])
	assert.Nil(t, reg.observed["valve"])
}

package pipe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeworks/fitting"
	"github.com/pipeworks/fitting/pipe"
)

func TestDeleteEntityCascades(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a, b, c := f.pump(t, 1), f.valve(t, 2), f.tank(t, 3)
	// b participates in several namespaces, in both directions.
	_, err := f.pl.PipeTo(ctx, a, b)
	require.NoError(t, err)
	_, err = f.pl.PipeTo(ctx, b, c)
	require.NoError(t, err)
	_, err = f.pl.PipeTo(ctx, c, b, pipe.In(2))
	require.NoError(t, err)
	_, err = f.pl.PipeTo(ctx, a, c, pipe.In(2))
	require.NoError(t, err)

	require.NoError(t, f.pl.DeleteEntity(ctx, b))

	// Entity row gone.
	ok, err := f.reg.ExistsEntity(ctx, fitting.Ref("valve", 2))
	require.NoError(t, err)
	assert.False(t, ok)

	// Every edge touching b removed, in every namespace; others intact.
	for _, ns := range []fitting.Namespace{1, 2} {
		edges, err := f.store.All(ctx, ns)
		require.NoError(t, err)
		for _, e := range edges {
			assert.NotEqual(t, fitting.Ref("valve", 2), e.Source)
			assert.NotEqual(t, fitting.Ref("valve", 2), e.Sink)
		}
	}
	edges, err := f.store.All(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestDeleteEntityExempt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	g := &Gauge{ID: 1}
	_, err := f.reg.Put(g)
	require.NoError(t, err)
	// An edge referencing the exempt gauge, created at the store level.
	_, err = f.store.Insert(ctx, 1, fitting.Ref("gauge", 1), fitting.Ref("valve", 9))
	require.NoError(t, err)

	require.NoError(t, f.pl.DeleteEntity(ctx, g))

	// Exempt: the entity is gone but its edges were left alone.
	ok, err := f.reg.ExistsEntity(ctx, fitting.Ref("gauge", 1))
	require.NoError(t, err)
	assert.False(t, ok)
	edges, err := f.store.All(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestDeleteEntityCleanupHook(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s := &Sensor{ID: 1}
	_, err := f.reg.Put(s)
	require.NoError(t, err)
	_, err = f.pl.PipeTo(ctx, s, f.valve(t, 2))
	require.NoError(t, err)

	require.NoError(t, f.pl.DeleteEntity(ctx, s))
	assert.True(t, s.CleanedUp)

	edges, err := f.store.All(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestDeleteEntityCleanupFailureSwallowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s := &Sensor{ID: 1, CleanupErr: errors.New("boom")}
	_, err := f.reg.Put(s)
	require.NoError(t, err)
	_, err = f.pl.PipeTo(ctx, s, f.valve(t, 2))
	require.NoError(t, err)

	// The failing hook is logged and swallowed; edges are still
	// stripped and the entity is still deleted.
	require.NoError(t, f.pl.DeleteEntity(ctx, s))
	assert.True(t, s.CleanedUp)

	edges, err := f.store.All(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, edges)
	ok, err := f.reg.ExistsEntity(ctx, fitting.Ref("sensor", 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteEntityInvalidIdentity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// No usable id: cleanup short-circuits and the unresolvable
	// reference is reported, since nothing can be addressed.
	err := f.pl.DeleteEntity(context.Background(), &Pump{})
	require.Error(t, err)
	assert.True(t, fitting.IsInvalidIdentity(err))
}

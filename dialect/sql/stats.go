package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pipeworks/fitting/dialect"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements,
	// in nanoseconds.
	TotalDuration atomic.Int64
	// Errors is the count of statement errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	Errors        int64
}

// Statements returns the total number of statements in the snapshot.
func (s StatsSnapshot) Statements() int64 {
	return s.TotalQueries + s.TotalExecs
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d duration=%s errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.Errors)
}

// StatsDriver wraps a Driver with query statistics collection. It is also
// how the test suite proves I/O bounds such as "one scan plus one fetch per
// kind" without instrumenting the store itself.
type StatsDriver struct {
	dialect.Driver
	stats *QueryStats
	log   *slog.Logger
}

// WithStats wraps a driver with statistics collection.
func WithStats(drv dialect.Driver, stats *QueryStats) *StatsDriver {
	return &StatsDriver{Driver: drv, stats: stats, log: slog.Default()}
}

// Stats returns the collected statistics.
func (d *StatsDriver) Stats() StatsSnapshot {
	return d.stats.Stats()
}

// Exec counts the statement and delegates to the underlying driver.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.observe(ctx, &d.stats.TotalExecs, query, start, err)
	return err
}

// Query counts the statement and delegates to the underlying driver.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.observe(ctx, &d.stats.TotalQueries, query, start, err)
	return err
}

func (d *StatsDriver) observe(ctx context.Context, counter *atomic.Int64, query string, start time.Time, err error) {
	counter.Add(1)
	d.stats.TotalDuration.Add(int64(time.Since(start)))
	if err != nil {
		d.stats.Errors.Add(1)
		d.log.LogAttrs(ctx, slog.LevelDebug, "statement failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
	}
}

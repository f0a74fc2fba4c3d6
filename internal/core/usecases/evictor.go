package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/pkg/metrics"
)

// Default eviction timings.
const (
	DefaultSessionTimeout = 30 * time.Minute
	DefaultSweepInterval  = 5 * time.Minute
)

// SweepReport summarises one eviction pass.
type SweepReport struct {
	Checked  int
	Sessions []string
	// TestIDs counts identities dropped with their session.
	TestIDs int
	Orphans []string
}

// Evictor periodically drops sessions that stopped reporting and the test
// ids tied to them.
//
// The session store and the test registry are locked independently, so a
// sweep is not atomic across them. A session that reports between the
// snapshot and the removal survives; a test id issued for a session in the
// instant it is evicted may be dropped with it, and the client must request
// a new one.
type Evictor struct {
	sessions ports.SessionStore
	tests    ports.TestIdentityRegistry
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	onSweep  func(SweepReport)
}

// EvictorOption configures an Evictor.
type EvictorOption func(*Evictor)

// WithEvictorClock replaces the time source used by Run.
func WithEvictorClock(now func() time.Time) EvictorOption {
	return func(e *Evictor) { e.now = now }
}

// WithEvictorLogger sets the logger.
func WithEvictorLogger(l *slog.Logger) EvictorOption {
	return func(e *Evictor) { e.logger = l }
}

// WithSweepHook registers a callback invoked after each completed sweep.
func WithSweepHook(fn func(SweepReport)) EvictorOption {
	return func(e *Evictor) { e.onSweep = fn }
}

// NewEvictor creates an Evictor. Non-positive durations fall back to the
// defaults.
func NewEvictor(sessions ports.SessionStore, tests ports.TestIdentityRegistry, timeout, interval time.Duration, opts ...EvictorOption) *Evictor {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	e := &Evictor{
		sessions: sessions,
		tests:    tests,
		timeout:  timeout,
		interval: interval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sweep removes every session last seen more than timeout before now, or
// holding an invalid record, together with its test id. Test ids issued
// before the cutoff whose session is no longer live are dropped too.
func (e *Evictor) Sweep(now time.Time) SweepReport {
	cutoff := now.Add(-e.timeout)

	snapshot := e.sessions.Snapshot()
	var stale []string
	for _, s := range snapshot {
		if !s.Valid() || s.LastSeen.Before(cutoff) {
			stale = append(stale, s.ID)
		}
	}

	removed := e.sessions.RemoveStale(stale, cutoff)
	testIDs := e.tests.Remove(removed...)

	live := make(map[string]struct{})
	for _, id := range e.sessions.ListIDs() {
		live[id] = struct{}{}
	}
	orphans := e.tests.RemoveIssuedBefore(cutoff, func(id string) bool {
		_, ok := live[id]
		return ok
	})

	return SweepReport{Checked: len(snapshot), Sessions: removed, TestIDs: testIDs, Orphans: orphans}
}

// Run sweeps once per interval until ctx is cancelled. A failing sweep is
// logged and counted; the loop keeps going.
func (e *Evictor) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("evictor started", "timeout", e.timeout, "interval", e.interval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("evictor stopped")
			return
		case <-ticker.C:
			if err := e.safeSweep(); err != nil {
				metrics.SweepFailures.Inc()
				e.logger.Error("eviction sweep failed", "error", err)
			}
		}
	}
}

func (e *Evictor) safeSweep() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	start := time.Now()
	report := e.Sweep(e.now())
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	metrics.SessionsEvicted.Add(float64(len(report.Sessions)))
	metrics.TestIDsEvicted.Add(float64(report.TestIDs + len(report.Orphans)))
	metrics.ActiveSessions.Set(float64(e.sessions.Len()))

	if len(report.Sessions) > 0 || len(report.Orphans) > 0 {
		e.logger.Info("evicted stale sessions",
			"checked", report.Checked,
			"sessions", len(report.Sessions),
			"orphaned_test_ids", len(report.Orphans),
		)
	}
	if e.onSweep != nil {
		e.onSweep(report)
	}
	return nil
}

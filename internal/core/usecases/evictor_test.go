package usecases_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/signalmap/internal/adapters/memory"
	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/usecases"
)

func TestEvictor_SweepRemovesStaleSessionsAndTestIDs(t *testing.T) {
	sessions := memory.NewSessionStore()
	tests := memory.NewTestRegistry(nil)
	timeout := 30 * time.Minute

	require.NoError(t, sessions.Upsert("stale", domain.GeoPoint{Lat: 43, Lon: -76}, fixedNow.Add(-31*time.Minute)))
	require.NoError(t, sessions.Upsert("fresh", domain.GeoPoint{Lat: 43, Lon: -76}, fixedNow.Add(-29*time.Minute)))
	_, _ = tests.Issue("stale", fixedNow.Add(-40*time.Minute))
	_, _ = tests.Issue("fresh", fixedNow.Add(-40*time.Minute))
	_, _ = tests.Issue("never-reported", fixedNow.Add(-45*time.Minute))
	_, _ = tests.Issue("just-started", fixedNow.Add(-time.Minute))

	ev := usecases.NewEvictor(sessions, tests, timeout, time.Minute)
	report := ev.Sweep(fixedNow)

	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, []string{"stale"}, report.Sessions)
	assert.Equal(t, 1, report.TestIDs)
	assert.Equal(t, []string{"never-reported"}, report.Orphans)

	assert.Equal(t, []string{"fresh"}, sessions.ListIDs())
	_, err := tests.Lookup("stale")
	assert.ErrorIs(t, err, domain.ErrNoActiveTestForSession)
	_, err = tests.Lookup("fresh")
	assert.NoError(t, err)
	_, err = tests.Lookup("just-started")
	assert.NoError(t, err)
}

func TestEvictor_ExactlyTimeoutSurvives(t *testing.T) {
	sessions := memory.NewSessionStore()
	require.NoError(t, sessions.Upsert("edge", domain.GeoPoint{}, fixedNow.Add(-30*time.Minute)))

	report := usecases.NewEvictor(sessions, memory.NewTestRegistry(nil), 30*time.Minute, time.Minute).Sweep(fixedNow)
	assert.Empty(t, report.Sessions)
	assert.Equal(t, 1, sessions.Len())
}

func TestEvictor_Defaults(t *testing.T) {
	sessions := memory.NewSessionStore()
	require.NoError(t, sessions.Upsert("old", domain.GeoPoint{}, fixedNow.Add(-31*time.Minute)))

	report := usecases.NewEvictor(sessions, memory.NewTestRegistry(nil), 0, 0).Sweep(fixedNow)
	assert.Equal(t, []string{"old"}, report.Sessions)
}

// panickyStore blows up on the first snapshot only.
type panickyStore struct {
	*memory.SessionStore
	calls atomic.Int32
}

func (p *panickyStore) Snapshot() []domain.Session {
	if p.calls.Add(1) == 1 {
		panic("corrupt snapshot")
	}
	return p.SessionStore.Snapshot()
}

func TestEvictor_RunSurvivesPanicsAndStops(t *testing.T) {
	store := &panickyStore{SessionStore: memory.NewSessionStore()}
	require.NoError(t, store.Upsert("old", domain.GeoPoint{}, fixedNow.Add(-time.Hour)))

	swept := make(chan usecases.SweepReport, 4)
	ev := usecases.NewEvictor(store, memory.NewTestRegistry(nil), time.Minute, 10*time.Millisecond,
		usecases.WithEvictorClock(func() time.Time { return fixedNow }),
		usecases.WithSweepHook(func(r usecases.SweepReport) {
			select {
			case swept <- r:
			default:
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ev.Run(ctx)
		close(done)
	}()

	select {
	case r := <-swept:
		assert.Equal(t, []string{"old"}, r.Sessions)
	case <-time.After(2 * time.Second):
		t.Fatal("evictor did not recover from a panicking sweep")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("evictor did not stop on cancellation")
	}
}

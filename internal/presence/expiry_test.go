package presence

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusboard/internal/domain"
	"statusboard/internal/models"
)

type expiryFixture struct {
	clock  *fakeClock
	store  *fakeStore
	engine *Engine
	sched  *ExpiryScheduler
	me     Identity
}

func newExpiryFixture(t *testing.T, policy domain.CorrectionPolicy, me Identity, workers ...models.Worker) *expiryFixture {
	t.Helper()
	f := &expiryFixture{clock: newClock(), me: me}
	f.store = newFakeStore(f.clock.Now, workers...)
	f.engine, _ = newTestEngine(f.clock)
	f.sched = NewExpiryScheduler(f.engine, f.store, ExpiryOptions{
		Policy:   policy,
		Workers:  2,
		Now:      f.clock.Now,
		Logger:   zerolog.Nop(),
		Identity: func() Identity { return f.me },
	})
	records, err := f.store.ListWorkers(context.Background())
	require.NoError(t, err)
	f.engine.ApplySnapshot(records)
	return f
}

func TestExpiryCorrectsPeer(t *testing.T) {
	start := newClock().Now()
	f := newExpiryFixture(t, domain.CorrectAny, Identity{WorkerID: "a"},
		worker("a", "Ada", domain.StatusFree),
		busyWorker("b", "Bob", start.Add(10*time.Minute)),
	)
	ctx := context.Background()

	assert.Equal(t, 0, f.sched.Scan(ctx), "not elapsed yet")

	f.clock.Advance(10 * time.Minute)
	assert.Equal(t, 1, f.sched.Scan(ctx))
	assert.Equal(t, domain.StatusFree, f.store.get("b").Status)

	rec, _ := f.engine.Record("b")
	assert.Equal(t, domain.StatusFree, rec.Status)
	assert.Nil(t, rec.BusyUntil)

	assert.Equal(t, 0, f.sched.Scan(ctx))
	assert.Equal(t, 1, f.store.calls())
}

func TestExpiryAttemptsOncePerBusyUntil(t *testing.T) {
	start := newClock().Now()
	stale := busyWorker("b", "Bob", start.Add(-time.Minute))
	f := newExpiryFixture(t, domain.CorrectAny, Identity{WorkerID: "a"}, stale)
	ctx := context.Background()

	assert.Equal(t, 1, f.sched.Scan(ctx))
	// a poll that raced the reset brings back the old busy period
	f.engine.ApplySnapshot([]models.Worker{stale})
	assert.Equal(t, 0, f.sched.Scan(ctx))
	assert.Equal(t, 1, f.store.calls())

	// a new busy period with its own deadline is eligible again
	next := busyWorker("b", "Bob", start.Add(-30*time.Second))
	f.store.put(next)
	f.engine.ApplySnapshot([]models.Worker{next})
	assert.Equal(t, 1, f.sched.Scan(ctx))
	assert.Equal(t, 2, f.store.calls())
}

func TestExpiryRetriesWhenStoreClockIsBehind(t *testing.T) {
	server := newClock()
	client := newClock()
	client.Advance(2 * time.Second)
	until := server.Now().Add(10 * time.Minute)

	store := newFakeStore(server.Now, worker("a", "Ada", domain.StatusFree), busyWorker("b", "Bob", until))
	engine, _ := newTestEngine(client)
	sched := NewExpiryScheduler(engine, store, ExpiryOptions{
		Now:      client.Now,
		Logger:   zerolog.Nop(),
		Identity: func() Identity { return Identity{WorkerID: "a"} },
	})
	poll := NewPollLoop(store, engine, zerolog.Nop(), nil)
	ctx := context.Background()
	require.NoError(t, poll.Poll(ctx))

	// the client sees the deadline pass one second before the store does
	server.Advance(10*time.Minute - time.Second)
	client.Advance(10*time.Minute - time.Second)
	assert.Equal(t, 0, sched.Scan(ctx))
	assert.Equal(t, 1, store.calls())
	assert.Equal(t, domain.StatusBusy, store.get("b").Status)

	server.Advance(15 * time.Second)
	client.Advance(15 * time.Second)
	require.NoError(t, poll.Poll(ctx))
	assert.Equal(t, 1, sched.Scan(ctx))
	assert.Equal(t, 2, store.calls())
	assert.Equal(t, domain.StatusFree, store.get("b").Status)

	rec, _ := engine.Record("b")
	assert.Equal(t, domain.StatusFree, rec.Status)
}

func TestExpiryRetriesAfterStoreError(t *testing.T) {
	start := newClock().Now()
	f := newExpiryFixture(t, domain.CorrectAny, Identity{WorkerID: "a"},
		busyWorker("b", "Bob", start.Add(-time.Minute)),
	)
	f.store.expireErr = errStoreDown
	ctx := context.Background()

	assert.Equal(t, 0, f.sched.Scan(ctx))
	f.store.mu.Lock()
	f.store.expireErr = nil
	f.store.mu.Unlock()
	assert.Equal(t, 1, f.sched.Scan(ctx))
	assert.Equal(t, 2, f.store.calls())
}

func TestExpiryPolicy(t *testing.T) {
	past := newClock().Now().Add(-time.Minute)
	records := []models.Worker{busyWorker("a", "Ada", past), busyWorker("b", "Bob", past)}

	own := newExpiryFixture(t, domain.CorrectOwn, Identity{WorkerID: "a"}, records...)
	assert.Equal(t, 1, own.sched.Scan(context.Background()))
	assert.Equal(t, domain.StatusFree, own.store.get("a").Status)
	assert.Equal(t, domain.StatusBusy, own.store.get("b").Status)

	adminOnly := newExpiryFixture(t, domain.CorrectAdmin, Identity{WorkerID: "c"}, records...)
	assert.Equal(t, 0, adminOnly.sched.Scan(context.Background()))

	admin := newExpiryFixture(t, domain.CorrectAdmin, Identity{WorkerID: "c", Admin: true}, records...)
	assert.Equal(t, 2, admin.sched.Scan(context.Background()))
}

func TestExpiryNeedsSession(t *testing.T) {
	past := newClock().Now().Add(-time.Minute)
	f := newExpiryFixture(t, domain.CorrectAny, Identity{}, busyWorker("b", "Bob", past))
	assert.Equal(t, 0, f.sched.Scan(context.Background()))
	assert.Equal(t, 0, f.store.calls())
}

func TestExpiryRejectsForeignRecord(t *testing.T) {
	past := newClock().Now().Add(-time.Minute)
	f := newExpiryFixture(t, domain.CorrectAny, Identity{WorkerID: "a"}, busyWorker("b", "Bob", past))
	f.store.returnOther = "z"

	assert.Equal(t, 0, f.sched.Scan(context.Background()))
	_, ok := f.engine.Record("z")
	assert.False(t, ok)
}

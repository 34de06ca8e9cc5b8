package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusboard/config"
	"statusboard/internal/domain"
	"statusboard/internal/feed"
	"statusboard/internal/presence"
	"statusboard/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newStatusFixture(t *testing.T, policy string) (*StatusService, *testutil.Workers, *testutil.Hub, *testutil.Audit) {
	t.Helper()
	cfg := testConfig()
	cfg.Presence.PeerCorrection = policy
	store := testutil.NewWorkers(employee("a", "ada"), employee("b", "bob"))
	hub := &testutil.Hub{}
	audit := &testutil.Audit{}
	svc, err := NewStatusService(cfg, store, audit, hub, zerolog.Nop())
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc, store, hub, audit
}

func TestSetStatusOwnBusy(t *testing.T) {
	svc, store, hub, _ := newStatusFixture(t, "any")

	w, err := svc.SetStatus(Actor{WorkerID: "a"}, "a", "busy", 30, strptr("focus"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBusy, w.Status)
	require.NotNil(t, w.BusyUntil)
	assert.True(t, w.BusyUntil.Equal(fixedNow.Add(30*time.Minute)))
	stored := store.Get("a")
	assert.Equal(t, "focus", stored.Note())

	events := hub.All()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventUpdate, events[0].Event)
	assert.Equal(t, feed.StatusFields, events[0].Fields)
}

func TestSetStatusRecomputesFromNow(t *testing.T) {
	svc, store, _, _ := newStatusFixture(t, "any")
	_, err := svc.SetStatus(Actor{WorkerID: "a"}, "a", "busy", 30, nil)
	require.NoError(t, err)

	later := fixedNow.Add(10 * time.Minute)
	svc.now = func() time.Time { return later }
	_, err = svc.SetStatus(Actor{WorkerID: "a"}, "a", "busy", 5, nil)
	require.NoError(t, err)
	assert.True(t, store.Get("a").BusyUntil.Equal(later.Add(5*time.Minute)))
}

func TestSetStatusValidation(t *testing.T) {
	svc, _, hub, _ := newStatusFixture(t, "any")
	me := Actor{WorkerID: "a"}

	_, err := svc.SetStatus(me, "a", "busy", 0, nil)
	assert.ErrorIs(t, err, presence.ErrInvalidDuration)
	_, err = svc.SetStatus(me, "a", "lunch", 0, nil)
	assert.ErrorIs(t, err, presence.ErrInvalidStatus)
	_, err = svc.SetStatus(me, "b", "free", 0, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.SetStatus(Actor{WorkerID: "root", Admin: true}, "missing", "free", 0, nil)
	assert.ErrorIs(t, err, ErrWorkerNotFound)
	assert.Empty(t, hub.All())
}

func TestSetStatusAdminAndBlankNote(t *testing.T) {
	svc, store, _, _ := newStatusFixture(t, "any")
	w, err := svc.SetStatus(Actor{WorkerID: "root", Admin: true}, "b", "important", 0, strptr("   "))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusImportant, w.Status)
	assert.Nil(t, store.Get("b").StatusNote)
	assert.Nil(t, store.Get("b").BusyUntil)
}

func TestSetStatusIntegrityViolation(t *testing.T) {
	svc, store, hub, audit := newStatusFixture(t, "any")
	store.ReturnOther = "b"

	_, err := svc.SetStatus(Actor{WorkerID: "a"}, "a", "free", 0, nil)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Empty(t, hub.All())
	assert.Equal(t, []string{"integrity_violation"}, audit.Actions())
}

func TestExpireIsIdempotent(t *testing.T) {
	svc, store, hub, _ := newStatusFixture(t, "any")
	until := fixedNow.Add(-time.Minute)
	b := store.Get("b")
	b.Status, b.BusyUntil = domain.StatusBusy, &until
	require.NoError(t, store.Update(&b))

	w, changed, err := svc.Expire(Actor{WorkerID: "a"}, "b")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusFree, w.Status)
	assert.Nil(t, w.BusyUntil)

	_, changed, err = svc.Expire(Actor{WorkerID: "a"}, "b")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, hub.All(), 1, "only the real reset is published")
}

func TestExpireLeavesRunningTimer(t *testing.T) {
	svc, store, hub, _ := newStatusFixture(t, "any")
	until := fixedNow.Add(time.Minute)
	b := store.Get("b")
	b.Status, b.BusyUntil = domain.StatusBusy, &until
	require.NoError(t, store.Update(&b))

	w, changed, err := svc.Expire(Actor{WorkerID: "a"}, "b")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.StatusBusy, w.Status)
	assert.Empty(t, hub.All())
}

func TestExpirePolicy(t *testing.T) {
	svc, _, _, _ := newStatusFixture(t, "own")
	_, _, err := svc.Expire(Actor{WorkerID: "a"}, "b")
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = svc.Expire(Actor{WorkerID: "b"}, "b")
	assert.NoError(t, err)

	admin, _, _, _ := newStatusFixture(t, "admin")
	_, _, err = admin.Expire(Actor{WorkerID: "a"}, "b")
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = admin.Expire(Actor{WorkerID: "root", Admin: true}, "b")
	assert.NoError(t, err)

	_, err = NewStatusService(badPolicyConfig(), testutil.NewWorkers(), nil, &testutil.Hub{}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestListNormalizes(t *testing.T) {
	svc, store, _, _ := newStatusFixture(t, "any")
	stale := fixedNow
	a := store.Get("a")
	a.BusyUntil = &stale
	store.Put(a)

	list, err := svc.List()
	require.NoError(t, err)
	for _, w := range list {
		assert.Nil(t, w.BusyUntil)
	}
}

func badPolicyConfig() *config.Config {
	c := testConfig()
	c.Presence.PeerCorrection = "everyone"
	return c
}

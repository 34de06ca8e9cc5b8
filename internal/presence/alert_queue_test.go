package presence

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(clock *fakeClock, kv KV) *AlertQueue {
	return NewAlertQueue(AlertQueueOptions{
		Capacity:  3,
		TTL:       5 * time.Second,
		MarkerTTL: time.Minute,
		Now:       clock.Now,
		Store:     kv,
		Logger:    zerolog.Nop(),
	})
}

func testAlert(id, worker string, kind AlertKind, fp string) Alert {
	return Alert{ID: id, WorkerID: worker, Kind: kind, Message: worker + " changed", Fingerprint: fp}
}

func TestAlertQueueDedupWhileLive(t *testing.T) {
	clock := newClock()
	q := newTestQueue(clock, nil)

	assert.True(t, q.Enqueue(testAlert("1", "a", AlertStatusChange, "busy")))
	assert.False(t, q.Enqueue(testAlert("2", "a", AlertStatusChange, "busy")))
	assert.True(t, q.Enqueue(testAlert("3", "a", AlertNoteChange, "busy")), "different kind")
	assert.True(t, q.Enqueue(testAlert("4", "a", AlertStatusChange, "free")), "different fingerprint")
	assert.Equal(t, 3, q.Len())

	clock.Advance(5 * time.Second)
	assert.True(t, q.Enqueue(testAlert("5", "a", AlertStatusChange, "busy")), "expired alerts no longer block")
	assert.Equal(t, 1, q.Len())
}

func TestAlertQueueCapacityAndRender(t *testing.T) {
	clock := newClock()
	q := newTestQueue(clock, nil)
	for i := 0; i < 5; i++ {
		q.Enqueue(testAlert(fmt.Sprint(i), fmt.Sprint("w", i), AlertStatusChange, "x"))
		clock.Advance(time.Millisecond)
	}
	assert.Equal(t, 3, q.Len())

	list := q.RenderList(2)
	require.Len(t, list.Visible, 2)
	assert.Equal(t, "4", list.Visible[0].ID, "newest first")
	assert.Equal(t, "3", list.Visible[1].ID)
	assert.Equal(t, 1, list.More)
	assert.Equal(t, "+1 more", list.MoreLabel())

	all := q.RenderList(0)
	assert.Len(t, all.Visible, 3)
	assert.Empty(t, all.MoreLabel())
}

func TestAlertQueueDismissAndSweep(t *testing.T) {
	clock := newClock()
	q := newTestQueue(clock, nil)
	q.Enqueue(testAlert("1", "a", AlertStatusChange, "x"))
	clock.Advance(2 * time.Second)
	q.Enqueue(testAlert("2", "b", AlertStatusChange, "x"))

	assert.True(t, q.Dismiss("1"))
	assert.False(t, q.Dismiss("1"))

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, q.Sweep())
	assert.Equal(t, 0, q.Len())
}

func TestAlertQueueNotifies(t *testing.T) {
	var got []string
	q := NewAlertQueue(AlertQueueOptions{
		Now:     newClock().Now,
		Logger:  zerolog.Nop(),
		OnAlert: func(a Alert) { got = append(got, a.ID) },
	})
	q.Enqueue(testAlert("1", "a", AlertStatusChange, "x"))
	q.Enqueue(testAlert("2", "a", AlertStatusChange, "x"))
	assert.Equal(t, []string{"1"}, got)
}

func TestRecentlyUpdatedMarkersPersist(t *testing.T) {
	clock := newClock()
	kv := newMemKV()
	q := newTestQueue(clock, kv)

	q.Enqueue(testAlert("1", "a", AlertStatusChange, "x"))
	assert.True(t, q.RecentlyUpdated("a"))
	assert.False(t, q.RecentlyUpdated("b"))

	raw, ok, _ := kv.Get(RecentlyUpdatedKey)
	require.True(t, ok)
	assert.Contains(t, raw, `"a"`)

	// a restarted client picks the marker back up
	clock.Advance(30 * time.Second)
	restarted := newTestQueue(clock, kv)
	require.NoError(t, restarted.LoadMarkers())
	assert.True(t, restarted.RecentlyUpdated("a"))

	clock.Advance(30 * time.Second)
	assert.False(t, restarted.RecentlyUpdated("a"))
	assert.Equal(t, 1, restarted.SweepMarkers())
	raw, _, _ = kv.Get(RecentlyUpdatedKey)
	assert.Equal(t, "{}", raw)
}

func TestLoadMarkersRejectsGarbage(t *testing.T) {
	kv := newMemKV()
	require.NoError(t, kv.Put(RecentlyUpdatedKey, "not json"))
	q := newTestQueue(newClock(), kv)
	assert.Error(t, q.LoadMarkers())
}

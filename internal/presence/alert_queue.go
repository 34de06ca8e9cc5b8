package presence

import (
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

// RecentlyUpdatedKey is the local storage key holding the recently-updated markers.
const RecentlyUpdatedKey = "recentlyUpdated"

// KV is client-local persistent storage.
type KV interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
	Delete(keys ...string) error
}

type AlertQueueOptions struct {
	Capacity  int
	TTL       time.Duration
	MarkerTTL time.Duration
	Now       func() time.Time
	Store     KV
	Logger    zerolog.Logger
	// OnAlert is called outside the queue lock for every accepted alert.
	OnAlert func(Alert)
}

// AlertQueue is the bounded list of toast alerts plus the longer-lived
// recently-updated marker per worker.
type AlertQueue struct {
	mu       sync.Mutex
	items    []Alert // oldest first
	capacity int
	ttl      time.Duration

	marker *Suppressor[string, string]
	store  KV
	now    func() time.Time
	log    zerolog.Logger
	notify func(Alert)
}

func NewAlertQueue(opts AlertQueueOptions) *AlertQueue {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 20
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.MarkerTTL <= 0 {
		opts.MarkerTTL = 5 * time.Minute
	}
	return &AlertQueue{
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		marker:   NewSuppressor[string, string](opts.MarkerTTL, func(id string) string { return id }, now),
		store:    opts.Store,
		now:      now,
		log:      opts.Logger,
		notify:   opts.OnAlert,
	}
}

// Enqueue adds a unless a live alert with the same subject, kind and
// fingerprint is already queued.
func (q *AlertQueue) Enqueue(a Alert) bool {
	q.mu.Lock()
	now := q.now()
	q.pruneLocked(now)
	k := keyOf(a)
	for _, it := range q.items {
		if keyOf(it) == k {
			q.mu.Unlock()
			return false
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.ExpiresAt = now.Add(q.ttl)
	q.items = append(q.items, a)
	if over := len(q.items) - q.capacity; over > 0 {
		q.items = append(q.items[:0:0], q.items[over:]...)
	}
	q.mu.Unlock()

	q.marker.Touch(a.WorkerID)
	q.persistMarkers()
	if q.notify != nil {
		q.notify(a)
	}
	return true
}

// AlertList is what a toast stack shows.
type AlertList struct {
	Visible []Alert // newest first
	More    int
}

// MoreLabel renders the "+K more" suffix, or "" when nothing is hidden.
func (l AlertList) MoreLabel() string {
	if l.More <= 0 {
		return ""
	}
	return fmt.Sprintf("+%d more", l.More)
}

// RenderList returns the n most recent live alerts.
func (q *AlertQueue) RenderList(n int) AlertList {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pruneLocked(q.now())
	total := len(q.items)
	if n <= 0 || n > total {
		n = total
	}
	out := AlertList{Visible: make([]Alert, 0, n), More: total - n}
	for i := total - 1; i >= total-n; i-- {
		out.Visible = append(out.Visible, q.items[i])
	}
	return out
}

func (q *AlertQueue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Sweep removes expired toasts.
func (q *AlertQueue) Sweep() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	before := len(q.items)
	q.pruneLocked(q.now())
	return before - len(q.items)
}

func (q *AlertQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *AlertQueue) pruneLocked(now time.Time) {
	kept := q.items[:0]
	for _, it := range q.items {
		if now.Before(it.ExpiresAt) {
			kept = append(kept, it)
		}
	}
	q.items = kept
}

// RecentlyUpdated reports whether workerID changed within the marker window.
func (q *AlertQueue) RecentlyUpdated(workerID string) bool {
	return q.marker.Active(workerID)
}

// SweepMarkers expires old markers and rewrites the persisted set.
func (q *AlertQueue) SweepMarkers() int {
	n := q.marker.Sweep()
	if n > 0 {
		q.persistMarkers()
	}
	return n
}

// LoadMarkers restores markers saved by a previous run.
func (q *AlertQueue) LoadMarkers() error {
	if q.store == nil {
		return nil
	}
	raw, ok, err := q.store.Get(RecentlyUpdatedKey)
	if err != nil || !ok {
		return err
	}
	var saved map[string]int64
	if err := sonic.UnmarshalString(raw, &saved); err != nil {
		return fmt.Errorf("decode %s: %w", RecentlyUpdatedKey, err)
	}
	restored := make(map[string]time.Time, len(saved))
	for id, ms := range saved {
		restored[id] = time.UnixMilli(ms)
	}
	q.marker.Restore(restored)
	return nil
}

func (q *AlertQueue) persistMarkers() {
	if q.store == nil {
		return
	}
	snap := q.marker.Snapshot()
	out := make(map[string]int64, len(snap))
	for id, exp := range snap {
		out[id] = exp.UnixMilli()
	}
	raw, err := sonic.MarshalString(out)
	if err != nil {
		q.log.Warn().Err(err).Msg("encode recently-updated markers")
		return
	}
	if err := q.store.Put(RecentlyUpdatedKey, raw); err != nil {
		q.log.Warn().Err(err).Int("entries", len(out)).Msg("persist recently-updated markers")
	}
}

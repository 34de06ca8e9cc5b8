package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"statusboard/internal/domain"
	"statusboard/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Put(key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *memKV) Delete(keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}

var errStoreDown = errors.New("store unavailable")

// fakeStore is an in-memory Store shared by every board in a test.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]models.Worker
	now     func() time.Time

	listErr     error
	expireErr   error
	returnOther string // returned id for every write, when set
	expireCalls int
}

func newFakeStore(now func() time.Time, workers ...models.Worker) *fakeStore {
	s := &fakeStore{records: make(map[string]models.Worker), now: now}
	for _, w := range workers {
		s.records[w.ID] = w
	}
	return s
}

func (s *fakeStore) ListWorkers(context.Context) ([]models.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Worker, 0, len(s.records))
	for _, w := range s.records {
		out = append(out, w)
	}
	return out, nil
}

func (s *fakeStore) SetStatus(_ context.Context, u StatusUpdate) (models.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.records[u.WorkerID]
	if !ok {
		return models.Worker{}, errors.New("not found")
	}
	w.Status = u.Status
	w.StatusNote = u.Note
	w.BusyUntil = nil
	if u.Status == domain.StatusBusy {
		t := s.now().Add(time.Duration(u.DurationMinutes) * time.Minute)
		w.BusyUntil = &t
	}
	w.UpdatedAt = s.now()
	s.records[w.ID] = w
	if s.returnOther != "" {
		w.ID = s.returnOther
	}
	return w, nil
}

func (s *fakeStore) ExpireBusy(_ context.Context, id string) (models.Worker, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireCalls++
	if s.expireErr != nil {
		return models.Worker{}, false, s.expireErr
	}
	w, ok := s.records[id]
	if !ok {
		return models.Worker{}, false, errors.New("not found")
	}
	changed := false
	if w.Expired(s.now()) {
		w.Status = domain.StatusFree
		w.BusyUntil = nil
		s.records[id] = w
		changed = true
	}
	if s.returnOther != "" {
		w.ID = s.returnOther
	}
	return w, changed, nil
}

func (s *fakeStore) put(w models.Worker) {
	s.mu.Lock()
	s.records[w.ID] = w
	s.mu.Unlock()
}

func (s *fakeStore) get(id string) models.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireCalls
}

func worker(id, name string, st domain.Status) models.Worker {
	return models.Worker{ID: id, Username: id, DisplayName: name, Status: st, Role: domain.RoleEmployee}
}

func busyWorker(id, name string, until time.Time) models.Worker {
	w := worker(id, name, domain.StatusBusy)
	w.BusyUntil = &until
	return w
}

func strptr(s string) *string { return &s }

func ptrWorker(w models.Worker) *models.Worker { return &w }

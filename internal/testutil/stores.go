// Package testutil holds in-memory stores shared by tests across packages.
package testutil

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"statusboard/internal/domain"
	"statusboard/internal/models"
)

// Workers implements the worker store on a map.
type Workers struct {
	mu          sync.Mutex
	byID        map[string]models.Worker
	ReturnOther string
}

func NewWorkers(ws ...models.Worker) *Workers {
	m := &Workers{byID: make(map[string]models.Worker)}
	for _, w := range ws {
		m.byID[w.ID] = w
	}
	return m
}

func (m *Workers) List() ([]models.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Worker, 0, len(m.byID))
	for _, w := range m.byID {
		out = append(out, w)
	}
	return out, nil
}

func (m *Workers) find(match func(models.Worker) bool) (*models.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.byID {
		if match(w) {
			cp := w
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *Workers) GetByID(id string) (*models.Worker, error) {
	return m.find(func(w models.Worker) bool { return w.ID == id })
}

func (m *Workers) GetByUsername(username string) (*models.Worker, error) {
	return m.find(func(w models.Worker) bool { return w.Username == username })
}

func (m *Workers) GetByEmail(email string) (*models.Worker, error) {
	return m.find(func(w models.Worker) bool { return w.Email != nil && *w.Email == email })
}

func (m *Workers) GetByGoogleID(googleID string) (*models.Worker, error) {
	return m.find(func(w models.Worker) bool { return w.GoogleID != nil && *w.GoogleID == googleID })
}

func (m *Workers) Create(w *models.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[w.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	m.byID[w.ID] = *w
	return nil
}

func (m *Workers) Update(w *models.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.Normalize()
	m.byID[w.ID] = *w
	return nil
}

func (m *Workers) UpdateStatus(id string, status domain.Status, busyUntil *time.Time, note *string) (*models.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	w.Status, w.BusyUntil, w.StatusNote = status, busyUntil, note
	m.byID[id] = w
	if m.ReturnOther != "" {
		w.ID = m.ReturnOther
	}
	return &w, nil
}

func (m *Workers) ExpireBusy(id string, now time.Time) (*models.Worker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok {
		return nil, false, gorm.ErrRecordNotFound
	}
	if !w.Expired(now) {
		return &w, false, nil
	}
	w.Status, w.BusyUntil = domain.StatusFree, nil
	m.byID[id] = w
	return &w, true, nil
}

func (m *Workers) UpdateAvatar(id, avatarURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	w.AvatarURL = avatarURL
	m.byID[id] = w
	return nil
}

func (m *Workers) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *Workers) Get(id string) models.Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

type Published struct {
	Event  domain.EventType
	Worker models.Worker
	Fields []string
}

type Hub struct {
	mu     sync.Mutex
	events []Published
}

func (h *Hub) PublishWorker(eventType domain.EventType, w models.Worker, fields ...string) {
	h.mu.Lock()
	h.events = append(h.events, Published{Event: eventType, Worker: w, Fields: fields})
	h.mu.Unlock()
}

func (h *Hub) All() []Published {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Published(nil), h.events...)
}

type Audit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *Audit) Create(log *models.AuditLog) error {
	a.mu.Lock()
	a.entries = append(a.entries, *log)
	a.mu.Unlock()
	return nil
}

func (a *Audit) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}


// Put stores w as is, bypassing normalization.
func (m *Workers) Put(w models.Worker) {
	m.mu.Lock()
	m.byID[w.ID] = w
	m.mu.Unlock()
}

func (a *Audit) ListByAction(action string, limit int) ([]models.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.AuditLog
	for i := len(a.entries) - 1; i >= 0; i-- {
		if a.entries[i].Action == action {
			out = append(out, a.entries[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

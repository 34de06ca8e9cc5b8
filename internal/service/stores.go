package service

import (
	"time"

	"statusboard/internal/domain"
	"statusboard/internal/models"
)

// WorkerStore is implemented by repository.WorkerRepository.
type WorkerStore interface {
	List() ([]models.Worker, error)
	GetByID(id string) (*models.Worker, error)
	GetByUsername(username string) (*models.Worker, error)
	GetByEmail(email string) (*models.Worker, error)
	GetByGoogleID(googleID string) (*models.Worker, error)
	Create(w *models.Worker) error
	Update(w *models.Worker) error
	UpdateStatus(id string, status domain.Status, busyUntil *time.Time, note *string) (*models.Worker, error)
	ExpireBusy(id string, now time.Time) (*models.Worker, bool, error)
	UpdateAvatar(id, avatarURL string) error
	Delete(id string) error
}

// AuditStore is implemented by repository.AuditLogRepository.
type AuditStore interface {
	Create(log *models.AuditLog) error
}

// Publisher is implemented by ws.FeedHub.
type Publisher interface {
	PublishWorker(eventType domain.EventType, w models.Worker, fields ...string)
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	WorkerID  string
	Admin     bool
	IP        string
	UserAgent string
}

func audit(store AuditStore, actor Actor, action, resource, resourceID, metadata string) {
	if store == nil {
		return
	}
	var id *string
	if actor.WorkerID != "" {
		wid := actor.WorkerID
		id = &wid
	}
	_ = store.Create(&models.AuditLog{
		WorkerID:   id,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
		Metadata:   metadata,
	})
}

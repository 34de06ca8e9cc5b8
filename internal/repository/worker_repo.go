package repository

import (
	"time"

	"statusboard/internal/domain"
	"statusboard/internal/models"

	"gorm.io/gorm"
)

type WorkerRepository struct {
	db *gorm.DB
}

func NewWorkerRepository(db *gorm.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

func (r *WorkerRepository) Create(w *models.Worker) error {
	return r.db.Create(w).Error
}

// List returns every worker ordered by display name.
func (r *WorkerRepository) List() ([]models.Worker, error) {
	var list []models.Worker
	err := r.db.Order("display_name ASC").Order("id ASC").Find(&list).Error
	return list, err
}

func (r *WorkerRepository) GetByID(id string) (*models.Worker, error) {
	var w models.Worker
	if err := r.db.Where("id = ?", id).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WorkerRepository) GetByUsername(username string) (*models.Worker, error) {
	var w models.Worker
	if err := r.db.Where("username = ?", username).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WorkerRepository) GetByEmail(email string) (*models.Worker, error) {
	var w models.Worker
	if err := r.db.Where("email = ?", email).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WorkerRepository) GetByGoogleID(googleID string) (*models.Worker, error) {
	var w models.Worker
	if err := r.db.Where("google_id = ?", googleID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WorkerRepository) Update(w *models.Worker) error {
	w.Normalize()
	return r.db.Save(w).Error
}

// UpdateStatus writes the status columns and returns the stored row. A nil
// busyUntil clears the timer.
func (r *WorkerRepository) UpdateStatus(id string, status domain.Status, busyUntil *time.Time, note *string) (*models.Worker, error) {
	if status != domain.StatusBusy {
		busyUntil = nil
	}
	res := r.db.Model(&models.Worker{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"busy_until":  busyUntil,
		"status_note": note,
		"updated_at":  time.Now(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(id)
}

// ExpireBusy frees the worker only if their busy timer has elapsed at now.
// changed is false when another writer got there first.
func (r *WorkerRepository) ExpireBusy(id string, now time.Time) (*models.Worker, bool, error) {
	res := r.db.Model(&models.Worker{}).
		Where("id = ? AND status = ? AND busy_until IS NOT NULL AND busy_until <= ?", id, domain.StatusBusy, now).
		Updates(map[string]interface{}{
			"status":     domain.StatusFree,
			"busy_until": nil,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	w, err := r.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	return w, res.RowsAffected > 0, nil
}

func (r *WorkerRepository) UpdateAvatar(id, avatarURL string) error {
	return r.db.Model(&models.Worker{}).Where("id = ?", id).Update("avatar_url", avatarURL).Error
}

func (r *WorkerRepository) Delete(id string) error {
	res := r.db.Where("id = ?", id).Delete(&models.Worker{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

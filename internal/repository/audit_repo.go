package repository

import (
	"statusboard/internal/models"

	"gorm.io/gorm"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(log *models.AuditLog) error {
	return r.db.Create(log).Error
}

// ListByAction returns the newest entries for action.
func (r *AuditLogRepository) ListByAction(action string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var list []models.AuditLog
	err := r.db.Where("action = ?", action).Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}

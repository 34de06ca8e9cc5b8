package database

import (
	"errors"
	"fmt"

	"statusboard/config"
	"statusboard/internal/domain"
	"statusboard/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Worker{}, &models.AuditLog{}); err != nil {
		return err
	}
	// Rows written before the busy invariant was enforced.
	return db.Model(&models.Worker{}).
		Where("status <> ? AND busy_until IS NOT NULL", domain.StatusBusy).
		Update("busy_until", nil).Error
}

// SeedAdmin creates the first admin account when the workers table has none.
func SeedAdmin(db *gorm.DB, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	var n int64
	if err := db.Model(&models.Worker{}).Where("role = ?", domain.RoleAdmin).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	w := models.Worker{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  username,
		Status:       domain.StatusFree,
		Role:         domain.RoleAdmin,
	}
	if err := db.Create(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("seed admin %q: username taken", username)
		}
		return err
	}
	log.Info().Str("username", username).Msg("seeded admin account")
	return nil
}

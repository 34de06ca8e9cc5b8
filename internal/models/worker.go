package models

import (
	"time"

	"statusboard/internal/domain"
)

// Worker is one tracked person on the board. Pointer fields are nullable columns.
type Worker struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	Username     string        `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        *string       `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	GoogleID     *string       `gorm:"uniqueIndex;size:255" json:"-"`
	PasswordHash string        `gorm:"size:255" json:"-"`
	DisplayName  string        `gorm:"size:128;not null;index" json:"display_name"`
	Status       domain.Status `gorm:"size:20;not null;default:free;index" json:"status"`
	StatusNote   *string       `gorm:"size:512" json:"status_note"`
	BusyUntil    *time.Time    `gorm:"index" json:"busy_until"`
	AvatarURL    string        `gorm:"type:mediumtext" json:"avatar_url"`
	Role         domain.Role   `gorm:"size:20;not null;default:employee" json:"role"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (Worker) TableName() string {
	return "workers"
}

func (w *Worker) IsAdmin() bool { return w.Role == domain.RoleAdmin }

// Normalize enforces busy_until != nil exactly when status is busy. A busy
// record without a deadline could never expire, so it is treated as free.
func (w *Worker) Normalize() {
	if w.Status == "" {
		w.Status = domain.StatusFree
	}
	if w.Status == domain.StatusBusy && w.BusyUntil == nil {
		w.Status = domain.StatusFree
	}
	if w.Status != domain.StatusBusy {
		w.BusyUntil = nil
	}
}

// Expired reports whether a busy timer has elapsed at now.
func (w *Worker) Expired(now time.Time) bool {
	return w.Status == domain.StatusBusy && w.BusyUntil != nil && !w.BusyUntil.After(now)
}

// Note returns the status note or "".
func (w *Worker) Note() string {
	if w.StatusNote == nil {
		return ""
	}
	return *w.StatusNote
}

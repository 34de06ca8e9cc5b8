package service

import (
	"errors"
	"fmt"
	"strings"

	"statusboard/config"
	"statusboard/internal/auth"
	"statusboard/internal/domain"
	"statusboard/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	cfg     *config.Config
	workers WorkerStore
	hub     Publisher
}

func NewAuthService(cfg *config.Config, workers WorkerStore, hub Publisher) *AuthService {
	return &AuthService{cfg: cfg, workers: workers, hub: hub}
}

// Login accepts a username or an email address.
func (s *AuthService) Login(identifier, password string) (*models.Worker, string, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		w   *models.Worker
		err error
	)
	if strings.Contains(identifier, "@") {
		w, err = s.workers.GetByEmail(strings.ToLower(identifier))
	} else {
		w, err = s.workers.GetByUsername(identifier)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", err
	}
	if w.PasswordHash == "" {
		return nil, "", ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(w.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCreds
	}
	access, err := s.Token(w)
	if err != nil {
		return nil, "", err
	}
	return w, access, nil
}

func (s *AuthService) Token(w *models.Worker) (string, error) {
	return auth.GenerateAccessToken(&s.cfg.JWT, w.ID, w.Username, string(w.Role))
}

// DomainAllowed reports whether email belongs to the allow-listed domain.
// An empty allow-list admits everyone.
func (s *AuthService) DomainAllowed(email string) bool {
	d := strings.ToLower(strings.TrimSpace(s.cfg.OAuth.AllowedEmailDomain))
	if d == "" {
		return true
	}
	if !strings.HasPrefix(d, "@") {
		d = "@" + d
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(email)), d)
}

// DeniedMessage is shown to an identity outside the allowed domain.
func (s *AuthService) DeniedMessage() string {
	return fmt.Sprintf("Access Denied: Only %s emails are allowed.", s.cfg.OAuth.AllowedEmailDomain)
}

// LoginWithGoogle finds or creates the worker behind a Google identity. The
// domain check runs on every sign-in, before anything is written.
func (s *AuthService) LoginWithGoogle(googleID, email, name, picture string) (*models.Worker, string, bool, error) {
	if !s.DomainAllowed(email) {
		return nil, "", false, ErrDomainNotAllowed
	}
	email = strings.ToLower(strings.TrimSpace(email))

	w, err := s.workers.GetByGoogleID(googleID)
	if err == nil {
		if w.AvatarURL == "" && picture != "" {
			w.AvatarURL = picture
			_ = s.workers.Update(w)
		}
		access, err := s.Token(w)
		return w, access, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", false, err
	}

	if existing, err := s.workers.GetByEmail(email); err == nil {
		gid := googleID
		existing.GoogleID = &gid
		if existing.AvatarURL == "" {
			existing.AvatarURL = picture
		}
		if err := s.workers.Update(existing); err != nil {
			return nil, "", false, err
		}
		access, err := s.Token(existing)
		return existing, access, false, err
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", false, err
	}

	gid := googleID
	local, _, _ := strings.Cut(email, "@")
	display := strings.TrimSpace(name)
	if display == "" {
		display = local
	}
	w = &models.Worker{
		ID:          uuid.NewString(),
		Username:    s.freeUsername(local),
		Email:       &email,
		GoogleID:    &gid,
		DisplayName: display,
		Status:      domain.StatusFree,
		Role:        domain.RoleEmployee,
		AvatarURL:   picture,
	}
	if err := s.workers.Create(w); err != nil {
		return nil, "", false, err
	}
	s.hub.PublishWorker(domain.EventInsert, *w)
	access, err := s.Token(w)
	return w, access, true, err
}

func (s *AuthService) freeUsername(base string) string {
	if base == "" {
		base = "worker"
	}
	candidate := base
	for i := 0; i < 5; i++ {
		if _, err := s.workers.GetByUsername(candidate); errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate
		}
		candidate = base + "_" + uuid.NewString()[:6]
	}
	return candidate
}

// ChangePassword updates the worker's password. Requires current password verification.
func (s *AuthService) ChangePassword(workerID, currentPassword, newPassword string) error {
	w, err := s.workers.GetByID(workerID)
	if err != nil || w == nil {
		return ErrInvalidCreds
	}
	if w.PasswordHash == "" {
		return ErrNoPasswordAccount
	}
	if err := bcrypt.CompareHashAndPassword([]byte(w.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCreds
	}
	if len(newPassword) < minPasswordLen {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	w.PasswordHash = string(hash)
	return s.workers.Update(w)
}

package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"statusboard/internal/domain"
	"statusboard/internal/feed"
	"statusboard/internal/models"
)

// WorkerService manages accounts: profile edits and the admin surface.
type WorkerService struct {
	workers WorkerStore
	audit   AuditStore
	hub     Publisher
}

func NewWorkerService(workers WorkerStore, audit AuditStore, hub Publisher) *WorkerService {
	return &WorkerService{workers: workers, audit: audit, hub: hub}
}

type CreateWorkerInput struct {
	Username    string
	Password    string
	DisplayName string
	Email       string
	Role        string
}

func (s *WorkerService) Create(actor Actor, in CreateWorkerInput) (*models.Worker, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username required", domain.ErrInvalidValue)
	}
	if len(in.Password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}
	role := domain.RoleEmployee
	if in.Role != "" {
		r, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	if err := s.ensureUsernameFree(username); err != nil {
		return nil, err
	}
	var email *string
	if e := strings.ToLower(strings.TrimSpace(in.Email)); e != "" {
		if _, err := s.workers.GetByEmail(e); err == nil {
			return nil, ErrEmailExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		email = &e
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = username
	}
	w := &models.Worker{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  display,
		Status:       domain.StatusFree,
		Role:         role,
	}
	if err := s.workers.Create(w); err != nil {
		return nil, err
	}
	s.hub.PublishWorker(domain.EventInsert, *w)
	audit(s.audit, actor, "worker_create", "worker", w.ID, username)
	return w, nil
}

type UpdateWorkerInput struct {
	DisplayName *string
	Email       *string
	Role        *string
	Password    *string
}

func (s *WorkerService) Update(actor Actor, id string, in UpdateWorkerInput) (*models.Worker, error) {
	w, err := s.workers.GetByID(id)
	if err != nil {
		return nil, notFound(err)
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, ErrDisplayNameEmpty
		}
		w.DisplayName = name
	}
	if in.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*in.Email))
		if e == "" {
			w.Email = nil
		} else {
			if other, err := s.workers.GetByEmail(e); err == nil && other.ID != w.ID {
				return nil, ErrEmailExists
			}
			w.Email = &e
		}
	}
	if in.Role != nil {
		r, err := domain.ParseRole(*in.Role)
		if err != nil {
			return nil, err
		}
		w.Role = r
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLen {
			return nil, ErrPasswordTooShort
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		w.PasswordHash = string(hash)
	}
	if err := s.workers.Update(w); err != nil {
		return nil, err
	}
	s.hub.PublishWorker(domain.EventUpdate, *w)
	audit(s.audit, actor, "worker_update", "worker", w.ID, "")
	return w, nil
}

func (s *WorkerService) Delete(actor Actor, id string) error {
	if actor.WorkerID == id {
		return ErrSelfDelete
	}
	w, err := s.workers.GetByID(id)
	if err != nil {
		return notFound(err)
	}
	if err := s.workers.Delete(id); err != nil {
		return notFound(err)
	}
	s.hub.PublishWorker(domain.EventDelete, models.Worker{ID: w.ID})
	audit(s.audit, actor, "worker_delete", "worker", id, w.Username)
	return nil
}

// UpdateProfile changes the caller's own display name.
func (s *WorkerService) UpdateProfile(workerID, displayName string) (*models.Worker, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, ErrDisplayNameEmpty
	}
	return s.Update(Actor{WorkerID: workerID}, workerID, UpdateWorkerInput{DisplayName: &name})
}

// SetAvatar stores a new avatar reference. A blank url keeps the current avatar.
func (s *WorkerService) SetAvatar(workerID, avatarURL string) (*models.Worker, error) {
	w, err := s.workers.GetByID(workerID)
	if err != nil {
		return nil, notFound(err)
	}
	if strings.TrimSpace(avatarURL) == "" {
		return w, nil
	}
	if err := s.workers.UpdateAvatar(workerID, avatarURL); err != nil {
		return nil, err
	}
	w.AvatarURL = avatarURL
	s.hub.PublishWorker(domain.EventUpdate, *w, feed.FieldAvatarURL)
	return w, nil
}

func (s *WorkerService) ensureUsernameFree(username string) error {
	_, err := s.workers.GetByUsername(username)
	if err == nil {
		return ErrUsernameExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

package service

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"statusboard/config"
	"statusboard/internal/domain"
	"statusboard/internal/feed"
	"statusboard/internal/models"
	"statusboard/internal/presence"
)

// StatusService owns every write to the status columns.
type StatusService struct {
	workers WorkerStore
	audit   AuditStore
	hub     Publisher
	policy  domain.CorrectionPolicy
	log     zerolog.Logger
	now     func() time.Time
}

func NewStatusService(cfg *config.Config, workers WorkerStore, audit AuditStore, hub Publisher, logger zerolog.Logger) (*StatusService, error) {
	policy, err := domain.ParseCorrectionPolicy(cfg.Presence.PeerCorrection)
	if err != nil {
		return nil, err
	}
	return &StatusService{
		workers: workers,
		audit:   audit,
		hub:     hub,
		policy:  policy,
		log:     logger,
		now:     time.Now,
	}, nil
}

func (s *StatusService) List() ([]models.Worker, error) {
	list, err := s.workers.List()
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Normalize()
	}
	return list, nil
}

func (s *StatusService) Get(id string) (*models.Worker, error) {
	w, err := s.workers.GetByID(id)
	if err != nil {
		return nil, notFound(err)
	}
	w.Normalize()
	return w, nil
}

// SetStatus writes targetID's status. Workers set their own; admins may set
// anyone's. busy_until is computed from now, never added to the old value.
func (s *StatusService) SetStatus(actor Actor, targetID, status string, minutes int, note *string) (*models.Worker, error) {
	if actor.WorkerID != targetID && !actor.Admin {
		return nil, ErrForbidden
	}
	u, err := presence.NewStatusUpdate(targetID, domain.Status(status), minutes, note)
	if err != nil {
		return nil, err
	}
	if u.Note != nil && strings.TrimSpace(*u.Note) == "" {
		u.Note = nil
	}
	var busyUntil *time.Time
	if u.Status == domain.StatusBusy {
		t := s.now().Add(time.Duration(u.DurationMinutes) * time.Minute).UTC()
		busyUntil = &t
	}
	w, err := s.workers.UpdateStatus(targetID, u.Status, busyUntil, u.Note)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.verify(actor, "status", targetID, w); err != nil {
		return nil, err
	}
	s.hub.PublishWorker(domain.EventUpdate, *w, feed.StatusFields...)
	s.log.Info().Str("worker", targetID).Str("status", string(w.Status)).Int("minutes", u.DurationMinutes).Msg("status updated")
	return w, nil
}

// Expire frees targetID if their busy timer has elapsed. Calling it again
// after the reset changes nothing and publishes nothing.
func (s *StatusService) Expire(actor Actor, targetID string) (*models.Worker, bool, error) {
	if !s.policy.Allows(actor.WorkerID, targetID, actor.Admin) {
		return nil, false, ErrForbidden
	}
	w, changed, err := s.workers.ExpireBusy(targetID, s.now().UTC())
	if err != nil {
		return nil, false, notFound(err)
	}
	if err := s.verify(actor, "expire", targetID, w); err != nil {
		return nil, false, err
	}
	if changed {
		s.hub.PublishWorker(domain.EventUpdate, *w, feed.StatusFields...)
		s.log.Info().Str("worker", targetID).Str("by", actor.WorkerID).Msg("elapsed busy status reset")
	}
	return w, changed, nil
}

func (s *StatusService) verify(actor Actor, op, requested string, w *models.Worker) error {
	if w != nil && w.ID == requested {
		return nil
	}
	returned := ""
	if w != nil {
		returned = w.ID
	}
	s.log.Error().Bool("security", true).Str("op", op).Str("requested", requested).Str("returned", returned).Msg("integrity violation")
	audit(s.audit, actor, "integrity_violation", "worker", requested, op+" returned "+returned)
	return ErrIntegrity
}

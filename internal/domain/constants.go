package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidValue wraps every Parse* failure.
var ErrInvalidValue = errors.New("invalid value")

// Status is a worker's current availability.
type Status string

const (
	StatusFree      Status = "free"
	StatusBusy      Status = "busy"
	StatusImportant Status = "important"
)

// ParseStatus validates a status coming from the wire or the CLI.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusFree, StatusBusy, StatusImportant:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidValue, s)
}

type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleEmployee, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidValue, s)
}

// View is the dashboard surface a client is showing.
type View string

const (
	ViewPublic   View = "public"
	ViewLogin    View = "login"
	ViewEmployee View = "employee"
	ViewAdmin    View = "admin"
)

func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewPublic, ViewLogin, ViewEmployee, ViewAdmin:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown view %q", ErrInvalidValue, s)
}

// EventType is the kind of mutation carried by a change feed event.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// TopicWorkers is the change feed topic for worker records.
const TopicWorkers = "workers"

// Preset busy durations in minutes offered by the control panel.
var BusyPresetsMinutes = []int{15, 30, 60, 120}

const (
	MinBusyMinutes = 1
	MaxBusyMinutes = 24 * 60
)

// CorrectionPolicy decides whose elapsed busy timers a connected client may reset.
type CorrectionPolicy string

const (
	CorrectOwn   CorrectionPolicy = "own"
	CorrectAny   CorrectionPolicy = "any"
	CorrectAdmin CorrectionPolicy = "admin"
)

func ParseCorrectionPolicy(s string) (CorrectionPolicy, error) {
	switch p := CorrectionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case CorrectOwn, CorrectAny, CorrectAdmin:
		return p, nil
	case "":
		return CorrectAny, nil
	}
	return "", fmt.Errorf("%w: unknown peer correction policy %q", ErrInvalidValue, s)
}

// Allows reports whether actor may expire target's busy timer.
func (p CorrectionPolicy) Allows(actorID, targetID string, actorIsAdmin bool) bool {
	if actorID == "" {
		return false
	}
	if actorID == targetID {
		return true
	}
	switch p {
	case CorrectAny:
		return true
	case CorrectAdmin:
		return actorIsAdmin
	}
	return false
}

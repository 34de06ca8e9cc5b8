package feed

import (
	"encoding/json"

	"statusboard/internal/models"
)

// JSON field names of models.Worker that may appear in a patch.
const (
	FieldID          = "id"
	FieldUsername    = "username"
	FieldEmail       = "email"
	FieldDisplayName = "display_name"
	FieldStatus      = "status"
	FieldStatusNote  = "status_note"
	FieldBusyUntil   = "busy_until"
	FieldAvatarURL   = "avatar_url"
	FieldRole        = "role"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
)

// StatusFields are the columns a status write touches.
var StatusFields = []string{FieldStatus, FieldStatusNote, FieldBusyUntil, FieldUpdatedAt}

// Patch is a possibly partial worker record. Fields lists which JSON keys the
// payload actually carried; anything else in Worker is a zero value.
type Patch struct {
	Worker models.Worker
	Fields map[string]bool
}

func (p Patch) Has(field string) bool {
	return p.Fields[field]
}

func (p Patch) Empty() bool {
	return len(p.Fields) == 0
}

// FullPatch marks every field of w as present.
func FullPatch(w models.Worker) Patch {
	return Patch{Worker: w, Fields: map[string]bool{
		FieldID: true, FieldUsername: true, FieldEmail: true, FieldDisplayName: true,
		FieldStatus: true, FieldStatusNote: true, FieldBusyUntil: true, FieldAvatarURL: true,
		FieldRole: true, FieldCreatedAt: true, FieldUpdatedAt: true,
	}}
}

func DecodePatch(raw json.RawMessage) (Patch, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Patch{}, nil
	}
	var keys map[string]json.RawMessage
	if err := codec.Unmarshal(raw, &keys); err != nil {
		return Patch{}, err
	}
	var w models.Worker
	if err := codec.Unmarshal(raw, &w); err != nil {
		return Patch{}, err
	}
	fields := make(map[string]bool, len(keys))
	for k := range keys {
		fields[k] = true
	}
	return Patch{Worker: w, Fields: fields}, nil
}

// Merge applies the fields carried by p onto base.
func (p Patch) Merge(base models.Worker) models.Worker {
	w := p.Worker
	out := base
	if p.Has(FieldID) {
		out.ID = w.ID
	}
	if p.Has(FieldUsername) {
		out.Username = w.Username
	}
	if p.Has(FieldEmail) {
		out.Email = w.Email
	}
	if p.Has(FieldDisplayName) {
		out.DisplayName = w.DisplayName
	}
	if p.Has(FieldStatus) {
		out.Status = w.Status
	}
	if p.Has(FieldStatusNote) {
		out.StatusNote = w.StatusNote
	}
	if p.Has(FieldBusyUntil) {
		out.BusyUntil = w.BusyUntil
	}
	// A blank avatar in a change payload never erases a known one.
	if p.Has(FieldAvatarURL) && w.AvatarURL != "" {
		out.AvatarURL = w.AvatarURL
	}
	if p.Has(FieldRole) {
		out.Role = w.Role
	}
	if p.Has(FieldCreatedAt) {
		out.CreatedAt = w.CreatedAt
	}
	if p.Has(FieldUpdatedAt) {
		out.UpdatedAt = w.UpdatedAt
	}
	return out
}

package presence

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"

	"statusboard/internal/domain"
	"statusboard/internal/models"
)

type AlertKind string

const (
	AlertStatusChange AlertKind = "status_change"
	AlertNoteChange   AlertKind = "note_change"
	AlertJoined       AlertKind = "joined"
)

// Alert is a client-local notification about a change to one worker.
type Alert struct {
	ID          string
	WorkerID    string
	Kind        AlertKind
	Message     string
	Fingerprint string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type alertKey struct {
	worker      string
	kind        AlertKind
	fingerprint string
}

func keyOf(a Alert) alertKey {
	return alertKey{worker: a.WorkerID, kind: a.Kind, fingerprint: a.Fingerprint}
}

const notePreviewRunes = 50

func fingerprint(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func statusFingerprint(w models.Worker) string {
	until := ""
	if w.BusyUntil != nil {
		until = w.BusyUntil.UTC().Truncate(time.Second).Format(time.RFC3339)
	}
	return fingerprint(string(w.Status), until)
}

func displayName(w models.Worker) string {
	if name := strings.TrimSpace(w.DisplayName); name != "" {
		return name
	}
	if w.Username != "" {
		return w.Username
	}
	return w.ID
}

// StatusMessage renders the alert text for w's current status.
func StatusMessage(w models.Worker, now time.Time) string {
	name := displayName(w)
	switch w.Status {
	case domain.StatusFree:
		return name + " is now available"
	case domain.StatusImportant:
		return name + " is reachable for important matters only"
	case domain.StatusBusy:
		if w.BusyUntil == nil {
			return name + " is busy"
		}
		mins := RemainingMinutes(*w.BusyUntil, now)
		if mins <= 0 {
			return name + " is busy"
		}
		return name + " will be busy for " + FormatMinutes(mins)
	}
	return fmt.Sprintf("%s changed status to %s", name, w.Status)
}

// RemainingMinutes rounds up the time left until until.
func RemainingMinutes(until, now time.Time) int {
	d := until.Sub(now)
	if d <= 0 {
		return 0
	}
	mins := int(d / time.Minute)
	if d%time.Minute != 0 {
		mins++
	}
	return mins
}

// FormatMinutes renders "N minutes" below an hour and "Nh Mm" from an hour up.
func FormatMinutes(mins int) string {
	if mins >= 60 {
		return fmt.Sprintf("%dh %dm", mins/60, mins%60)
	}
	if mins == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", mins)
}

// NotePreview cuts note to the first 50 characters plus an ellipsis.
func NotePreview(note string) string {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) <= notePreviewRunes {
		return note
	}
	runes := []rune(note)
	return string(runes[:notePreviewRunes]) + "…"
}

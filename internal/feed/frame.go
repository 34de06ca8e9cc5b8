// Package feed defines the change feed wire format shared by the server hub
// and the board's subscription client.
package feed

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"statusboard/internal/domain"
	"statusboard/internal/models"
)

const (
	FrameSystem = "system"
	FrameChange = "change"
)

// Subscription states reported in system frames and by the client.
const (
	StateClosed  = "closed"
	StateJoining = "joining"
	StateJoined  = "joined"
	StateErrored = "errored"
)

// Frame is one message on the change feed socket.
type Frame struct {
	Type      string           `json:"type"`
	Status    string           `json:"status,omitempty"`
	Channel   string           `json:"channel,omitempty"`
	Topic     string           `json:"topic,omitempty"`
	EventType domain.EventType `json:"eventType,omitempty"`
	New       json.RawMessage  `json:"new,omitempty"`
	Old       json.RawMessage  `json:"old,omitempty"`
}

var codec = sonic.ConfigStd

func Encode(f Frame) ([]byte, error) {
	return codec.Marshal(f)
}

func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := codec.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// ChangeEvent is a decoded change frame.
type ChangeEvent struct {
	Topic string
	Type  domain.EventType
	New   Patch
	Old   Patch
}

// Change decodes the record payloads of a change frame.
func (f Frame) Change() (ChangeEvent, error) {
	if f.Type != FrameChange {
		return ChangeEvent{}, fmt.Errorf("frame type %q is not a change", f.Type)
	}
	switch f.EventType {
	case domain.EventInsert, domain.EventUpdate, domain.EventDelete:
	default:
		return ChangeEvent{}, fmt.Errorf("unknown event type %q", f.EventType)
	}
	ev := ChangeEvent{Topic: f.Topic, Type: f.EventType}
	var err error
	if ev.New, err = DecodePatch(f.New); err != nil {
		return ChangeEvent{}, fmt.Errorf("new record: %w", err)
	}
	if ev.Old, err = DecodePatch(f.Old); err != nil {
		return ChangeEvent{}, fmt.Errorf("old record: %w", err)
	}
	return ev, nil
}

// NewChangeFrame builds a change frame whose new record carries only fields.
// With no fields the whole record is sent.
func NewChangeFrame(eventType domain.EventType, newRec, oldRec *models.Worker, fields ...string) (Frame, error) {
	f := Frame{Type: FrameChange, Topic: domain.TopicWorkers, EventType: eventType}
	if newRec != nil {
		raw, err := encodeFields(*newRec, fields)
		if err != nil {
			return Frame{}, err
		}
		f.New = raw
	}
	if oldRec != nil {
		raw, err := encodeFields(*oldRec, []string{FieldID})
		if err != nil {
			return Frame{}, err
		}
		f.Old = raw
	}
	return f, nil
}

func encodeFields(w models.Worker, fields []string) (json.RawMessage, error) {
	full, err := codec.Marshal(w)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return full, nil
	}
	var all map[string]json.RawMessage
	if err := codec.Unmarshal(full, &all); err != nil {
		return nil, err
	}
	keep := make(map[string]json.RawMessage, len(fields)+1)
	keep[FieldID] = all[FieldID]
	for _, name := range fields {
		if v, ok := all[name]; ok {
			keep[name] = v
		}
	}
	return codec.Marshal(keep)
}

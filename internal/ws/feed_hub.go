package ws

import (
	"github.com/rs/zerolog"

	"statusboard/internal/domain"
	"statusboard/internal/feed"
	"statusboard/internal/models"
)

// FeedHub publishes worker changes to every change feed subscriber.
type FeedHub struct {
	*Hub
	log zerolog.Logger
}

func NewFeedHub(logger zerolog.Logger) *FeedHub {
	return &FeedHub{Hub: NewHub(), log: logger}
}

// Publish encodes f and broadcasts it.
func (h *FeedHub) Publish(f feed.Frame) {
	data, err := feed.Encode(f)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(f.EventType)).Msg("encode change frame")
		return
	}
	n := h.BroadcastAll(data)
	h.log.Debug().Str("event", string(f.EventType)).Int("delivered", n).Msg("change published")
}

// PublishWorker sends a change for w carrying only fields, or the whole
// record when fields is empty. Deletes carry the id in the old record.
func (h *FeedHub) PublishWorker(eventType domain.EventType, w models.Worker, fields ...string) {
	var (
		f   feed.Frame
		err error
	)
	if eventType == domain.EventDelete {
		f, err = feed.NewChangeFrame(eventType, nil, &w)
	} else {
		f, err = feed.NewChangeFrame(eventType, &w, nil, fields...)
	}
	if err != nil {
		h.log.Error().Err(err).Str("worker", w.ID).Msg("build change frame")
		return
	}
	h.Publish(f)
}

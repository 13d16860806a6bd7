package progress

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const subscriberBufferSize = 16

// Hub fans events out to in-process subscribers keyed by user id. Slow subscribers
// are skipped rather than blocking the grading flow.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	logger      zerolog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logger.With().Str("component", "progress_hub").Logger(),
	}
}

// Subscribe registers a listener for all grading events belonging to the user.
// The returned cancel function must be called to release the subscription.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBufferSize)

	h.mu.Lock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan Event]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subscribers[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subscribers, userID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}

	return ch, cancel
}

// Publish implements Broadcaster.
func (h *Hub) Publish(_ context.Context, event Event) {
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.UserID] {
		select {
		case ch <- event:
		default:
			h.logger.Warn().
				Str("user_id", event.UserID).
				Str("grading_id", event.GradingID).
				Msg("progress subscriber buffer full, dropping event")
		}
	}
}

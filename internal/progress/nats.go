package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSBroadcaster mirrors grading progress onto a NATS subject so other service
// instances can relay it to their own realtime subscribers.
type NATSBroadcaster struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSBroadcaster constructs a broadcaster publishing to the given subject.
func NewNATSBroadcaster(conn *nats.Conn, subject string, logger zerolog.Logger) *NATSBroadcaster {
	if subject == "" {
		subject = "essaymark.grading.progress"
	}
	return &NATSBroadcaster{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "progress_nats").Logger(),
	}
}

// Publish implements Broadcaster. Failures are logged and swallowed.
func (b *NATSBroadcaster) Publish(_ context.Context, event Event) {
	if b.conn == nil {
		return
	}

	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn().Err(err).Str("grading_id", event.GradingID).Msg("failed to encode progress event")
		return
	}

	if err := b.conn.Publish(b.subject, payload); err != nil {
		b.logger.Warn().Err(err).Str("grading_id", event.GradingID).Msg("failed to publish progress event")
	}
}

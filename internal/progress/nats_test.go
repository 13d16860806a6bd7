package progress

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// closedConn returns a real *nats.Conn in the closed state without a running server.
func closedConn(t *testing.T) *nats.Conn {
	t.Helper()
	conn, err := nats.Connect("nats://127.0.0.1:1", nats.RetryOnFailedConnect(true))
	require.NoError(t, err)
	conn.Close()
	return conn
}

func TestNATSBroadcasterSwallowsPublishFailures(t *testing.T) {
	broadcaster := NewNATSBroadcaster(closedConn(t), "", zerolog.Nop())

	require.NotPanics(t, func() {
		broadcaster.Publish(context.Background(), Event{Kind: KindStarted, GradingID: "g-1", UserID: "user-1"})
	})
}

func TestNATSBroadcasterSwallowsEncodeFailures(t *testing.T) {
	broadcaster := NewNATSBroadcaster(closedConn(t), "", zerolog.Nop())

	// A channel is not JSON-encodable; the event must be dropped, not propagated.
	require.NotPanics(t, func() {
		broadcaster.Publish(context.Background(), Event{Kind: KindCompleted, Result: make(chan int)})
	})
}

func TestNATSBroadcasterIgnoresNilConnection(t *testing.T) {
	broadcaster := NewNATSBroadcaster(nil, "", zerolog.Nop())

	require.NotPanics(t, func() {
		broadcaster.Publish(context.Background(), Event{Kind: KindProgress})
	})
}

func TestNATSBroadcasterDefaultsSubject(t *testing.T) {
	broadcaster := NewNATSBroadcaster(nil, "", zerolog.Nop())
	require.Equal(t, "essaymark.grading.progress", broadcaster.subject)

	custom := NewNATSBroadcaster(nil, "grading.events", zerolog.Nop())
	require.Equal(t, "grading.events", custom.subject)
}

package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/essaymark/essaymark-go-api/internal/progress"
)

const progressWriteWait = 10 * time.Second

// ProgressHandler streams grading progress events to websocket clients.
type ProgressHandler struct {
	hub    *progress.Hub
	logger zerolog.Logger
}

// NewProgressHandler creates a progress handler instance.
func NewProgressHandler(hub *progress.Hub, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		hub:    hub,
		logger: logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Use("/progress/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/progress/ws", websocket.New(h.handleConnection))
}

// handleConnection relays the caller's grading events in completion order until the
// client disconnects.
func (h *ProgressHandler) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	userID, _ := conn.Locals("user_id").(string)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		return
	}

	events, cancel := h.hub.Subscribe(userID)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Str("user_id", userID).Msg("progress subscriber write failed")
				return
			}
		}
	}
}

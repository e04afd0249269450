package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/events"
)

// heartbeatInterval keeps idle SSE connections open through proxies.
const heartbeatInterval = 30 * time.Second

type EventHandler struct {
	broker    *events.Broker
	heartbeat time.Duration
}

func NewEventHandler(broker *events.Broker) *EventHandler {
	return &EventHandler{broker: broker, heartbeat: heartbeatInterval}
}

// StreamEvents godoc
// @Summary Stream domain events via Server-Sent Events
// @Tags events
// @Security BearerAuth
// @Produce text/event-stream
// @Param type query string false "Only events of this type"
// @Param token query string false "Auth token (alternative to Bearer header for EventSource compatibility)"
// @Success 200 {string} string "event stream"
// @Failure 401 {object} ErrorResponse
// @Router /events [get]
func (h *EventHandler) StreamEvents(c *gin.Context) {
	only := events.Type(c.Query("type"))

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	fmt.Fprintf(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": ping\n\n")
			c.Writer.Flush()
		case ev, ok := <-ch:
			if !ok {
				fmt.Fprintf(c.Writer, "event: done\ndata: Stream ended\n\n")
				c.Writer.Flush()
				return
			}
			if only != "" && ev.Type != only {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				slog.Warn("Failed to encode event", "event_id", ev.ID, "error", err)
				continue
			}
			fmt.Fprintf(c.Writer, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, payload)
			c.Writer.Flush()
		}
	}
}

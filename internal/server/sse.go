package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/chatrelay/internal/messaging"
)

// handleStream relays a channel's events as Server-Sent Events until the
// client disconnects.
func handleStream(hub Subscriber, heartbeat time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		channel := c.Param("channel")
		ctx := c.Request.Context()

		sub, err := hub.Subscribe(ctx, messaging.Topic(channel))
		if err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("subscribe stream")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Live updates are unavailable."})
			return
		}
		defer sub.Close()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected", "channel": channel})
		c.Writer.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case evt, ok := <-sub.Events():
				if !ok {
					return
				}
				writeSSE(c.Writer, evt.Name, evt.Data)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}

package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zulandar/chatrelay/internal/messaging"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleWebSocket relays a channel's events to a WebSocket client. Each
// frame is a JSON object {topic, event, data} where data is the message
// payload. Inbound frames are discarded.
func handleWebSocket(hub Subscriber, heartbeat time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		channel := c.Param("channel")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the error response.
			log.Debug().Err(err).Str("channel", channel).Msg("websocket upgrade")
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		sub, err := hub.Subscribe(ctx, messaging.Topic(channel))
		if err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("subscribe websocket")
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "live updates unavailable"),
				time.Now().Add(writeWait))
			return
		}
		defer sub.Close()

		go readPump(conn, heartbeat, cancel)

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case evt, ok := <-sub.Events():
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(evt); err != nil {
					log.Debug().Err(err).Str("channel", channel).Msg("websocket write")
					return
				}
			}
		}
	}
}

// readPump consumes client frames so control messages are processed, and
// cancels the stream once the peer stops answering pings.
func readPump(conn *websocket.Conn, heartbeat time.Duration, cancel context.CancelFunc) {
	defer cancel()

	pongWait := heartbeat * 2
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

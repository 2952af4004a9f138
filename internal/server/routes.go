package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all relay routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	send := handleSend(opts.Service, opts.Logger)

	api := router.Group("/api/chat")
	api.POST("/send", send)
	api.GET("/messages", handleMessages(opts.Service))
	api.GET("/messages/:channel", handleMessages(opts.Service))
	api.GET("/stream/:channel", handleStream(opts.Hub, opts.Heartbeat, opts.Logger))

	// Legacy alias kept for older clients.
	router.POST("/send-message", send)

	router.GET("/ws/:channel", handleWebSocket(opts.Hub, opts.Heartbeat, opts.Logger))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Package server exposes the chat relay over HTTP: message submission and
// history, plus Server-Sent Events and WebSocket subscriber streams.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/chatrelay/internal/broadcast"
	"github.com/zulandar/chatrelay/internal/chat"
	"github.com/zulandar/chatrelay/internal/messaging"
	"github.com/zulandar/chatrelay/internal/validate"
)

// ChatService is the ingestion and retrieval pipeline behind the routes.
type ChatService interface {
	Submit(ctx context.Context, in validate.Input, identity string) (chat.Receipt, error)
	Fetch(ctx context.Context, channel string, limit int) ([]messaging.Payload, error)
}

// Subscriber attaches live streams to channel topics.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (*broadcast.Subscription, error)
}

// StartOpts holds configuration for the relay HTTP server.
type StartOpts struct {
	Service ChatService
	Hub     Subscriber
	Addr    string
	// Heartbeat is the keepalive interval for SSE and WebSocket streams.
	Heartbeat       time.Duration
	TrustedProxies  []string
	ShutdownTimeout time.Duration
	// Middleware runs before every route, e.g. to set IdentityKey.
	Middleware []gin.HandlerFunc
	Logger     zerolog.Logger
	Out        io.Writer
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("server: service is required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("server: hub is required")
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("server: trusted proxies: %w", err)
	}
	router.Use(requestID(), accessLog(opts.Logger), gin.Recovery())
	router.Use(opts.Middleware...)

	registerRoutes(router, opts)
	return router, nil
}

// Start launches the relay HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Open streams end with ctx.
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			opts.Logger.Warn().Err(err).Msg("server shutdown")
		}
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Chat relay listening on %s\n", opts.Addr)
	}
	opts.Logger.Info().Str("addr", opts.Addr).Msg("server started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

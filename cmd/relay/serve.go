package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zulandar/chatrelay/internal/bridge"
	"github.com/zulandar/chatrelay/internal/broadcast"
	"github.com/zulandar/chatrelay/internal/chat"
	"github.com/zulandar/chatrelay/internal/config"
	"github.com/zulandar/chatrelay/internal/db"
	"github.com/zulandar/chatrelay/internal/logging"
	"github.com/zulandar/chatrelay/internal/messaging"
	"github.com/zulandar/chatrelay/internal/ratelimit"
	"github.com/zulandar/chatrelay/internal/server"
)

func newServeCmd() *cobra.Command {
	var configPath, envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat relay HTTP server",
		Long: "Serves message submission and history over HTTP, streams new messages\n" +
			"over SSE and WebSocket, and mirrors them to configured Slack or Discord channels.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, envFile)
		},
	}

	addConfigFlags(cmd, &configPath, &envFile)
	return cmd
}

func runServe(cmd *cobra.Command, configPath, envFile string) error {
	cfg, err := loadConfig(cmd, configPath, envFile)
	if err != nil {
		return err
	}
	log := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		Out:     cmd.ErrOrStderr(),
	})

	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return a.Run(ctx, cmd.OutOrStdout())
}

// app holds every long-lived component of a running relay.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	service *chat.Service
	hub     *broadcast.Hub
	pruner  ratelimit.Pruner
	relay   *bridge.Relay
	closers []func() error
}

// buildApp opens the stores and wires the pipeline described by cfg.
func buildApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var (
		store    messaging.Store
		counters ratelimit.CounterStore
	)
	switch cfg.Database.Driver {
	case config.DriverBadger:
		bs, err := messaging.OpenBadger(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bs.Close)
		store = bs
	default:
		gormDB, err := db.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return db.Close(gormDB) })
		if err := db.AutoMigrate(gormDB); err != nil {
			a.Close()
			return nil, err
		}
		store = messaging.NewGormStore(gormDB)
		if cfg.RateLimit.Store == config.StoreDatabase {
			gs := ratelimit.NewGormStore(gormDB)
			counters, a.pruner = gs, gs
		}
	}
	if counters == nil {
		ms := ratelimit.NewMemoryStore()
		counters, a.pruner = ms, ms
	}

	a.hub = broadcast.NewHub(cfg.Broadcast.Buffer, log.With().Str("component", "hub").Logger())
	limiter := ratelimit.New(counters, cfg.RateLimit.MaxAttempts, cfg.RateLimit.Decay)
	a.service = chat.NewService(chat.ServiceOpts{
		Store:        store,
		Publisher:    a.hub,
		Guards:       []chat.Guard{chat.RateLimitGuard(limiter)},
		Location:     loc,
		StoreTimeout: cfg.Database.Timeout,
		Logger:       log.With().Str("component", "chat").Logger(),
	})

	routes, err := bridgeRoutes(cfg.Bridges)
	if err != nil {
		a.Close()
		return nil, err
	}
	if len(routes) > 0 {
		a.relay = bridge.NewRelay(bridge.RelayOpts{
			Hub:        a.hub,
			Routes:     routes,
			RatePerSec: cfg.Bridges.RatePerSec,
			Logger:     log.With().Str("component", "bridge").Logger(),
		})
	}
	return a, nil
}

// verifier is implemented by sinks that can check their credentials.
type verifier interface {
	Verify(ctx context.Context) error
}

// bridgeRoutes builds one route per enabled platform in cfg.
func bridgeRoutes(cfg config.BridgesConfig) ([]bridge.Route, error) {
	var routes []bridge.Route
	if cfg.Slack.Enabled() {
		sink, err := bridge.NewSlack(bridge.SlackOpts{
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		routes = append(routes, bridge.Route{Sink: sink, Channels: cfg.Slack.Channels})
	}
	if cfg.Discord.Enabled() {
		sink, err := bridge.NewDiscord(bridge.DiscordOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		routes = append(routes, bridge.Route{Sink: sink, Channels: cfg.Discord.Channels})
	}
	return routes, nil
}

// Run starts the background workers and blocks in the HTTP server until ctx
// is cancelled.
func (a *app) Run(ctx context.Context, out io.Writer) error {
	defer a.hub.Close()

	go func() {
		if err := ratelimit.RunPruner(ctx, a.pruner, a.cfg.RateLimit.PruneSchedule, a.log); err != nil {
			a.log.Error().Err(err).Msg("rate limit pruner stopped")
		}
	}()

	if a.relay != nil {
		a.verifyBridges(ctx)
		go func() {
			if err := a.relay.Run(ctx); err != nil {
				a.log.Error().Err(err).Msg("bridge relay stopped")
			}
		}()
	}

	return server.Start(ctx, server.StartOpts{
		Service:         a.service,
		Hub:             a.hub,
		Addr:            a.cfg.Addr(),
		Heartbeat:       a.cfg.Broadcast.Heartbeat,
		TrustedProxies:  a.cfg.Server.TrustedProxies,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		Logger:          a.log.With().Str("component", "http").Logger(),
		Out:             out,
	})
}

// verifyBridges warns about sinks whose credentials are rejected. The relay
// still runs; deliveries to a broken sink fail and are logged.
func (a *app) verifyBridges(ctx context.Context) {
	vctx, cancel := context.WithTimeout(ctx, a.cfg.Database.Timeout)
	defer cancel()
	for _, r := range a.relayRoutes() {
		v, ok := r.Sink.(verifier)
		if !ok {
			continue
		}
		if err := v.Verify(vctx); err != nil {
			a.log.Warn().Err(err).Str("sink", r.Sink.Name()).Msg("bridge credentials rejected")
		}
	}
}

func (a *app) relayRoutes() []bridge.Route {
	if a.relay == nil {
		return nil
	}
	return a.relay.Routes()
}

// Close releases the stores in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close store")
		}
	}
	a.closers = nil
}

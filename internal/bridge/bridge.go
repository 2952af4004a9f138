// Package bridge mirrors committed chat messages to external platforms.
// Bridges sit outside the ingestion path: they read from the broadcast hub
// and a failed delivery is logged, never retried.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/zulandar/chatrelay/internal/broadcast"
	"github.com/zulandar/chatrelay/internal/messaging"
	"golang.org/x/time/rate"
)

// Sink delivers a single message to an external platform.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, p messaging.Payload) error
}

// Route sends messages from the listed chat channels to Sink. An empty
// Channels list forwards every channel.
type Route struct {
	Sink     Sink
	Channels []string
}

func (r Route) matches(channel string) bool {
	return len(r.Channels) == 0 || lo.Contains(r.Channels, channel)
}

// Subscriber attaches to hub topics.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (*broadcast.Subscription, error)
}

// RelayOpts configures a Relay.
type RelayOpts struct {
	Hub    Subscriber
	Routes []Route
	// RatePerSec caps deliveries per second across all sinks.
	RatePerSec float64
	Logger     zerolog.Logger
}

// Relay forwards hub events to configured sinks.
type Relay struct {
	hub     Subscriber
	routes  []Route
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewRelay creates a Relay from opts.
func NewRelay(opts RelayOpts) *Relay {
	rps := opts.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	burst := max(int(rps), 1)
	return &Relay{
		hub:     opts.Hub,
		routes:  opts.Routes,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     opts.Logger,
	}
}

// Run relays message events until ctx is cancelled or the hub closes.
func (r *Relay) Run(ctx context.Context) error {
	if len(r.routes) == 0 {
		return nil
	}
	sub, err := r.hub.Subscribe(ctx, broadcast.AllTopics)
	if err != nil {
		return fmt.Errorf("bridge: subscribe: %w", err)
	}
	defer sub.Close()

	r.log.Info().Strs("sinks", lo.Map(r.routes, func(rt Route, _ int) string { return rt.Sink.Name() })).
		Msg("bridge relay started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if evt.Name != messaging.EventMessageSent {
				continue
			}
			var p messaging.Payload
			if err := json.Unmarshal(evt.Data, &p); err != nil {
				r.log.Warn().Err(err).Str("topic", evt.Topic).Msg("bridge: decode payload")
				continue
			}
			r.forward(ctx, p)
		}
	}
}

func (r *Relay) forward(ctx context.Context, p messaging.Payload) {
	for _, rt := range r.routes {
		if !rt.matches(p.Channel) {
			continue
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		if err := rt.Sink.Deliver(ctx, p); err != nil {
			r.log.Warn().Err(err).
				Str("sink", rt.Sink.Name()).
				Str("channel", p.Channel).
				Uint("message_id", p.ID).
				Msg("bridge delivery failed")
		}
	}
}

// Routes returns the configured routes.
func (r *Relay) Routes() []Route {
	return r.routes
}

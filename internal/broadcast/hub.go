// Package broadcast is the in-process publish/subscribe hub that fans new
// messages out to live subscribers.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// AllTopics subscribes to every topic.
const AllTopics = "*"

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("broadcast: hub closed")

// Event is a single published notification.
type Event struct {
	Topic string          `json:"topic"`
	Name  string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub delivers events to subscribers of a topic. Delivery is best-effort:
// a subscriber whose buffer is full misses the event and Publish moves on.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	closed bool

	buffer int
	log    zerolog.Logger
}

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Publish encodes payload once and hands it to every current subscriber of
// topic. It never waits on a subscriber.
func (h *Hub) Publish(ctx context.Context, topic, name string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("broadcast: publish %s: %w", topic, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broadcast: encode %s: %w", name, err)
	}
	evt := Event{Topic: topic, Name: name, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	for sub := range h.topics[topic] {
		h.deliver(sub, evt)
	}
	for sub := range h.topics[AllTopics] {
		h.deliver(sub, evt)
	}
	return nil
}

func (h *Hub) deliver(sub *Subscription, evt Event) {
	select {
	case sub.events <- evt:
	default:
		n := sub.dropped.Add(1)
		h.log.Warn().
			Str("topic", evt.Topic).
			Str("subscription", sub.topic).
			Int64("dropped", n).
			Msg("subscriber buffer full, event dropped")
	}
}

// Subscribe attaches to topic. Events published before the call are not
// replayed. The subscription ends when ctx is done or Close is called, after
// which Events is closed.
func (h *Hub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	sub := &Subscription{
		topic:  topic,
		events: make(chan Event, h.buffer),
		done:   make(chan struct{}),
		hub:    h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close ends every subscription and rejects further use of the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var subs []*Subscription
	for _, set := range h.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, sub.topic)
		}
	}
}

// Subscription is a lazy stream of events for one topic.
type Subscription struct {
	topic   string
	events  chan Event
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	hub     *Hub
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Events returns the event stream. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.events }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped returns how many events were skipped because the buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close detaches the subscription from the hub. It is safe to call more than
// once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
		close(s.events)
	})
}

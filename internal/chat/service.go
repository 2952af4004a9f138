// Package chat orchestrates message ingestion and retrieval: guards, then
// validation, then persistence, then broadcast.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/chatrelay/internal/messaging"
	"github.com/zulandar/chatrelay/internal/models"
	"github.com/zulandar/chatrelay/internal/ratelimit"
	"github.com/zulandar/chatrelay/internal/validate"
)

// MaxFetch caps how many messages Fetch returns.
const MaxFetch = 50

// DefaultStoreTimeout bounds a single store call when none is configured.
const DefaultStoreTimeout = 5 * time.Second

// Publisher announces committed messages.
type Publisher interface {
	Publish(ctx context.Context, topic, name string, payload any) error
}

// ServiceOpts configures a Service.
type ServiceOpts struct {
	Store     messaging.Store
	Publisher Publisher
	// Guards run in order before validation.
	Guards []Guard
	// Location renders formatted_time; nil means UTC.
	Location     *time.Location
	StoreTimeout time.Duration
	Logger       zerolog.Logger
}

// Service runs the ingestion pipeline and serves channel history.
type Service struct {
	store        messaging.Store
	pub          Publisher
	guards       []Guard
	loc          *time.Location
	storeTimeout time.Duration
	log          zerolog.Logger
}

// NewService creates a Service from opts.
func NewService(opts ServiceOpts) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	return &Service{
		store:        opts.Store,
		pub:          opts.Publisher,
		guards:       opts.Guards,
		loc:          opts.Location,
		storeTimeout: opts.StoreTimeout,
		log:          opts.Logger,
	}
}

// Receipt describes the outcome of Submit. Quota is set whenever the rate
// limiter was consulted, including on failure.
type Receipt struct {
	Message models.Message
	Payload messaging.Payload
	Quota   *ratelimit.Decision
	// PublishErr is a *PublishError when subscribers were not notified.
	PublishErr error
}

// Submit runs the guards, validates in, stores the message and publishes it
// on the channel topic. It returns a *RateLimitError, a
// *validate.ValidationError or a *PersistenceError from the stage that
// rejected the message. A publish failure is logged and recorded in the
// Receipt without failing the call.
func (s *Service) Submit(ctx context.Context, in validate.Input, identity string) (Receipt, error) {
	sub := &Submission{Input: in, Identity: identity}
	for _, guard := range s.guards {
		if err := guard(ctx, sub); err != nil {
			return Receipt{Quota: sub.Quota}, err
		}
	}
	rcpt := Receipt{Quota: sub.Quota}

	msg, err := validate.Validate(sub.Input)
	if err != nil {
		return rcpt, err
	}

	// A commit in progress is not abandoned when the caller goes away.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	created, err := s.store.Create(storeCtx, msg.Content, msg.Channel, messaging.CreateOpts{
		UserName: msg.UserName,
		UserID:   msg.UserID,
		Metadata: msg.Metadata,
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("identity", identity).
			Str("channel", msg.Channel).
			Interface("input", msg).
			Msg("failed to send message")
		return rcpt, &PersistenceError{Op: "create", Channel: msg.Channel, Err: err}
	}

	rcpt.Message = *created
	rcpt.Payload = messaging.NewPayload(*created, s.loc)

	topic := messaging.Topic(created.Channel)
	if err := s.pub.Publish(context.WithoutCancel(ctx), topic, messaging.EventMessageSent, rcpt.Payload); err != nil {
		perr := &PublishError{Topic: topic, MessageID: created.ID, Err: err}
		s.log.Warn().Err(err).
			Str("topic", topic).
			Uint("message_id", created.ID).
			Msg("failed to broadcast message")
		rcpt.PublishErr = perr
	}
	return rcpt, nil
}

// Fetch returns up to limit of the most recent messages in channel, oldest
// first. An empty channel means the default channel; limit is clamped to
// [1, MaxFetch] with zero or less meaning MaxFetch.
func (s *Service) Fetch(ctx context.Context, channel string, limit int) ([]messaging.Payload, error) {
	if channel == "" {
		channel = messaging.DefaultChannel
	}
	if limit <= 0 || limit > MaxFetch {
		limit = MaxFetch
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	msgs, err := s.store.ListByChannel(storeCtx, channel, limit)
	if err != nil {
		s.log.Error().Err(err).Str("channel", channel).Msg("failed to fetch messages")
		return nil, &PersistenceError{Op: "fetch", Channel: channel, Err: err}
	}
	return messaging.NewPayloads(msgs, s.loc), nil
}

// IsRejection reports whether err is a caller-correctable rejection rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	var rl *RateLimitError
	var verr *validate.ValidationError
	return errors.As(err, &rl) || errors.As(err, &verr)
}

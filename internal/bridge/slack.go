package bridge

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/chatrelay/internal/messaging"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTestContext(ctx context.Context) (*slackapi.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackOpts holds parameters for creating a SlackSink.
type SlackOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// SlackSink posts messages to one Slack channel.
type SlackSink struct {
	client    slackClient
	channelID string
}

// NewSlack creates a SlackSink.
func NewSlack(opts SlackOpts) (*SlackSink, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &SlackSink{client: client, channelID: opts.ChannelID}, nil
}

// Name implements Sink.
func (s *SlackSink) Name() string { return "slack" }

// Verify checks the bot token against the Slack API.
func (s *SlackSink) Verify(ctx context.Context) error {
	if _, err := s.client.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	return nil
}

// Deliver posts p as plain text; Slack control characters are escaped.
func (s *SlackSink) Deliver(ctx context.Context, p messaging.Payload) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slackapi.MsgOptionText(formatText(p, "*"), true),
	)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

package bridge

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/chatrelay/internal/messaging"
)

// discordSession abstracts the discordgo.Session methods we use, enabling
// test mocks.
type discordSession interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordOpts holds parameters for creating a DiscordSink.
type DiscordOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel to post to
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// DiscordSink posts messages to one Discord channel over the REST API.
type DiscordSink struct {
	sess      discordSession
	channelID string
}

// NewDiscord creates a DiscordSink.
func NewDiscord(opts DiscordOpts) (*DiscordSink, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	sess := opts.Session
	if sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		sess = dg
	}
	return &DiscordSink{sess: sess, channelID: opts.ChannelID}, nil
}

// Name implements Sink.
func (d *DiscordSink) Name() string { return "discord" }

// Verify checks the bot token by fetching the bot's own user.
func (d *DiscordSink) Verify(ctx context.Context) error {
	if _, err := d.sess.User("@me", discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: fetch bot user: %w", err)
	}
	return nil
}

// Deliver posts p with mentions disabled so chat content cannot ping the
// Discord channel.
func (d *DiscordSink) Deliver(ctx context.Context, p messaging.Payload) error {
	_, err := d.sess.ChannelMessageSendComplex(d.channelID, &discordgo.MessageSend{
		Content:         formatText(p, "**"),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

package channels

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/slack-go/slack"

	"github.com/GovClaw/GovClaw/internal/bus"
	"github.com/GovClaw/GovClaw/internal/config"
)

// SlackChannel delivers outbound messages via the Slack Web API. It is
// outbound-only: a delivery target for scheduled jobs and loop replies,
// no inbound listener.
type SlackChannel struct {
	BaseChannel
	cfg config.SlackConfig
	api *slack.Client
}

func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) *SlackChannel {
	return &SlackChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		cfg:         cfg,
		api:         slack.New(cfg.BotToken),
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Start(ctx context.Context) error {
	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(ctx, msg); err != nil {
			slog.Error("slack send failed", "chat", msg.ChatID, "error", err)
		}
	})
	return nil
}

func (c *SlackChannel) Stop() error { return nil }

// Send posts a message to a Slack channel or user. File messages are
// uploaded with the content as the initial comment.
func (c *SlackChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if msg.FilePath != "" {
		info, err := os.Stat(msg.FilePath)
		if err != nil {
			return fmt.Errorf("slack: stat upload: %w", err)
		}
		_, err = c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			Channel:        msg.ChatID,
			File:           msg.FilePath,
			Filename:       filepath.Base(msg.FilePath),
			FileSize:       int(info.Size()),
			InitialComment: msg.Content,
		})
		if err != nil {
			return fmt.Errorf("slack: upload file: %w", err)
		}
		return nil
	}

	_, _, err := c.api.PostMessageContext(ctx, msg.ChatID, slack.MsgOptionText(msg.Content, false))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

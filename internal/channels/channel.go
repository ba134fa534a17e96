// Package channels implements the chat transports that feed the agent loop.
package channels

import (
	"context"
	"strings"

	"github.com/GovClaw/GovClaw/internal/bus"
)

// Channel defines the interface for chat platforms (Telegram, Slack, etc).
type Channel interface {
	// Name returns the channel name (e.g. "telegram").
	Name() string
	// Start starts the channel listener.
	Start(ctx context.Context) error
	// Stop stops the channel listener.
	Stop() error
	// Send sends a message to a specific chat.
	Send(ctx context.Context, msg *bus.OutboundMessage) error
}

// BaseChannel provides common functionality for channels.
type BaseChannel struct {
	Bus *bus.MessageBus
}

// SenderAllowed checks a sender against a channel allow-list. An empty list
// admits everyone; "*" is an explicit wildcard entry.
func SenderAllowed(senderID string, allowFrom []string) bool {
	if len(allowFrom) == 0 {
		return true
	}
	senderID = strings.TrimSpace(senderID)
	for _, allowed := range allowFrom {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, senderID) {
			return true
		}
	}
	return false
}

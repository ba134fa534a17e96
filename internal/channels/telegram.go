package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/GovClaw/GovClaw/internal/bus"
	"github.com/GovClaw/GovClaw/internal/config"
	"github.com/GovClaw/GovClaw/internal/store"
)

// telegramMessageLimit is Telegram's hard cap per message bubble.
const telegramMessageLimit = 4096

// TelegramChannel long-polls the Telegram Bot API. Administrative commands
// (/approve, /ban, /audit, ...) are answered synchronously against the store;
// everything else is handed to the agent loop through the bus.
type TelegramChannel struct {
	BaseChannel
	cfg   config.TelegramConfig
	store *store.Store
	bot   *tgbotapi.BotAPI

	mu       sync.Mutex
	sessions map[string]int // chat id -> conversation version, bumped by /new
}

// NewTelegramChannel authenticates against the Bot API and returns the channel.
func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus, st *store.Store) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	slog.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &TelegramChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		cfg:         cfg,
		store:       st,
		bot:         bot,
		sessions:    make(map[string]int),
	}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Start subscribes for outbound delivery and begins the long-poll loop in a
// background goroutine.
func (c *TelegramChannel) Start(ctx context.Context) error {
	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(ctx, msg); err != nil {
			slog.Error("telegram send failed", "chat", msg.ChatID, "error", err)
		}
	})

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := c.bot.GetUpdatesChan(updateCfg)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				c.handleUpdate(update)
			}
		}
	}()
	return nil
}

// Stop aborts the long-poll loop.
func (c *TelegramChannel) Stop() error {
	c.bot.StopReceivingUpdates()
	return nil
}

// Send delivers one outbound message, chunking text at the platform limit.
// A message carrying a file path is delivered as a document upload.
func (c *TelegramChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", msg.ChatID, err)
	}

	if msg.FilePath != "" {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(msg.FilePath))
		doc.Caption = msg.Content
		if _, err := c.bot.Send(doc); err != nil {
			return fmt.Errorf("telegram: send document: %w", err)
		}
		return nil
	}

	for _, chunk := range splitMessage(msg.Content, telegramMessageLimit) {
		if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("telegram: send message: %w", err)
		}
	}
	return nil
}

func (c *TelegramChannel) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	senderID := strconv.FormatInt(msg.From.ID, 10)
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	if !SenderAllowed(senderID, c.cfg.AllowFrom) {
		slog.Warn("telegram message from unlisted sender dropped", "sender", senderID)
		return
	}

	if msg.IsCommand() {
		reply := c.handleCommand(msg.Command(), msg.CommandArguments(), chatID)
		if _, err := c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
			slog.Error("telegram command reply failed", "chat", chatID, "error", err)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	inbound := &bus.InboundMessage{
		Channel:  c.Name(),
		SenderID: senderID,
		ChatID:   chatID,
		Content:  text,
	}
	if scope := c.sessionScope(chatID); scope != "" {
		inbound.Metadata = map[string]any{bus.MetaKeySessionScope: scope}
	}
	c.Bus.PublishInbound(inbound)
}

// handleCommand maps an administrative command to its store operation and
// returns the reply text.
func (c *TelegramChannel) handleCommand(cmd, args, chatID string) string {
	switch cmd {
	case "approve":
		return c.setCapability(args, store.StatusApproved)
	case "ban":
		return c.setCapability(args, store.StatusBanned)
	case "capabilities":
		return c.listCapabilities()
	case "audit":
		return c.recentAudit(args)
	case "jobs":
		return c.listJobs()
	case "addjob":
		return c.addJob(args, chatID)
	case "removejob":
		return c.removeJob(args)
	case "new":
		c.bumpSession(chatID)
		return "Started a fresh conversation. Previous history is kept but no longer used."
	case "help", "start":
		return helpText
	default:
		return "Unknown command. Send /help for the list."
	}
}

const helpText = `Commands:
/approve <capability> - approve a capability
/ban <capability> - ban a capability
/capabilities - list capabilities and their statuses
/audit [n] - show the n most recent audit records (default 10)
/jobs - list scheduled jobs
/addjob <name>|<interval>|<message> - add a recurring job (e.g. check|30m|check the feed)
/removejob <id> - remove a job
/new - start a fresh conversation
/help - this message`

func (c *TelegramChannel) setCapability(args string, status store.CapabilityStatus) string {
	name := strings.TrimSpace(args)
	if name == "" {
		return fmt.Sprintf("Usage: /%s <capability>", verbFor(status))
	}
	if err := c.store.SetCapabilityStatus(name, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Unknown capability: %s", name)
		}
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Capability %s is now %s.", name, status)
}

func verbFor(status store.CapabilityStatus) string {
	if status == store.StatusBanned {
		return "ban"
	}
	return "approve"
}

func (c *TelegramChannel) listCapabilities() string {
	caps, err := c.store.ListCapabilities()
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(caps) == 0 {
		return "No capabilities registered."
	}
	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Capabilities:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, caps[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *TelegramChannel) recentAudit(args string) string {
	limit := 10
	if v := strings.TrimSpace(args); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return "Usage: /audit [n]"
		}
		limit = n
	}
	records, err := c.store.RecentAudit("", limit)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(records) == 0 {
		return "Audit log is empty."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d audit records:\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&b, "[%s] %s %s", rec.DecidedAt.Format("01-02 15:04"), rec.Verdict, rec.Capability)
		if rec.Reason != "" {
			fmt.Fprintf(&b, " (%s)", rec.Reason)
		}
		if rec.ErrorText != "" {
			fmt.Fprintf(&b, " error: %s", truncate(rec.ErrorText, 80))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *TelegramChannel) listJobs() string {
	jobs, err := c.store.ListJobs()
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(jobs) == 0 {
		return "No scheduled jobs."
	}
	var b strings.Builder
	b.WriteString("Scheduled jobs:\n")
	for _, j := range jobs {
		fmt.Fprintf(&b, "- %s (id: %s) every %s, next %s", j.Name, j.ID, j.Interval, j.NextRunAt.Format("01-02 15:04"))
		if j.LastStatus != "" {
			fmt.Fprintf(&b, " [last: %s]", j.LastStatus)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *TelegramChannel) addJob(args, chatID string) string {
	parts := strings.SplitN(args, "|", 3)
	if len(parts) != 3 {
		return "Usage: /addjob <name>|<interval>|<message> (e.g. check|30m|check the feed)"
	}
	name := strings.TrimSpace(parts[0])
	message := strings.TrimSpace(parts[2])
	interval, err := time.ParseDuration(strings.TrimSpace(parts[1]))
	if name == "" || message == "" || err != nil {
		return "Usage: /addjob <name>|<interval>|<message> (e.g. check|30m|check the feed)"
	}

	job := &store.CronJob{
		Name:     name,
		Message:  message,
		Interval: interval,
		Channel:  c.Name(),
		ChatID:   chatID,
	}
	if err := c.store.AddJob(job); err != nil {
		if errors.Is(err, store.ErrIntervalTooShort) {
			return fmt.Sprintf("Error: interval must be at least %s.", c.store.IntervalFloor())
		}
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Added job %s (id: %s), first run at %s.", job.Name, job.ID, job.NextRunAt.Format("15:04:05"))
}

func (c *TelegramChannel) removeJob(args string) string {
	id := strings.TrimSpace(args)
	if id == "" {
		return "Usage: /removejob <id>"
	}
	if err := c.store.RemoveJob(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("No job with id %s.", id)
		}
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Removed job %s.", id)
}

// bumpSession starts a fresh conversation for a chat. History for the old
// session stays in the store; the new scope simply never loads it.
func (c *TelegramChannel) bumpSession(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[chatID]++
}

func (c *TelegramChannel) sessionScope(chatID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := c.sessions[chatID]; v > 0 {
		return fmt.Sprintf("%s:%s:v%d", c.Name(), chatID, v)
	}
	return ""
}

// splitMessage breaks text into chunks of at most limit bytes, preferring
// newline boundaries and never cutting inside a UTF-8 rune.
func splitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Package agent implements the governed agent loop.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/GovClaw/GovClaw/internal/bus"
	"github.com/GovClaw/GovClaw/internal/policy"
	"github.com/GovClaw/GovClaw/internal/provider"
	"github.com/GovClaw/GovClaw/internal/store"
	"github.com/GovClaw/GovClaw/internal/tools"
)

// ErrAuditFailed aborts a Process call when the audit decision row cannot be
// committed. An unaudited execution must never look audited.
var ErrAuditFailed = errors.New("agent: audit append failed")

// Terminal texts the loop synthesizes.
const (
	maxIterationsText = "I reached the maximum number of reasoning steps. Please try a simpler request."
	providerErrorText = "Sorry, I ran into a problem talking to the model. Please try again."
)

// AuditSink receives finalized audit records. Used to mirror the audit log
// to external systems; failures there never affect the loop.
type AuditSink func(rec store.AuditRecord)

// LoopOptions contains configuration for the agent loop.
type LoopOptions struct {
	Bus           *bus.MessageBus // nil for delegated workers
	Provider      provider.LLMProvider
	Store         *store.Store
	Policy        policy.Engine
	Registry      *tools.Registry
	Workspace     string
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
	MemoryWindow  int
	ToolTimeout   time.Duration
	Ephemeral     bool // skip history persistence (delegated workers)
	AuditSink     AuditSink
}

// Loop is the governed execution engine. It mediates every LLM decision
// through the policy engine and the write-ahead audit log.
type Loop struct {
	bus           *bus.MessageBus
	provider      provider.LLMProvider
	store         *store.Store
	policy        policy.Engine
	registry      *tools.Registry
	workspace     string
	model         string
	maxTokens     int
	temperature   float64
	maxIterations int
	memoryWindow  int
	toolTimeout   time.Duration
	ephemeral     bool
	auditSink     AuditSink

	sessionMu sync.Mutex
	sessions  map[string]*sync.Mutex
}

// NewLoop creates an agent loop.
func NewLoop(opts LoopOptions) *Loop {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 15
	}
	window := opts.MemoryWindow
	if window <= 0 {
		window = 40
	}
	timeout := opts.ToolTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	model := opts.Model
	if model == "" && opts.Provider != nil {
		model = opts.Provider.DefaultModel()
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}

	return &Loop{
		bus:           opts.Bus,
		provider:      opts.Provider,
		store:         opts.Store,
		policy:        opts.Policy,
		registry:      opts.Registry,
		workspace:     opts.Workspace,
		model:         model,
		maxTokens:     maxTokens,
		temperature:   temperature,
		maxIterations: maxIter,
		memoryWindow:  window,
		toolTimeout:   timeout,
		ephemeral:     opts.Ephemeral,
		auditSink:     opts.AuditSink,
		sessions:      make(map[string]*sync.Mutex),
	}
}

// Run consumes inbound messages from the bus until ctx is cancelled.
// Each message is processed in its own goroutine; messages for the same
// session are serialized by a per-key lock.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("agent loop started", "model", l.model)

	for {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("consume inbound failed", "error", err)
			continue
		}

		go l.handleInbound(ctx, msg)
	}
}

func (l *Loop) handleInbound(ctx context.Context, msg *bus.InboundMessage) {
	sessionKey := sessionKeyFor(msg)

	lock := l.sessionLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	inv := tools.Invocation{
		SessionKey: sessionKey,
		Namespace:  namespaceFor(sessionKey),
		Channel:    msg.Channel,
		ChatID:     msg.ChatID,
	}
	response, err := l.ProcessWithInvocation(ctx, msg.Content, sessionKey, inv)
	if err != nil {
		slog.Error("process failed", "session", sessionKey, "error", err)
		response = fmt.Sprintf("Error: %v", err)
	}
	if response == "" {
		return
	}

	l.bus.PublishOutbound(&bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		TraceID: msg.TraceID,
		Content: response,
	})
}

func (l *Loop) sessionLock(key string) *sync.Mutex {
	l.sessionMu.Lock()
	defer l.sessionMu.Unlock()
	lock, ok := l.sessions[key]
	if !ok {
		lock = &sync.Mutex{}
		l.sessions[key] = lock
	}
	return lock
}

// sessionKeyFor derives the session key from an inbound message. Channels
// may override it through metadata (used for /new session resets).
func sessionKeyFor(msg *bus.InboundMessage) string {
	if scope, ok := msg.Metadata[bus.MetaKeySessionScope].(string); ok && scope != "" {
		return scope
	}
	return msg.Channel + ":" + msg.ChatID
}

// namespaceFor maps a session key to a memory namespace: user sessions share
// state per chat, cron sessions per job.
func namespaceFor(sessionKey string) string {
	parts := strings.Split(sessionKey, ":")
	switch {
	case strings.HasPrefix(sessionKey, "cron:") && len(parts) >= 2:
		return "job:" + parts[1]
	case len(parts) >= 2:
		return "user:" + parts[1]
	default:
		return "global"
	}
}

// Process runs one governed exchange for library callers (CLI chat,
// scheduler, delegation). The invocation context is derived from the
// session key.
func (l *Loop) Process(ctx context.Context, content, sessionKey string) (string, error) {
	parts := strings.SplitN(sessionKey, ":", 2)
	channel, chatID := "cli", "default"
	if len(parts) == 2 {
		channel, chatID = parts[0], parts[1]
	}
	return l.ProcessWithInvocation(ctx, content, sessionKey, tools.Invocation{
		SessionKey: sessionKey,
		Namespace:  namespaceFor(sessionKey),
		Channel:    channel,
		ChatID:     chatID,
	})
}

// ProcessWithInvocation runs one governed exchange with explicit routing
// context for capability execution.
func (l *Loop) ProcessWithInvocation(ctx context.Context, content, sessionKey string, inv tools.Invocation) (string, error) {
	messages, err := l.buildMessages(content, sessionKey)
	if err != nil {
		return "", err
	}

	l.persist(&store.Message{SessionKey: sessionKey, Role: store.RoleUser, Content: content})

	execCtx := tools.WithInvocation(ctx, inv)
	toolDefs := l.toolDefinitions()

	for i := 0; i < l.maxIterations; i++ {
		resp, err := l.provider.Chat(ctx, &provider.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Model:       l.model,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		})
		if err != nil {
			slog.Error("provider call failed", "session", sessionKey, "error", err)
			l.persist(&store.Message{SessionKey: sessionKey, Role: store.RoleAssistant, Content: providerErrorText})
			return providerErrorText, nil
		}

		if len(resp.ToolCalls) == 0 {
			l.persist(&store.Message{SessionKey: sessionKey, Role: store.RoleAssistant, Content: resp.Content})
			return resp.Content, nil
		}

		callsJSON, _ := json.Marshal(resp.ToolCalls)
		l.persist(&store.Message{
			SessionKey: sessionKey,
			Role:       store.RoleAssistant,
			Content:    resp.Content,
			ToolCalls:  string(callsJSON),
		})
		messages = append(messages, provider.Message{
			Role:      store.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result, err := l.invokeGoverned(execCtx, sessionKey, inv, tc)
			if err != nil {
				return "", err
			}

			l.persist(&store.Message{
				SessionKey: sessionKey,
				Role:       store.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
			messages = append(messages, provider.Message{
				Role:       store.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	slog.Warn("max iterations reached", "session", sessionKey, "limit", l.maxIterations)
	l.persist(&store.Message{SessionKey: sessionKey, Role: store.RoleAssistant, Content: maxIterationsText})
	return maxIterationsText, nil
}

// invokeGoverned runs one capability invocation through the full governance
// path: status resolution, policy evaluation, write-ahead audit, execution,
// outcome finalization. The returned string is always a tool result for the
// conversation; the error is non-nil only for ErrAuditFailed.
func (l *Loop) invokeGoverned(ctx context.Context, sessionKey string, inv tools.Invocation, tc provider.ToolCall) (string, error) {
	status, err := l.store.CapabilityStatusOf(tc.Name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("agent: resolve capability status: %w", err)
	}

	var pathParams []string
	if tool, ok := l.registry.Get(tc.Name); ok {
		pathParams = tools.PathParamsOf(tool)
	}

	verdict := l.policy.Evaluate(policy.Request{
		Capability: tc.Name,
		Arguments:  tc.Arguments,
		Status:     status,
		PathParams: pathParams,
		Workspace:  l.workspace,
	})

	argsJSON, _ := json.Marshal(tc.Arguments)
	rec := &store.AuditRecord{
		SessionKey: sessionKey,
		Capability: tc.Name,
		Arguments:  string(argsJSON),
		Verdict:    store.VerdictAllowed,
		Reason:     verdict.Reason,
	}
	if !verdict.Allowed {
		rec.Verdict = store.VerdictBlocked
	}
	if err := l.store.AppendDecision(rec); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuditFailed, err)
	}

	var result, errText string
	start := time.Now()
	if !verdict.Allowed {
		slog.Warn("capability blocked", "capability", tc.Name, "reason", verdict.Reason)
		result = "blocked by policy: " + verdict.Reason
	} else {
		execCtx, cancel := context.WithTimeout(ctx, l.toolTimeout)
		out, execErr := l.registry.Execute(execCtx, tc.Name, tc.Arguments)
		cancel()
		if execErr != nil {
			slog.Warn("capability failed", "capability", tc.Name, "error", execErr)
			result = "tool failed: " + execErr.Error()
			errText = execErr.Error()
		} else {
			result = out
		}
	}
	latency := time.Since(start)

	// Outcome finalization is best-effort: the decision row is already
	// durable and immutable.
	if err := l.store.FinalizeOutcome(rec.RecordID, result, errText, latency); err != nil {
		slog.Warn("audit finalize failed", "record", rec.RecordID, "error", err)
	}
	if l.auditSink != nil {
		rec.Result = result
		rec.ErrorText = errText
		rec.LatencyMS = latency.Milliseconds()
		rec.FinalizedAt = time.Now()
		l.auditSink(*rec)
	}

	return result, nil
}

func (l *Loop) buildMessages(content, sessionKey string) ([]provider.Message, error) {
	messages := []provider.Message{{
		Role:    store.RoleSystem,
		Content: BuildSystemPrompt(l.workspace, l.registry.Names()),
	}}

	history, err := l.store.History(sessionKey, l.memoryWindow)
	if err != nil {
		return nil, fmt.Errorf("agent: load history: %w", err)
	}
	for _, m := range history {
		pm := provider.Message{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		if m.ToolCalls != "" {
			if err := json.Unmarshal([]byte(m.ToolCalls), &pm.ToolCalls); err != nil {
				slog.Warn("skipping malformed tool calls in history", "message", m.ID, "error", err)
			}
		}
		messages = append(messages, pm)
	}

	messages = append(messages, provider.Message{Role: store.RoleUser, Content: content})
	return messages, nil
}

func (l *Loop) toolDefinitions() []provider.ToolDefinition {
	names := l.registry.Names()
	defs := make([]provider.ToolDefinition, 0, len(names))
	for _, name := range names {
		tool, _ := l.registry.Get(name)
		defs = append(defs, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

func (l *Loop) persist(m *store.Message) {
	if l.ephemeral {
		return
	}
	if err := l.store.AppendMessage(m); err != nil {
		slog.Warn("persist message failed", "session", m.SessionKey, "error", err)
	}
}

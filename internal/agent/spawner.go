package agent

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Spawner builds ephemeral worker loops for delegated tasks. Workers run
// over a capability subset that excludes spawn_subagent, so no descendant
// can delegate further.
type Spawner struct {
	parent        *Loop
	maxIterations int
}

// NewSpawner creates a spawner over the parent loop. maxIterations is the
// worker budget and must stay below the parent's.
func NewSpawner(parent *Loop, maxIterations int) *Spawner {
	if maxIterations <= 0 || maxIterations >= parent.maxIterations {
		maxIterations = 5
	}
	if maxIterations >= parent.maxIterations {
		maxIterations = parent.maxIterations - 1
	}
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &Spawner{parent: parent, maxIterations: maxIterations}
}

// Spawn runs a delegated task synchronously and returns the worker's
// terminal text. Worker history is ephemeral: nothing is persisted under
// the worker's session key.
func (s *Spawner) Spawn(ctx context.Context, task, parentSession string) (string, error) {
	sessionKey := "subagent:" + uuid.NewString()
	slog.Info("spawning worker", "session", sessionKey, "parent", parentSession)

	worker := NewLoop(LoopOptions{
		Provider:      s.parent.provider,
		Store:         s.parent.store,
		Policy:        s.parent.policy,
		Registry:      s.parent.registry.Subset("spawn_subagent"),
		Workspace:     s.parent.workspace,
		Model:         s.parent.model,
		MaxTokens:     s.parent.maxTokens,
		Temperature:   s.parent.temperature,
		MaxIterations: s.maxIterations,
		MemoryWindow:  s.parent.memoryWindow,
		ToolTimeout:   s.parent.toolTimeout,
		Ephemeral:     true,
		AuditSink:     s.parent.auditSink,
	})

	return worker.Process(ctx, task, sessionKey)
}

// Package scheduler runs persisted cron jobs through the agent loop.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GovClaw/GovClaw/internal/bus"
	"github.com/GovClaw/GovClaw/internal/store"
	"github.com/GovClaw/GovClaw/internal/tools"
)

// Runner executes a job's prompt through the governed loop.
type Runner interface {
	ProcessWithInvocation(ctx context.Context, content, sessionKey string, inv tools.Invocation) (string, error)
}

// Config holds scheduler settings.
type Config struct {
	TickInterval  time.Duration
	LockPath      string
	MaxConcurrent int
}

// Scheduler polls the store for due jobs on a fixed tick and runs each one
// in a fresh session. Job runs are at-least-once: a job whose tick was
// missed while the process was down runs once on the next tick, never
// multiple catch-up times.
type Scheduler struct {
	cfg    Config
	store  *store.Store
	runner Runner
	bus    *bus.MessageBus
	lock   *FileLock
	sem    *Semaphore

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a Scheduler.
func New(cfg Config, st *store.Store, runner Runner, b *bus.MessageBus) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	return &Scheduler{
		cfg:      cfg,
		store:    st,
		runner:   runner,
		bus:      b,
		lock:     NewFileLock(cfg.LockPath),
		sem:      NewSemaphore(cfg.MaxConcurrent),
		inflight: make(map[string]bool),
	}
}

// Run starts the tick loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started", "tick", s.cfg.TickInterval)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// tick dispatches all due jobs. The file lock serializes dispatch across
// processes but is released when tick returns, while job goroutines may
// still be running: until a run's AdvanceJob commits, another process can
// see the job as due and run it again. Runs are at-least-once by contract,
// so a duplicate run is preferred over a lost one; the in-flight set
// deduplicates within this process.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	acquired, err := s.lock.TryLock()
	if err != nil {
		slog.Warn("scheduler lock error", "error", err)
		return
	}
	if !acquired {
		slog.Debug("tick skipped: lock held by another process")
		return
	}
	defer s.lock.Unlock()

	due, err := s.store.DueJobs(now)
	if err != nil {
		slog.Error("due jobs query failed", "error", err)
		return
	}

	for _, job := range due {
		job := job
		if !s.markInflight(job.ID) {
			slog.Debug("job still running, skipping", "job", job.ID)
			continue
		}
		if !s.sem.TryAcquire() {
			slog.Warn("job skipped: concurrency limit", "job", job.ID)
			s.clearInflight(job.ID)
			continue
		}
		go func() {
			defer s.sem.Release()
			defer s.clearInflight(job.ID)
			s.runJob(ctx, &job, now)
		}()
	}
}

// runJob executes one job in a fresh session and advances its schedule.
// Failures are recorded on the job row and never affect other jobs.
func (s *Scheduler) runJob(ctx context.Context, job *store.CronJob, now time.Time) {
	sessionKey := fmt.Sprintf("cron:%s:%s", job.ID, uuid.NewString())
	namespace := "job:" + job.ID
	slog.Info("running cron job", "job", job.ID, "name", job.Name, "session", sessionKey)

	prompt := s.injectMemory(namespace, job.Message)

	result, err := s.runner.ProcessWithInvocation(ctx, prompt, sessionKey, tools.Invocation{
		SessionKey: sessionKey,
		Namespace:  namespace,
		Channel:    job.Channel,
		ChatID:     job.ChatID,
	})

	status, errText := "ok", ""
	if err != nil {
		status, errText = "error", err.Error()
		slog.Error("cron job failed", "job", job.ID, "error", err)
	} else if result != "" && s.bus != nil {
		s.bus.PublishOutbound(&bus.OutboundMessage{
			Channel: job.Channel,
			ChatID:  job.ChatID,
			Content: result,
		})
	}

	if err := s.store.AdvanceJob(job.ID, now, now.Add(job.Interval), status, errText); err != nil {
		slog.Error("advance job failed", "job", job.ID, "error", err)
	}
}

// injectMemory prepends the job's persisted memory so state survives the
// fresh session each run gets.
func (s *Scheduler) injectMemory(namespace, message string) string {
	entries, err := s.store.ListMemory(namespace)
	if err != nil || len(entries) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString("Previous memory:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", e.Key, e.Value)
	}
	b.WriteString("\n")
	b.WriteString(message)
	return b.String()
}

func (s *Scheduler) markInflight(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[jobID] {
		return false
	}
	s.inflight[jobID] = true
	return true
}

func (s *Scheduler) clearInflight(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, jobID)
}

package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GovClaw/GovClaw/internal/bus"
	"github.com/GovClaw/GovClaw/internal/store"
	"github.com/GovClaw/GovClaw/internal/tools"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    []runnerCall
	response string
	err      error
}

type runnerCall struct {
	content    string
	sessionKey string
	inv        tools.Invocation
}

func (f *fakeRunner) ProcessWithInvocation(ctx context.Context, content, sessionKey string, inv tools.Invocation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runnerCall{content: content, sessionKey: sessionKey, inv: inv})
	return f.response, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newSchedulerFixture(t *testing.T) (*Scheduler, *store.Store, *fakeRunner, *bus.MessageBus) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "sched.db"), time.Minute)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	runner := &fakeRunner{response: "job output"}
	b := bus.NewMessageBus()
	sched := New(Config{
		TickInterval: 10 * time.Second,
		LockPath:     filepath.Join(dir, "sched.lock"),
	}, s, runner, b)
	return sched, s, runner, b
}

func addDueJob(t *testing.T, s *store.Store) *store.CronJob {
	t.Helper()
	job := &store.CronJob{Name: "check", Message: "check the thing", Channel: "telegram", ChatID: "42", Interval: time.Minute}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("add job: %v", err)
	}
	// Make it due now.
	if err := s.AdvanceJob(job.ID, time.Now().Add(-2*time.Minute), time.Now().Add(-time.Minute), "", ""); err != nil {
		t.Fatalf("backdate job: %v", err)
	}
	return job
}

func TestRunJobDeliversAndAdvances(t *testing.T) {
	sched, s, runner, b := newSchedulerFixture(t)
	job := addDueJob(t, s)

	now := time.Now()
	sched.runJob(context.Background(), job, now)

	if runner.callCount() != 1 {
		t.Fatalf("expected one run, got %d", runner.callCount())
	}
	call := runner.calls[0]
	if !strings.HasPrefix(call.sessionKey, "cron:"+job.ID+":") {
		t.Fatalf("unexpected session key: %q", call.sessionKey)
	}
	if call.inv.Namespace != "job:"+job.ID || call.inv.Channel != "telegram" || call.inv.ChatID != "42" {
		t.Fatalf("unexpected invocation: %+v", call.inv)
	}

	if b.OutboundSize() != 1 {
		t.Fatalf("result not delivered, outbound size %d", b.OutboundSize())
	}

	jobs, _ := s.ListJobs()
	if jobs[0].LastStatus != "ok" {
		t.Fatalf("status not recorded: %q", jobs[0].LastStatus)
	}
	if jobs[0].NextRunAt.Unix() != now.Add(time.Minute).Unix() {
		t.Fatalf("next run not advanced by one interval: %v", jobs[0].NextRunAt)
	}
}

func TestRunJobFreshSessionEachRun(t *testing.T) {
	sched, s, runner, _ := newSchedulerFixture(t)
	job := addDueJob(t, s)

	sched.runJob(context.Background(), job, time.Now())
	sched.runJob(context.Background(), job, time.Now())

	if runner.calls[0].sessionKey == runner.calls[1].sessionKey {
		t.Fatal("each run must get a fresh session key")
	}
}

func TestRunJobInjectsMemory(t *testing.T) {
	sched, s, runner, _ := newSchedulerFixture(t)
	job := addDueJob(t, s)
	s.SetMemory("job:"+job.ID, "balance", "150")

	sched.runJob(context.Background(), job, time.Now())

	content := runner.calls[0].content
	if !strings.Contains(content, "Previous memory:") || !strings.Contains(content, "balance: 150") {
		t.Fatalf("memory not injected: %q", content)
	}
	if !strings.Contains(content, "check the thing") {
		t.Fatalf("job message missing: %q", content)
	}
}

func TestRunJobErrorRecordedNotDelivered(t *testing.T) {
	sched, s, runner, b := newSchedulerFixture(t)
	job := addDueJob(t, s)
	runner.err = errors.New("provider down")

	sched.runJob(context.Background(), job, time.Now())

	if b.OutboundSize() != 0 {
		t.Fatal("failed run must not deliver output")
	}
	jobs, _ := s.ListJobs()
	if jobs[0].LastStatus != "error" || !strings.Contains(jobs[0].LastError, "provider down") {
		t.Fatalf("error not recorded: %+v", jobs[0])
	}
	// Schedule still advances so a broken job cannot spin every tick.
	if !jobs[0].NextRunAt.After(time.Now()) {
		t.Fatalf("failed job not rescheduled: %v", jobs[0].NextRunAt)
	}
}

func TestTickRunsDueJobs(t *testing.T) {
	sched, s, runner, _ := newSchedulerFixture(t)
	addDueJob(t, s)

	sched.tick(context.Background(), time.Now())

	deadline := time.After(2 * time.Second)
	for runner.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("due job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTickSkipsNotDueJobs(t *testing.T) {
	sched, s, runner, _ := newSchedulerFixture(t)
	job := &store.CronJob{Name: "later", Message: "m", Channel: "telegram", ChatID: "1", Interval: time.Hour}
	if err := s.AddJob(job); err != nil {
		t.Fatal(err)
	}

	sched.tick(context.Background(), time.Now())
	time.Sleep(50 * time.Millisecond)

	if runner.callCount() != 0 {
		t.Fatal("job ran before its next-run time")
	}
}

func TestTickSkipsInflightJob(t *testing.T) {
	sched, s, runner, _ := newSchedulerFixture(t)
	job := addDueJob(t, s)

	if !sched.markInflight(job.ID) {
		t.Fatal("first mark should succeed")
	}
	sched.tick(context.Background(), time.Now())
	time.Sleep(50 * time.Millisecond)

	if runner.callCount() != 0 {
		t.Fatal("in-flight job must not run twice")
	}
	sched.clearInflight(job.ID)
}

func TestFileLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	first := NewFileLock(path)
	ok, err := first.TryLock()
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}

	second := NewFileLock(path)
	ok, err = second.TryLock()
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	if ok {
		t.Fatal("second holder must not acquire the lock")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = second.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock not reacquirable after unlock: ok=%v err=%v", ok, err)
	}
	second.Unlock()
}

func TestSemaphoreLimits(t *testing.T) {
	sem := NewSemaphore(2)
	if !sem.TryAcquire() || !sem.TryAcquire() {
		t.Fatal("acquires within capacity should succeed")
	}
	if sem.TryAcquire() {
		t.Fatal("acquire beyond capacity should fail")
	}
	sem.Release()
	if !sem.TryAcquire() {
		t.Fatal("released slot should be reusable")
	}
	if sem.Available() != 0 {
		t.Fatalf("unexpected availability: %d", sem.Available())
	}
}

package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), time.Minute)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMessageHistoryWindow(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		msg := &Message{SessionKey: "telegram:1", Role: RoleUser, Content: string(rune('a' + i))}
		if err := s.AppendMessage(msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	hist, err := s.History("telegram:1", 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected window of 3, got %d", len(hist))
	}
	// Oldest first within the window.
	if hist[0].Content != "c" || hist[2].Content != "e" {
		t.Fatalf("window not chronological: %q ... %q", hist[0].Content, hist[2].Content)
	}
}

func TestHistoryIsolatedBySession(t *testing.T) {
	s := openTestStore(t)
	s.AppendMessage(&Message{SessionKey: "a", Role: RoleUser, Content: "one"})
	s.AppendMessage(&Message{SessionKey: "b", Role: RoleUser, Content: "two"})

	hist, err := s.History("a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Content != "one" {
		t.Fatalf("unexpected history: %+v", hist)
	}
}

func TestAuditDecisionThenOutcome(t *testing.T) {
	s := openTestStore(t)

	rec := &AuditRecord{
		SessionKey: "telegram:1",
		Capability: "exec",
		Arguments:  `{"command":"ls"}`,
		Verdict:    VerdictAllowed,
	}
	if err := s.AppendDecision(rec); err != nil {
		t.Fatalf("append decision: %v", err)
	}
	if rec.RecordID == "" {
		t.Fatal("record id should be assigned")
	}

	if err := s.FinalizeOutcome(rec.RecordID, "file.txt", "", 120*time.Millisecond); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	recent, err := s.RecentAudit("telegram:1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected one record, got %d", len(recent))
	}
	got := recent[0]
	if got.Verdict != VerdictAllowed || got.Result != "file.txt" || got.LatencyMS != 120 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.FinalizedAt.IsZero() {
		t.Fatal("finalized timestamp missing")
	}
}

func TestFinalizeUnknownRecord(t *testing.T) {
	s := openTestStore(t)
	if err := s.FinalizeOutcome("nope", "", "", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentAuditNewestFirstAndScoped(t *testing.T) {
	s := openTestStore(t)
	s.AppendDecision(&AuditRecord{SessionKey: "x", Capability: "one", Verdict: VerdictBlocked, Reason: "r1"})
	s.AppendDecision(&AuditRecord{SessionKey: "x", Capability: "two", Verdict: VerdictAllowed})
	s.AppendDecision(&AuditRecord{SessionKey: "y", Capability: "three", Verdict: VerdictAllowed})

	recent, err := s.RecentAudit("x", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Capability != "two" {
		t.Fatalf("expected newest first for session x, got %+v", recent)
	}

	all, err := s.RecentAudit("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all records, got %d", len(all))
	}
}

func TestCapabilityLifecycle(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnsureCapability("exec", StatusPending); err != nil {
		t.Fatal(err)
	}
	// Ensure again with a different default must not overwrite.
	if err := s.EnsureCapability("exec", StatusApproved); err != nil {
		t.Fatal(err)
	}
	st, err := s.CapabilityStatusOf("exec")
	if err != nil {
		t.Fatal(err)
	}
	if st != StatusPending {
		t.Fatalf("ensure overwrote existing status: %s", st)
	}

	if err := s.SetCapabilityStatus("exec", StatusApproved); err != nil {
		t.Fatal(err)
	}
	st, _ = s.CapabilityStatusOf("exec")
	if st != StatusApproved {
		t.Fatalf("expected approved, got %s", st)
	}

	if err := s.SetCapabilityStatus("ghost", StatusBanned); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown capability, got %v", err)
	}
	if _, err := s.CapabilityStatusOf("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetCapabilityStatusRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	s.EnsureCapability("exec", StatusPending)
	if err := s.SetCapabilityStatus("exec", "weird"); err == nil {
		t.Fatal("invalid status should be rejected")
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetMemory("job:42", "balance", "100"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMemory("job:42", "balance", "150"); err != nil {
		t.Fatal(err)
	}

	v, err := s.GetMemory("job:42", "balance")
	if err != nil {
		t.Fatal(err)
	}
	if v != "150" {
		t.Fatalf("last write should win, got %q", v)
	}

	// Namespaces are isolated.
	if _, err := s.GetMemory("user:42", "balance"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across namespaces, got %v", err)
	}

	entries, err := s.ListMemory("job:42")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Key != "balance" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if err := s.DeleteMemory("job:42", "balance"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteMemory("job:42", "balance"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should report ErrNotFound, got %v", err)
	}
}

func TestAddJobEnforcesFloor(t *testing.T) {
	s := openTestStore(t)

	err := s.AddJob(&CronJob{Name: "fast", Message: "m", Channel: "telegram", ChatID: "1", Interval: 30 * time.Second})
	if !errors.Is(err, ErrIntervalTooShort) {
		t.Fatalf("expected ErrIntervalTooShort, got %v", err)
	}
	jobs, _ := s.ListJobs()
	if len(jobs) != 0 {
		t.Fatal("rejected job must not be persisted")
	}

	before := time.Now()
	job := &CronJob{Name: "ok", Message: "m", Channel: "telegram", ChatID: "1", Interval: time.Minute}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("add job: %v", err)
	}
	if job.ID == "" {
		t.Fatal("job id should be assigned")
	}
	// First run is one interval after creation.
	if job.NextRunAt.Before(before.Add(time.Minute).Add(-2*time.Second)) ||
		job.NextRunAt.After(time.Now().Add(time.Minute).Add(2*time.Second)) {
		t.Fatalf("unexpected first next-run: %v", job.NextRunAt)
	}
}

func TestDueJobsAndAdvance(t *testing.T) {
	s := openTestStore(t)

	job := &CronJob{Name: "j", Message: "m", Channel: "telegram", ChatID: "1", Interval: time.Minute}
	if err := s.AddJob(job); err != nil {
		t.Fatal(err)
	}

	// Not due yet.
	due, err := s.DueJobs(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("job should not be due yet: %+v", due)
	}

	// Due after its next-run time, even long after (missed ticks run once).
	due, err = s.DueJobs(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Fatalf("expected one due job, got %d", len(due))
	}

	lastRun := time.Now()
	nextRun := lastRun.Add(job.Interval)
	if err := s.AdvanceJob(job.ID, lastRun, nextRun, "ok", ""); err != nil {
		t.Fatal(err)
	}

	jobs, _ := s.ListJobs()
	if jobs[0].NextRunAt.Unix() != nextRun.Unix() {
		t.Fatalf("next run not advanced: %v vs %v", jobs[0].NextRunAt, nextRun)
	}
	if jobs[0].NextRunAt.Sub(jobs[0].LastRunAt) < jobs[0].Interval {
		t.Fatal("next run must be at least one interval after the previous run")
	}
	if jobs[0].LastStatus != "ok" {
		t.Fatalf("last status not recorded: %q", jobs[0].LastStatus)
	}
}

func TestRemoveJob(t *testing.T) {
	s := openTestStore(t)
	job := &CronJob{Name: "j", Message: "m", Channel: "telegram", ChatID: "1", Interval: time.Minute}
	s.AddJob(job)

	if err := s.RemoveJob(job.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveJob(job.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

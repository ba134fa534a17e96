package mirror

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/GovClaw/GovClaw/internal/store"
)

func TestAuditEventEncoding(t *testing.T) {
	rec := store.AuditRecord{
		RecordID:   "r1",
		SessionKey: "telegram:1",
		Capability: "exec",
		Arguments:  `{"command":"ls"}`,
		Verdict:    store.VerdictAllowed,
		Result:     "file.txt",
		LatencyMS:  42,
		DecidedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	value, err := json.Marshal(auditEvent{
		RecordID:   rec.RecordID,
		SessionKey: rec.SessionKey,
		Capability: rec.Capability,
		Arguments:  rec.Arguments,
		Verdict:    rec.Verdict,
		Result:     rec.Result,
		LatencyMS:  rec.LatencyMS,
		DecidedAt:  rec.DecidedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["capability"] != "exec" || got["verdict"] != "allowed" {
		t.Fatalf("unexpected payload: %v", got)
	}
	if got["decided_at"] != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp: %v", got["decided_at"])
	}
	if _, present := got["reason"]; present {
		t.Fatal("empty optional fields should be omitted")
	}
}

func TestNewPublisherSplitsBrokers(t *testing.T) {
	p := New("k1:9092,k2:9092", "govclaw.audit")
	defer p.Close()
	if p.writer.Topic != "govclaw.audit" {
		t.Fatalf("unexpected topic: %s", p.writer.Topic)
	}
	if p.writer.Addr.String() != "k1:9092,k2:9092" {
		t.Fatalf("unexpected addr: %s", p.writer.Addr)
	}
}

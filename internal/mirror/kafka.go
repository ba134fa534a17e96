// Package mirror publishes finalized audit records to Kafka. The SQLite
// audit log stays the source of truth; mirror failures are logged and
// dropped, never surfaced to the loop.
package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/GovClaw/GovClaw/internal/store"
)

// auditEvent is the wire form of a mirrored audit record.
type auditEvent struct {
	RecordID   string `json:"record_id"`
	SessionKey string `json:"session_key"`
	Capability string `json:"capability"`
	Arguments  string `json:"arguments,omitempty"`
	Verdict    string `json:"verdict"`
	Reason     string `json:"reason,omitempty"`
	Result     string `json:"result,omitempty"`
	ErrorText  string `json:"error_text,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	DecidedAt  string `json:"decided_at"`
}

// Publisher mirrors audit records to a Kafka topic.
type Publisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// New creates a Publisher for the given brokers (comma-separated) and topic.
func New(brokers, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		timeout: 10 * time.Second,
	}
}

// Publish mirrors one finalized record. Fire-and-forget: errors are logged.
func (p *Publisher) Publish(rec store.AuditRecord) {
	value, err := json.Marshal(auditEvent{
		RecordID:   rec.RecordID,
		SessionKey: rec.SessionKey,
		Capability: rec.Capability,
		Arguments:  rec.Arguments,
		Verdict:    rec.Verdict,
		Reason:     rec.Reason,
		Result:     rec.Result,
		ErrorText:  rec.ErrorText,
		LatencyMS:  rec.LatencyMS,
		DecidedAt:  rec.DecidedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.Warn("audit mirror encode failed", "record", rec.RecordID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(rec.SessionKey),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Warn("audit mirror publish failed", "record", rec.RecordID, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

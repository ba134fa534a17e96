package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit verdicts.
const (
	VerdictAllowed = "allowed"
	VerdictBlocked = "blocked"
)

// AuditRecord binds one invocation to its verdict and outcome.
// The verdict row is committed before execution (write-ahead discipline);
// the outcome fields are filled in afterwards. Verdict fields are never
// mutated and rows are never deleted.
type AuditRecord struct {
	RecordID    string
	SessionKey  string
	TraceID     string
	Capability  string
	Arguments   string
	Verdict     string
	Reason      string
	Result      string
	ErrorText   string
	LatencyMS   int64
	DecidedAt   time.Time
	FinalizedAt time.Time
}

// AppendDecision durably commits the verdict for an invocation. Callers must
// not execute the invocation unless this returns nil.
func (s *Store) AppendDecision(rec *AuditRecord) error {
	if rec.RecordID == "" {
		rec.RecordID = uuid.NewString()
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_log (record_id, session_key, trace_id, capability, arguments, verdict, reason, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RecordID, rec.SessionKey, nullIfEmpty(rec.TraceID), rec.Capability,
		nullIfEmpty(rec.Arguments), rec.Verdict, nullIfEmpty(rec.Reason), rec.DecidedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: append audit decision: %w", err)
	}
	return nil
}

// FinalizeOutcome fills in the execution outcome for a decision row.
// It only ever sets outcome fields; the verdict is immutable.
func (s *Store) FinalizeOutcome(recordID, result, errorText string, latency time.Duration) error {
	res, err := s.db.Exec(
		`UPDATE audit_log SET result = ?, error_text = ?, latency_ms = ?, finalized_at = ?
		 WHERE record_id = ?`,
		truncateText(result, 4000), nullIfEmpty(errorText), latency.Milliseconds(), time.Now().Unix(), recordID,
	)
	if err != nil {
		return fmt.Errorf("store: finalize audit outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentAudit returns the newest audit records first. An empty sessionKey
// returns records across all sessions.
func (s *Store) RecentAudit(sessionKey string, limit int) ([]AuditRecord, error) {
	query := `SELECT record_id, session_key, trace_id, capability, arguments, verdict, reason,
			result, error_text, latency_ms, decided_at, finalized_at
		FROM audit_log`
	args := []any{}
	if sessionKey != "" {
		query += ` WHERE session_key = ?`
		args = append(args, sessionKey)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: recent audit: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var traceID, arguments, reason, result, errorText sql.NullString
		var decided int64
		var finalized sql.NullInt64
		if err := rows.Scan(&rec.RecordID, &rec.SessionKey, &traceID, &rec.Capability, &arguments,
			&rec.Verdict, &reason, &result, &errorText, &rec.LatencyMS, &decided, &finalized); err != nil {
			return nil, fmt.Errorf("store: scan audit: %w", err)
		}
		rec.TraceID = traceID.String
		rec.Arguments = arguments.String
		rec.Reason = reason.String
		rec.Result = result.String
		rec.ErrorText = errorText.String
		rec.DecidedAt = time.Unix(decided, 0)
		rec.FinalizedAt = unixOrZero(finalized)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

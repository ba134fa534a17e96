package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Message is one row of append-only session history.
// Assistant rows may carry the JSON-encoded invocation list they requested;
// tool rows carry the correlation id of the invocation they answer.
type Message struct {
	ID         int64
	SessionKey string
	Role       string
	Content    string
	ToolCalls  string
	ToolCallID string
	CreatedAt  time.Time
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// AppendMessage appends a message to the session history. History is
// append-only: there is no update or delete operation.
func (s *Store) AppendMessage(m *Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO messages (session_key, role, content, tool_calls, tool_call_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.SessionKey, m.Role, m.Content, nullIfEmpty(m.ToolCalls), nullIfEmpty(m.ToolCallID), m.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// History returns the most recent limit messages for a session, oldest first.
func (s *Store) History(sessionKey string, limit int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, session_key, role, content, tool_calls, tool_call_id, created_at
		 FROM messages WHERE session_key = ? ORDER BY id DESC LIMIT ?`,
		sessionKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var toolCalls, toolCallID sql.NullString
		var created int64
		if err := rows.Scan(&m.ID, &m.SessionKey, &m.Role, &m.Content, &toolCalls, &toolCallID, &created); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.ToolCalls = toolCalls.String
		m.ToolCallID = toolCallID.String
		m.CreatedAt = time.Unix(created, 0)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package store

import (
	"database/sql"
	"fmt"
	"time"
)

// MemoryEntry is one namespaced key-value pair.
// Namespaces follow the convention user:<chat-id> or job:<job-id>.
type MemoryEntry struct {
	Namespace string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// SetMemory stores a value, overwriting any previous one (last-write-wins).
func (s *Store) SetMemory(namespace, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO memory (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: set memory: %w", err)
	}
	return nil
}

// GetMemory returns a stored value or ErrNotFound.
func (s *Store) GetMemory(namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM memory WHERE namespace = ? AND key = ?`, namespace, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get memory: %w", err)
	}
	return value, nil
}

// ListMemory returns all entries in a namespace, ordered by key.
func (s *Store) ListMemory(namespace string) ([]MemoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT namespace, key, value, updated_at FROM memory WHERE namespace = ? ORDER BY key`,
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list memory: %w", err)
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		var updated int64
		if err := rows.Scan(&e.Namespace, &e.Key, &e.Value, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt = time.Unix(updated, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteMemory removes an entry. Returns ErrNotFound if it was absent.
func (s *Store) DeleteMemory(namespace, key string) error {
	res, err := s.db.Exec(`DELETE FROM memory WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("store: delete memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

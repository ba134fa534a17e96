package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CapabilityStatus is the approval state of a capability.
type CapabilityStatus string

// Capability statuses. Only explicit administrative action moves a
// capability between them.
const (
	StatusApproved CapabilityStatus = "approved"
	StatusPending  CapabilityStatus = "pending"
	StatusBanned   CapabilityStatus = "banned"
)

// ValidStatus reports whether s is a known capability status.
func ValidStatus(s CapabilityStatus) bool {
	switch s {
	case StatusApproved, StatusPending, StatusBanned:
		return true
	}
	return false
}

// EnsureCapability inserts a capability with the given default status if it
// is not registered yet. An existing row is left untouched, so administrative
// decisions survive restarts.
func (s *Store) EnsureCapability(name string, def CapabilityStatus) error {
	_, err := s.db.Exec(
		`INSERT INTO capabilities (name, status, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, string(def), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: ensure capability: %w", err)
	}
	return nil
}

// SetCapabilityStatus changes a capability's status. Administrative only;
// takes effect for all subsequent policy checks immediately.
func (s *Store) SetCapabilityStatus(name string, status CapabilityStatus) error {
	if !ValidStatus(status) {
		return fmt.Errorf("store: invalid capability status %q", status)
	}
	res, err := s.db.Exec(
		`UPDATE capabilities SET status = ?, updated_at = ? WHERE name = ?`,
		string(status), time.Now().Unix(), name,
	)
	if err != nil {
		return fmt.Errorf("store: set capability status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CapabilityStatusOf returns the status of a capability.
// Unknown capabilities return ErrNotFound; callers treat that as not approved.
func (s *Store) CapabilityStatusOf(name string) (CapabilityStatus, error) {
	var status string
	err := s.db.QueryRow(`SELECT status FROM capabilities WHERE name = ?`, name).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: capability status: %w", err)
	}
	return CapabilityStatus(status), nil
}

// ListCapabilities returns all registered capabilities and their statuses.
func (s *Store) ListCapabilities() (map[string]CapabilityStatus, error) {
	rows, err := s.db.Query(`SELECT name, status FROM capabilities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list capabilities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]CapabilityStatus)
	for rows.Next() {
		var name, status string
		if err := rows.Scan(&name, &status); err != nil {
			return nil, err
		}
		out[name] = CapabilityStatus(status)
	}
	return out, rows.Err()
}

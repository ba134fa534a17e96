package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CronJob is a recurring scheduled task. The scheduler only ever advances
// next_run_at and the last_* fields; everything else is set at creation.
type CronJob struct {
	ID         string
	Name       string
	Message    string
	Interval   time.Duration
	Channel    string
	ChatID     string
	Enabled    bool
	NextRunAt  time.Time
	LastRunAt  time.Time
	LastStatus string
	LastError  string
	CreatedAt  time.Time
}

// AddJob persists a new cron job. Intervals below the configured floor are
// rejected with ErrIntervalTooShort and nothing is written. The first run is
// scheduled one full interval after creation.
func (s *Store) AddJob(j *CronJob) error {
	if j.Interval < s.intervalFloor {
		return fmt.Errorf("%w: %v < %v", ErrIntervalTooShort, j.Interval, s.intervalFloor)
	}
	if j.ID == "" {
		j.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	now := time.Now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.NextRunAt.IsZero() {
		j.NextRunAt = j.CreatedAt.Add(j.Interval)
	}
	j.Enabled = true

	_, err := s.db.Exec(
		`INSERT INTO cron_jobs (id, name, message, interval_seconds, channel, chat_id, enabled, next_run_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		j.ID, j.Name, j.Message, int64(j.Interval.Seconds()), j.Channel, j.ChatID,
		j.NextRunAt.Unix(), j.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: add job: %w", err)
	}
	return nil
}

// RemoveJob deletes a job by id. Returns ErrNotFound if it does not exist.
func (s *Store) RemoveJob(id string) error {
	res, err := s.db.Exec(`DELETE FROM cron_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: remove job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListJobs returns all jobs ordered by creation time.
func (s *Store) ListJobs() ([]CronJob, error) {
	return s.queryJobs(`SELECT id, name, message, interval_seconds, channel, chat_id, enabled,
		next_run_at, last_run_at, last_status, last_error, created_at
		FROM cron_jobs ORDER BY created_at`)
}

// DueJobs returns enabled jobs whose next run time is at or before now.
// A job whose tick was missed (process down) is still due and runs once.
func (s *Store) DueJobs(now time.Time) ([]CronJob, error) {
	return s.queryJobs(`SELECT id, name, message, interval_seconds, channel, chat_id, enabled,
		next_run_at, last_run_at, last_status, last_error, created_at
		FROM cron_jobs WHERE enabled = 1 AND next_run_at <= ? ORDER BY next_run_at`, now.Unix())
}

// AdvanceJob records a completed run and schedules the next one.
// nextRun must be lastRun + interval; the scheduler owns that arithmetic.
func (s *Store) AdvanceJob(id string, lastRun, nextRun time.Time, status, errText string) error {
	res, err := s.db.Exec(
		`UPDATE cron_jobs SET last_run_at = ?, next_run_at = ?, last_status = ?, last_error = ? WHERE id = ?`,
		lastRun.Unix(), nextRun.Unix(), status, nullIfEmpty(errText), id,
	)
	if err != nil {
		return fmt.Errorf("store: advance job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryJobs(query string, args ...any) ([]CronJob, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query jobs: %w", err)
	}
	defer rows.Close()

	var out []CronJob
	for rows.Next() {
		var j CronJob
		var intervalSec, nextRun, created int64
		var enabled int
		var lastRun sql.NullInt64
		var lastStatus, lastError sql.NullString
		if err := rows.Scan(&j.ID, &j.Name, &j.Message, &intervalSec, &j.Channel, &j.ChatID,
			&enabled, &nextRun, &lastRun, &lastStatus, &lastError, &created); err != nil {
			return nil, fmt.Errorf("store: scan job: %w", err)
		}
		j.Interval = time.Duration(intervalSec) * time.Second
		j.Enabled = enabled != 0
		j.NextRunAt = time.Unix(nextRun, 0)
		j.LastRunAt = unixOrZero(lastRun)
		j.LastStatus = lastStatus.String
		j.LastError = lastError.String
		j.CreatedAt = time.Unix(created, 0)
		out = append(out, j)
	}
	return out, rows.Err()
}

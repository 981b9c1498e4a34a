package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Run operations

// StartRun inserts a new run record and returns its ID.
func (s *Store) StartRun(run *Run) (int64, error) {
	query := `
		INSERT INTO runs (started_at, source, progress_file, resumed, profile, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}

	result, err := s.db.Exec(query,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.Source,
		run.ProgressFile,
		run.Resumed,
		run.Profile,
		run.Status,
	)
	if err != nil {
		return 0, wrapErr("failed to insert run", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	run.ID = id
	return id, nil
}

// FinishRun stores the final status and counts of run.
func (s *Store) FinishRun(run *Run) error {
	query := `
		UPDATE runs
		SET finished_at = ?, status = ?, succeeded = ?, failed = ?, skipped = ?
		WHERE id = ?
	`

	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	result, err := s.db.Exec(query,
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Status,
		run.Succeeded,
		run.Failed,
		run.Skipped,
		run.ID,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to finish run %d", run.ID), err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %d not found", run.ID)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id int64) (*Run, error) {
	query := `
		SELECT id, started_at, finished_at, source, progress_file, resumed, profile, status, succeeded, failed, skipped
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to get run %d", id), err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `
		SELECT id, started_at, finished_at, source, progress_file, resumed, profile, status, succeeded, failed, skipped
		FROM runs
		ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt, source, progressFile sql.NullString

	err := row.Scan(
		&run.ID,
		&startedAt,
		&finishedAt,
		&source,
		&progressFile,
		&run.Resumed,
		&run.Profile,
		&run.Status,
		&run.Succeeded,
		&run.Failed,
		&run.Skipped,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt, err = time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for run %d: %w", run.ID, err)
	}
	if finishedAt.Valid && finishedAt.String != "" {
		run.FinishedAt, err = time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for run %d: %w", run.ID, err)
		}
	}
	run.Source = source.String
	run.ProgressFile = progressFile.String

	return &run, nil
}

// Attempt operations

// InsertAttempt records one attempt.
func (s *Store) InsertAttempt(a *Attempt) error {
	query := `
		INSERT INTO attempts (run_id, kind, name, target, outcome, reason, message, exit_code, duration_ms, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now()
	}
	if a.Target == "" {
		a.Target = a.Name
	}

	result, err := s.db.Exec(query,
		a.RunID,
		a.Kind,
		a.Name,
		a.Target,
		a.Outcome,
		a.Reason,
		a.Message,
		a.ExitCode,
		a.Duration.Milliseconds(),
		a.AttemptedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("failed to insert attempt for %s", a.Name), err)
	}

	if id, err := result.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// ListAttempts returns the attempts of a run in the order they were made.
func (s *Store) ListAttempts(runID int64) ([]*Attempt, error) {
	query := `
		SELECT id, run_id, kind, name, target, outcome, reason, message, exit_code, duration_ms, attempted_at
		FROM attempts
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("failed to list attempts for run %d", runID), err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		var a Attempt
		var reason, message sql.NullString
		var exitCode, durationMs sql.NullInt64
		var attemptedAt string

		err := rows.Scan(
			&a.ID,
			&a.RunID,
			&a.Kind,
			&a.Name,
			&a.Target,
			&a.Outcome,
			&reason,
			&message,
			&exitCode,
			&durationMs,
			&attemptedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}

		a.Reason = reason.String
		a.Message = message.String
		a.ExitCode = int(exitCode.Int64)
		a.Duration = time.Duration(durationMs.Int64) * time.Millisecond
		a.AttemptedAt, err = time.Parse(time.RFC3339, attemptedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse attempted_at for attempt %d: %w", a.ID, err)
		}

		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}

// CountAttempts returns how often name was attempted across all runs, and
// how many of those attempts failed.
func (s *Store) CountAttempts(name string) (total, failed int, err error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM attempts
		WHERE name = ?
	`
	if err := s.db.QueryRow(query, name).Scan(&total, &failed); err != nil {
		return 0, 0, wrapErr(fmt.Sprintf("failed to count attempts for %s", name), err)
	}
	return total, failed, nil
}

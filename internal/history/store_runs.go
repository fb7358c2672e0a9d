package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRun indicates a write referenced a session hash with no run.
var ErrUnknownRun = errors.New("unknown run")

// Begin records a new running entry for a session.
func (s *Store) Begin(ctx context.Context, params BeginParams) (*Run, error) {
	hash := strings.TrimSpace(params.SessionHash)
	if hash == "" {
		return nil, errors.New("begin run: session hash is required")
	}
	now := timestamp()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO runs (
            session_hash, prompt, negative_prompt, source, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hash,
		params.Prompt,
		params.NegativePrompt,
		nullableString(params.Source),
		StatusRunning,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.Get(ctx, hash)
}

// RecordStage stores the path a completed stage produced.
func (s *Store) RecordStage(ctx context.Context, sessionHash string, stage int, path, url string) error {
	id, err := s.runID(ctx, sessionHash)
	if err != nil {
		return err
	}
	now := timestamp()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT OR REPLACE INTO stage_results (run_id, stage, path, url, completed_at) VALUES (?, ?, ?, ?, ?)`,
		id, stage, path, nullableString(url), now,
	); err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}
	return s.touch(ctx, id, now)
}

// Complete marks a run finished with its final image path.
func (s *Store) Complete(ctx context.Context, sessionHash, finalPath string) error {
	return s.finish(ctx, sessionHash,
		`UPDATE runs SET status = ?, final_path = ?, updated_at = ? WHERE session_hash = ?`,
		StatusCompleted, finalPath, timestamp(), sessionHash,
	)
}

// Fail marks a run failed at the given stage with a classified error.
func (s *Store) Fail(ctx context.Context, sessionHash string, stage int, kind, message string) error {
	return s.finish(ctx, sessionHash,
		`UPDATE runs SET status = ?, failed_stage = ?, error_kind = ?, error_message = ?, updated_at = ? WHERE session_hash = ?`,
		StatusFailed, stage, nullableString(kind), nullableString(message), timestamp(), sessionHash,
	)
}

// List returns the most recent runs, newest first. limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Get returns the run for a session hash with its stage results, or nil if none exists.
func (s *Store) Get(ctx context.Context, sessionHash string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE session_hash = ?`, sessionHash)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	stages, err := s.stages(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Stages = stages
	return run, nil
}

func (s *Store) stages(ctx context.Context, runID int64) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, path, url, completed_at FROM stage_results WHERE run_id = ? ORDER BY stage`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	var stages []StageRecord
	for rows.Next() {
		var (
			rec          StageRecord
			url          sql.NullString
			completedRaw string
		)
		if err := rows.Scan(&rec.Stage, &rec.Path, &url, &completedRaw); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		rec.URL = url.String
		rec.CompletedAt = parseTime(completedRaw)
		stages = append(stages, rec)
	}
	return stages, rows.Err()
}

func (s *Store) runID(ctx context.Context, sessionHash string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT id FROM runs WHERE session_hash = ?`, sessionHash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRun, sessionHash)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup run: %w", err)
	}
	return id, nil
}

func (s *Store) touch(ctx context.Context, id int64, now string) error {
	if _, err := s.execWithRetry(ctx, `UPDATE runs SET updated_at = ? WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("touch run: %w", err)
	}
	return nil
}

func (s *Store) finish(ctx context.Context, sessionHash, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, sessionHash)
	}
	return nil
}

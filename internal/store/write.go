package store

import (
	"context"
	"fmt"
)

// BeginRun records a run in the running state. If a run with the same id
// already exists, its steps are removed and it starts over.
func (s *Store) BeginRun(ctx context.Context, id, scenario string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("begin run: clear steps: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, status, error_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			scenario = excluded.scenario,
			status = excluded.status,
			error_count = 0
	`, id, scenario, StatusRunning)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("begin run: commit: %w", err)
	}
	return nil
}

// WriteStep inserts a step. Uses ON CONFLICT(id) DO NOTHING for idempotency:
// step ids are content hashes, so a duplicate id is the same step.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteStep(ctx context.Context, step Step) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps
		(id, run_id, seq, op, target, mode, outcome, error_code, snapshot_id, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		step.ID,
		step.RunID,
		step.Seq,
		step.Op,
		step.Target,
		step.Mode,
		step.Outcome,
		step.ErrorCode,
		step.SnapshotID,
		step.Snapshot,
	)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	return nil
}

// FinishRun marks a run passed or failed.
func (s *Store) FinishRun(ctx context.Context, id string, pass bool, errorCount int) error {
	status := StatusFailed
	if pass {
		status = StatusPassed
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error_count = ? WHERE id = ?
	`, status, errorCount, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

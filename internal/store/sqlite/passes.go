package sqlite

import (
	"context"
	"fmt"
	"time"

	"tapfarm/internal/model"
)

// SavePass stores a finished pass and its per-account outcomes. The history
// is an audit trail only; nothing reads it back to resume work.
func (s *Store) SavePass(ctx context.Context, pass model.PassSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO passes (id, seq, started_at, finished_at, completed, aborted, gold)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, pass.ID, pass.Seq, pass.StartedAt.UnixMilli(), pass.FinishedAt.UnixMilli(), pass.Completed, pass.Aborted, pass.Gold)
	if err != nil {
		return fmt.Errorf("insert pass: %w", err)
	}

	for i, o := range pass.Outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO account_runs (
				pass_id, position, account_id, label, status, phase, level_up,
				tasks_finished, tasks_failed, taps, clicks, gold,
				bar_available, bar_max, error, started_at, finished_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, pass.ID, i, o.AccountID, o.Label, string(o.Status), string(o.Phase), string(o.LevelUp),
			o.TasksFinished, o.TasksFailed, o.Taps, o.Clicks, o.Gold,
			o.LastBar.AvailableAmount, o.LastBar.MaxAmount, o.Error, o.StartedAt.UnixMilli(), o.FinishedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert account run: %w", err)
		}
	}
	return tx.Commit()
}

// ListPasses returns the most recent passes first, without outcomes.
func (s *Store) ListPasses(ctx context.Context, limit int) ([]model.PassSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, started_at, finished_at, completed, aborted, gold
		FROM passes ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PassSummary
	for rows.Next() {
		var p model.PassSummary
		var startedAt, finishedAt int64
		if err := rows.Scan(&p.ID, &p.Seq, &startedAt, &finishedAt, &p.Completed, &p.Aborted, &p.Gold); err != nil {
			return nil, err
		}
		p.StartedAt = time.UnixMilli(startedAt)
		p.FinishedAt = time.UnixMilli(finishedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListOutcomes(ctx context.Context, passID string) ([]model.AccountOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pass_id, account_id, label, status, phase, level_up,
			tasks_finished, tasks_failed, taps, clicks, gold,
			bar_available, bar_max, error, started_at, finished_at
		FROM account_runs WHERE pass_id = ? ORDER BY position ASC
	`, passID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AccountOutcome
	for rows.Next() {
		var o model.AccountOutcome
		var status, phase, levelUp string
		var startedAt, finishedAt int64
		if err := rows.Scan(&o.PassID, &o.AccountID, &o.Label, &status, &phase, &levelUp,
			&o.TasksFinished, &o.TasksFailed, &o.Taps, &o.Clicks, &o.Gold,
			&o.LastBar.AvailableAmount, &o.LastBar.MaxAmount, &o.Error, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		o.Status = model.OutcomeStatus(status)
		o.Phase = model.Phase(phase)
		o.LevelUp = model.LevelUpStatus(levelUp)
		o.StartedAt = time.UnixMilli(startedAt)
		o.FinishedAt = time.UnixMilli(finishedAt)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

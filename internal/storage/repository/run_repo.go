// Package repository provides data access for stored run logs and balance
// reports.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Daniangio/pigsattack-sub000/internal/runlog"
)

// RunRepository handles persisted run logs, grouped into analysis batches.
type RunRepository interface {
	// InsertRun stores one normalized run under a batch.
	InsertRun(ctx context.Context, batchID string, run *runlog.RunLog) error

	// InsertRuns stores a set of runs under a batch in one transaction.
	InsertRuns(ctx context.Context, batchID string, runs []*runlog.RunLog) error

	// ListBatch loads every run of a batch, in insertion order.
	ListBatch(ctx context.Context, batchID string) ([]*runlog.RunLog, error)

	// CountBatch returns how many runs a batch holds.
	CountBatch(ctx context.Context, batchID string) (int, error)

	// ListBatches returns all known batch IDs, most recent first.
	ListBatches(ctx context.Context) ([]string, error)

	// DeleteBatch removes a batch and its runs.
	DeleteBatch(ctx context.Context, batchID string) error
}

// runRepo implements RunRepository.
type runRepo struct {
	db *sql.DB
}

// NewRunRepository creates a run log repository.
func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) InsertRun(ctx context.Context, batchID string, run *runlog.RunLog) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	query := `
		INSERT INTO run_logs (batch_id, winner_id, bot_count, rounds_played, payload)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, batchID, run.WinnerID, run.BotCount, run.TotalRounds(), string(payload))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *runRepo) InsertRuns(ctx context.Context, batchID string, runs []*runlog.RunLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert runs: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_logs (batch_id, winner_id, bot_count, rounds_played, payload)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert runs: %w", err)
	}
	defer stmt.Close()

	for _, run := range runs {
		payload, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, batchID, run.WinnerID, run.BotCount, run.TotalRounds(), string(payload)); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert runs: %w", err)
	}
	return nil
}

func (r *runRepo) ListBatch(ctx context.Context, batchID string) ([]*runlog.RunLog, error) {
	query := `SELECT payload FROM run_logs WHERE batch_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var runs []*runlog.RunLog
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var run runlog.RunLog
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, fmt.Errorf("unmarshal run: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch %s: %w", batchID, err)
	}
	return runs, nil
}

func (r *runRepo) CountBatch(ctx context.Context, batchID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_logs WHERE batch_id = ?`, batchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count batch %s: %w", batchID, err)
	}
	return count, nil
}

func (r *runRepo) ListBatches(ctx context.Context) ([]string, error) {
	query := `SELECT batch_id FROM run_logs GROUP BY batch_id ORDER BY MAX(id) DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []string
	for rows.Next() {
		var batchID string
		if err := rows.Scan(&batchID); err != nil {
			return nil, fmt.Errorf("scan batch id: %w", err)
		}
		batches = append(batches, batchID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

func (r *runRepo) DeleteBatch(ctx context.Context, batchID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM run_logs WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("delete batch %s: %w", batchID, err)
	}
	return nil
}

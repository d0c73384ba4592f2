package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Daniangio/pigsattack-sub000/internal/balance"
)

// ErrReportNotFound means no stored report matched the query.
var ErrReportNotFound = errors.New("balance report not found")

// ReportRepository persists finished balance reports. Only completed
// reports are ever written; a batch that was abandoned mid-analysis leaves
// no row.
type ReportRepository interface {
	// SaveReport stores (or replaces) the report for a batch.
	SaveReport(ctx context.Context, batchID string, report *balance.CardBalanceReport) error

	// GetReport loads the report for a batch.
	GetReport(ctx context.Context, batchID string) (*balance.CardBalanceReport, error)

	// GetLatest loads the most recently saved report.
	GetLatest(ctx context.Context) (*balance.CardBalanceReport, error)
}

// reportRepo implements ReportRepository.
type reportRepo struct {
	db *sql.DB
}

// NewReportRepository creates a balance report repository.
func NewReportRepository(db *sql.DB) ReportRepository {
	return &reportRepo{db: db}
}

func (r *reportRepo) SaveReport(ctx context.Context, batchID string, report *balance.CardBalanceReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query := `
		INSERT INTO balance_reports (batch_id, total_games, dropped_runs, bot_count, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO UPDATE SET
			total_games = excluded.total_games,
			dropped_runs = excluded.dropped_runs,
			bot_count = excluded.bot_count,
			payload = excluded.payload,
			created_at = CURRENT_TIMESTAMP
	`
	_, err = r.db.ExecContext(ctx, query, batchID, report.TotalGames, report.DroppedRuns, report.BotCount, string(payload))
	if err != nil {
		return fmt.Errorf("save report for batch %s: %w", batchID, err)
	}
	return nil
}

func (r *reportRepo) GetReport(ctx context.Context, batchID string) (*balance.CardBalanceReport, error) {
	return r.scanReport(r.db.QueryRowContext(ctx,
		`SELECT payload FROM balance_reports WHERE batch_id = ?`, batchID))
}

func (r *reportRepo) GetLatest(ctx context.Context) (*balance.CardBalanceReport, error) {
	return r.scanReport(r.db.QueryRowContext(ctx,
		`SELECT payload FROM balance_reports ORDER BY created_at DESC, id DESC LIMIT 1`))
}

func (r *reportRepo) scanReport(row *sql.Row) (*balance.CardBalanceReport, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}

	var report balance.CardBalanceReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

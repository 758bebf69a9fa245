// Package db is the optional Postgres audit store. The engine runs fully
// without it: the filesystem marker remains the sole idempotence authority,
// this store only records outcomes for reporting.
package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

type AuditStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*AuditStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}
	log.Println("Successfully connected to PostgreSQL for conversion audit")
	return &AuditStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *AuditStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the audit tables when missing.
func (s *AuditStore) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS case_conversions (
			job_id      TEXT NOT NULL,
			case_path   TEXT NOT NULL,
			status      TEXT NOT NULL,
			html_path   TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (job_id, case_path)
		);
		CREATE INDEX IF NOT EXISTS case_conversions_status_idx
			ON case_conversions (status);
	`
	if _, err := s.pool.Exec(context.Background(), schema); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}
	log.Println("Conversion audit schema initialized")
	return nil
}

// SaveCaseOutcome persists one candidate's disposition, upserting on
// re-runs of the same job.
func (s *AuditStore) SaveCaseOutcome(ctx context.Context, jobID, casePath string, result models.CaseResult, durationMS int64) error {
	sql := `
		INSERT INTO case_conversions (job_id, case_path, status, html_path, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, case_path) DO UPDATE
		SET status = EXCLUDED.status, html_path = EXCLUDED.html_path,
		    duration_ms = EXCLUDED.duration_ms, recorded_at = NOW();
	`
	htmlPath := ""
	if result.Status == models.StatusSuccess {
		htmlPath = result.Payload
	}
	_, err := s.pool.Exec(ctx, sql, jobID, casePath, string(result.Status), htmlPath, durationMS)
	return err
}

// RecentOutcomes lists the latest recorded conversions.
func (s *AuditStore) RecentOutcomes(ctx context.Context, limit int) ([]OutcomeRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, case_path, status, COALESCE(html_path, ''), duration_ms
		FROM case_conversions
		ORDER BY recorded_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OutcomeRow{}
	for rows.Next() {
		var r OutcomeRow
		if err := rows.Scan(&r.JobID, &r.CasePath, &r.Status, &r.HTMLPath, &r.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OutcomeRow is one audit record.
type OutcomeRow struct {
	JobID      string `json:"jobId"`
	CasePath   string `json:"casePath"`
	Status     string `json:"status"`
	HTMLPath   string `json:"htmlPath"`
	DurationMS int64  `json:"durationMs"`
}

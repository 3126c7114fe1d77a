// Package db provides PostgreSQL database access for report storage.
package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// CreateReport creates a new report record under the caller's ID. The ID
// is caller-supplied so the progress stream and the database row share it.
func (db *DB) CreateReport(ctx context.Context, reportID uuid.UUID, entity string, markets []string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO reports (id, entity, markets, status)
		 VALUES ($1, $2, $3, 'running')`,
		reportID, entity, markets,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// CompleteReport marks a report as completed or failed
func (db *DB) CompleteReport(ctx context.Context, reportID uuid.UUID, status string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE reports SET status = $1, completed_at = NOW() WHERE id = $2`,
		status, reportID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by ID. A missing report yields (nil, nil).
func (db *DB) GetReport(ctx context.Context, reportID uuid.UUID) (*Report, error) {
	var report Report
	err := db.pool.QueryRow(ctx,
		`SELECT id, entity, markets, status, created_at, completed_at
		 FROM reports WHERE id = $1`,
		reportID,
	).Scan(&report.ID, &report.Entity, &report.Markets, &report.Status, &report.CreatedAt, &report.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

// ListReports returns the most recent reports, newest first
func (db *DB) ListReports(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, entity, markets, status, created_at, completed_at
		 FROM reports ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var report Report
		if err := rows.Scan(&report.ID, &report.Entity, &report.Markets, &report.Status, &report.CreatedAt, &report.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reports: %w", err)
	}
	return reports, nil
}

package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marcus/brand-radar/internal/orchestrator"
)

// rawResultRow is the flattened per-provider form an outcome is stored in.
type rawResultRow struct {
	provider    string
	rawText     string
	document    []byte
	citations   []byte
	succeeded   bool
	failureKind string
	latencyMs   int64
}

// providerRows flattens a two-provider outcome into its storable rows.
func providerRows(outcome orchestrator.BatchOutcome) ([]rawResultRow, error) {
	rows := make([]rawResultRow, 0, 2)
	for _, result := range []orchestrator.ProviderResult{outcome.Gemini, outcome.OpenAI} {
		row := rawResultRow{
			provider:    result.Provider,
			rawText:     result.RawText,
			succeeded:   result.Succeeded,
			failureKind: string(result.FailureKind),
			latencyMs:   result.LatencyMs,
		}
		if result.Document != nil {
			doc, err := json.Marshal(result.Document)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal document: %w", err)
			}
			row.document = doc
		}
		if len(result.Citations) > 0 {
			cits, err := json.Marshal(result.Citations)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal citations: %w", err)
			}
			row.citations = cits
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SaveOutcome stores both provider results for one question item
func (db *DB) SaveOutcome(ctx context.Context, reportID uuid.UUID, outcome orchestrator.BatchOutcome) error {
	rows, err := providerRows(outcome)
	if err != nil {
		return err
	}

	// The two provider rows are independent; write them in parallel on the
	// pool and fail the save if either insert fails.
	g, gCtx := errgroup.WithContext(ctx)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			_, err := db.pool.Exec(gCtx,
				`INSERT INTO raw_results
				   (report_id, item_id, market_code, category_id, question_type,
				    provider, raw_text, document, citations, succeeded, failure_kind, latency_ms)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				 ON CONFLICT (report_id, item_id, provider) DO UPDATE SET
				   raw_text = $7, document = $8, citations = $9,
				   succeeded = $10, failure_kind = $11, latency_ms = $12, created_at = NOW()`,
				reportID, outcome.Item.ID, outcome.Item.MarketCode, outcome.Item.CategoryID,
				string(outcome.Item.Type), row.provider, row.rawText, row.document,
				row.citations, row.succeeded, row.failureKind, row.latencyMs,
			)
			if err != nil {
				return fmt.Errorf("failed to save raw result for item %s: %w", outcome.Item.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// SaveMarketAnalysis stores the rolled-up analysis for one market
func (db *DB) SaveMarketAnalysis(ctx context.Context, reportID uuid.UUID, agg *orchestrator.MarketAggregate) error {
	jsonBytes, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to marshal market analysis: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO market_analyses (report_id, market_code, analysis)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (report_id, market_code) DO UPDATE SET analysis = $3, created_at = NOW()`,
		reportID, agg.MarketCode, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save market analysis %s: %w", agg.MarketCode, err)
	}
	return nil
}

// GetMarketAnalyses retrieves all stored market analyses for a report
func (db *DB) GetMarketAnalyses(ctx context.Context, reportID uuid.UUID) (map[string]json.RawMessage, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT market_code, analysis FROM market_analyses WHERE report_id = $1`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get market analyses: %w", err)
	}
	defer rows.Close()

	analyses := make(map[string]json.RawMessage)
	for rows.Next() {
		var code string
		var analysis []byte
		if err := rows.Scan(&code, &analysis); err != nil {
			return nil, fmt.Errorf("failed to scan market analysis: %w", err)
		}
		analyses[code] = analysis
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read market analyses: %w", err)
	}
	return analyses, nil
}

// OutcomeStore binds the database to one report so it satisfies the
// orchestrator's persistence interface.
type OutcomeStore struct {
	db       *DB
	reportID uuid.UUID
}

// OutcomeStore returns a per-report store for the orchestrator
func (db *DB) OutcomeStore(reportID uuid.UUID) *OutcomeStore {
	return &OutcomeStore{db: db, reportID: reportID}
}

// SaveOutcome implements orchestrator.Store
func (s *OutcomeStore) SaveOutcome(ctx context.Context, outcome orchestrator.BatchOutcome) error {
	return s.db.SaveOutcome(ctx, s.reportID, outcome)
}

// Package orchestrator fans independent analysis questions out to the
// configured providers, tolerates partial failure from either side, and
// reassembles a best-effort per-market result set.
package orchestrator

import (
	"time"

	"github.com/marcus/brand-radar/internal/citations"
	"github.com/marcus/brand-radar/internal/llm"
	"github.com/marcus/brand-radar/internal/recovery"
)

// QuestionType identifies what a question measures.
type QuestionType string

// Question types.
const (
	QuestionReputation        QuestionType = "reputation"
	QuestionVisibility        QuestionType = "visibility"
	QuestionCompetitive       QuestionType = "competitive"
	QuestionCategoryDetection QuestionType = "category-detection"
)

// QuestionItem is one independent question to ask both providers. Immutable
// once enqueued; consumed exactly once by the orchestrator.
type QuestionItem struct {
	ID         string       `json:"id"`
	MarketCode string       `json:"market_code"`
	CategoryID string       `json:"category_id,omitempty"`
	Type       QuestionType `json:"type"`
	PromptText string       `json:"prompt_text"`
}

// ProviderResult is the outcome of asking one provider one question. A
// retry supersedes, never mutates, an earlier result: the orchestrator
// keeps the latest successful or, failing that, latest attempted result.
type ProviderResult struct {
	Provider    string               `json:"provider"`
	RawText     string               `json:"raw_text,omitempty"`
	Document    recovery.Document    `json:"document,omitempty"`
	Citations   []citations.Citation `json:"citations,omitempty"`
	Succeeded   bool                 `json:"succeeded"`
	FailureKind llm.FailureKind      `json:"failure_kind,omitempty"`
	LatencyMs   int64                `json:"latency_ms"`
}

// BatchOutcome is the persisted two-provider result record for one
// question. Both provider slots are always present, possibly marked
// failed; an outcome is never partially constructed.
type BatchOutcome struct {
	Item   QuestionItem   `json:"item"`
	Gemini ProviderResult `json:"gemini"`
	OpenAI ProviderResult `json:"openai"`
}

// Usable reports whether at least one provider produced a parsed document.
func (o BatchOutcome) Usable() bool {
	return o.Gemini.Succeeded || o.OpenAI.Succeeded
}

// Market describes one market under analysis and its categories.
type Market struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// CategoryAggregate holds the per-category rollups for one market. A failed
// aggregation function is recorded here and never aborts sibling
// categories.
type CategoryAggregate struct {
	Visibility  any    `json:"visibility,omitempty"`
	Competitive any    `json:"competitive,omitempty"`
	Error       string `json:"error,omitempty"`
}

// MarketAggregate is the per-market rolled-up analysis, built once per
// market after all its outcomes are available and owned exclusively by the
// worker that computes it.
type MarketAggregate struct {
	MarketCode         string                        `json:"market_code"`
	Reputation         any                           `json:"reputation,omitempty"`
	ReputationError    string                        `json:"reputation_error,omitempty"`
	CategoriesDetected any                           `json:"categories_detected,omitempty"`
	DetectionError     string                        `json:"detection_error,omitempty"`
	Categories         map[string]*CategoryAggregate `json:"categories"`
}

// latencyMs converts a call duration for persistence.
func latencyMs(d time.Duration) int64 {
	return d.Milliseconds()
}

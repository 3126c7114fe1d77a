// Package pipeline provides the high-level orchestration for the brand
// analysis process.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/marcus/brand-radar/internal/db"
	"github.com/marcus/brand-radar/internal/llm"
	"github.com/marcus/brand-radar/internal/orchestrator"
	"github.com/marcus/brand-radar/internal/progress"
)

// RunOptions holds configuration for running the analysis pipeline
type RunOptions struct {
	Entity  string
	Markets []orchestrator.Market

	// ReportID identifies the run everywhere: the progress stream, the
	// persisted report row, and the result. Zero means generate one.
	ReportID uuid.UUID

	// Providers. Preconstructed providers take precedence over API keys;
	// the server wires shared providers in, the CLI supplies keys.
	Gemini       llm.Provider
	OpenAI       llm.Provider
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	BatchSize   int
	DatabaseURL string
	Verbose     bool
	Reporter    *progress.Reporter
	Classifier  SourceClassifier
}

// Result is the in-memory output of one analysis run
type Result struct {
	ReportID   uuid.UUID
	Outcomes   []orchestrator.BatchOutcome
	Counts     ClassificationCounts
	Aggregates map[string]*orchestrator.MarketAggregate
}

// RunAnalysis orchestrates the full brand analysis pipeline: question
// expansion, dual-provider calls, citation classification, per-market
// aggregation, and persistence. A run-level failure emits a terminal error
// event and marks the report failed; per-item failures never surface here.
func RunAnalysis(ctx context.Context, opts RunOptions) (*Result, error) {
	if opts.Entity == "" {
		return nil, fmt.Errorf("entity is required")
	}
	if len(opts.Markets) == 0 {
		return nil, fmt.Errorf("at least one market is required")
	}

	// Initialize database connection if configured
	var database *db.DB
	if opts.DatabaseURL != "" {
		var err error
		database, err = db.Connect(ctx, opts.DatabaseURL)
		if err != nil {
			fmt.Printf("Warning: Failed to connect to database: %v\n", err)
			fmt.Printf("Continuing without database persistence...\n")
			database = nil
		} else {
			defer database.Close()
			if opts.Verbose {
				fmt.Printf("[VERBOSE] Connected to database\n")
			}
		}
	}

	reportID := opts.ReportID
	if reportID == uuid.Nil {
		reportID = uuid.New()
	}
	if database != nil {
		if err := database.CreateReport(ctx, reportID, opts.Entity, marketCodes(opts.Markets)); err != nil {
			fmt.Printf("Warning: Failed to create report record: %v\n", err)
		}
	}

	gemini, openai, err := buildProviders(ctx, opts)
	if err != nil {
		return nil, fail(ctx, database, reportID, opts.Reporter, err)
	}
	if gemini == nil && openai == nil {
		return nil, fail(ctx, database, reportID, opts.Reporter,
			fmt.Errorf("no provider configured: set a Gemini or OpenAI API key"))
	}

	status(opts.Reporter, 0, fmt.Sprintf("Analyzing %s across %d markets", opts.Entity, len(opts.Markets)))

	// Phase 1: dual-provider question calls
	questions, err := BuildQuestions(opts.Entity, opts.Markets)
	if err != nil {
		return nil, fail(ctx, database, reportID, opts.Reporter, err)
	}
	fmt.Printf("Step 1/4: Asking %d questions across %d markets...\n", len(questions), len(opts.Markets))

	var store orchestrator.Store
	if database != nil {
		store = database.OutcomeStore(reportID)
	}

	orch := orchestrator.New(gemini, openai, store)
	if opts.BatchSize > 0 {
		orch.BatchSize = opts.BatchSize
	}
	orch.Verbose = opts.Verbose
	orch.OnProgress = func(completed, total int, item orchestrator.QuestionItem) {
		step(opts.Reporter, progress.PhaseProviderCalls, completed, total,
			fmt.Sprintf("Completed question %s", item.ID),
			map[string]int{"completed": completed, "total": total})
	}

	outcomes := orch.Run(ctx, questions)

	usable := 0
	for _, outcome := range outcomes {
		if outcome.Usable() {
			usable++
		}
	}
	if usable == 0 {
		return nil, fail(ctx, database, reportID, opts.Reporter,
			fmt.Errorf("all %d questions failed on both providers", len(outcomes)))
	}

	// Phase 2: citation classification and schema checks
	fmt.Printf("Step 2/4: Classifying sources for %d answered questions...\n", usable)
	classifier := opts.Classifier
	if classifier == nil {
		classifier = DomainClassifier{}
	}
	counts := classifyOutcomes(outcomes, classifier)
	step(opts.Reporter, progress.PhaseClassification, 1, 1,
		fmt.Sprintf("Classified %d citations", counts.Citations),
		map[string]int{"citations": counts.Citations, "schema_failures": counts.SchemaFailures})

	// Phase 3: per-market aggregation
	fmt.Printf("Step 3/4: Aggregating %d markets...\n", len(opts.Markets))
	synthesizer := gemini
	if synthesizer == nil {
		synthesizer = openai
	}
	aggregator := newAggregator(synthesizer, opts.Entity, opts.Verbose)
	aggregates := aggregator.Aggregate(ctx, outcomes, opts.Markets)
	step(opts.Reporter, progress.PhaseAggregation, len(opts.Markets), len(opts.Markets),
		"Aggregated all markets", map[string]int{"markets": len(opts.Markets)})

	// Phase 4: persistence and completion
	fmt.Printf("Step 4/4: Saving report...\n")
	if database != nil {
		for _, agg := range aggregates {
			if err := database.SaveMarketAnalysis(ctx, reportID, agg); err != nil {
				log.Printf("[PIPELINE] failed to save market analysis %s: %v", agg.MarketCode, err)
			}
		}
		if err := database.CompleteReport(ctx, reportID, db.StatusCompleted); err != nil {
			log.Printf("[PIPELINE] failed to mark report completed: %v", err)
		}
	}

	if opts.Reporter != nil {
		opts.Reporter.Complete(fmt.Sprintf("Report ready for %s", opts.Entity), map[string]int{
			"questions": len(outcomes),
			"usable":    usable,
			"citations": counts.Citations,
			"markets":   len(opts.Markets),
		})
	}

	return &Result{
		ReportID:   reportID,
		Outcomes:   outcomes,
		Counts:     counts,
		Aggregates: aggregates,
	}, nil
}

// buildProviders constructs the provider pair, preferring injected
// providers over API keys. A missing key yields a nil provider slot.
func buildProviders(ctx context.Context, opts RunOptions) (llm.Provider, llm.Provider, error) {
	gemini := opts.Gemini
	if gemini == nil && opts.GeminiAPIKey != "" {
		p, err := llm.NewGeminiProvider(ctx, opts.GeminiAPIKey, opts.GeminiModel, opts.Verbose)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize gemini provider: %w", err)
		}
		gemini = p
	}

	openai := opts.OpenAI
	if openai == nil && opts.OpenAIAPIKey != "" {
		p, err := llm.NewOpenAIProvider(opts.OpenAIAPIKey, opts.OpenAIModel, opts.Verbose)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize openai provider: %w", err)
		}
		openai = p
	}

	return gemini, openai, nil
}

// fail marks the report failed and emits the terminal error event before
// handing the error back to the caller.
func fail(ctx context.Context, database *db.DB, reportID uuid.UUID, reporter *progress.Reporter, err error) error {
	if database != nil {
		if derr := database.CompleteReport(ctx, reportID, db.StatusFailed); derr != nil {
			log.Printf("[PIPELINE] failed to mark report failed: %v", derr)
		}
	}
	if reporter != nil {
		reporter.Error(err.Error())
	}
	return err
}

func status(reporter *progress.Reporter, value int, message string) {
	if reporter != nil {
		reporter.Status(value, message)
	}
}

func step(reporter *progress.Reporter, phase progress.Phase, done, total int, message string, counts map[string]int) {
	if reporter != nil {
		reporter.Step(phase, done, total, message, counts)
	}
}

func marketCodes(markets []orchestrator.Market) []string {
	codes := make([]string, len(markets))
	for i, market := range markets {
		codes[i] = market.Code
	}
	return codes
}

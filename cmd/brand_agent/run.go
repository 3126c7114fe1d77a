package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/brand-radar/internal/config"
	"github.com/marcus/brand-radar/internal/orchestrator"
	"github.com/marcus/brand-radar/internal/pipeline"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run a full brand analysis end-to-end",
	Long: `Builds the question set for the configured entity and markets, asks both providers, classifies sources, aggregates per market, and prints the result.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runAnalysisCmd,
}

var (
	runConfigPath  string
	runEntity      string
	runMarkets     []string
	runCategories  []string
	runBatchSize   int
	runGeminiKey   string
	runOpenAIKey   string
	runVerbose     bool
	runDatabaseURL string
	runOutputPath  string
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runEntity, "entity", "e", "", "Brand or company to analyze")
	runCommand.Flags().StringSliceVarP(&runMarkets, "market", "m", nil, "Market as code=Name (repeatable, e.g. -m us=\"United States\")")
	runCommand.Flags().StringSliceVar(&runCategories, "category", nil, "Category applied to every market (repeatable)")
	runCommand.Flags().IntVar(&runBatchSize, "batch-size", 0, "Questions dispatched concurrently per batch")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")
	runCommand.Flags().StringVarP(&runOutputPath, "output", "o", "", "Write the aggregated report JSON to this file (default stdout)")

	// API keys can be passed as flags, or read from env vars
	runCommand.Flags().StringVar(&runGeminiKey, "gemini-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	runCommand.Flags().StringVar(&runOpenAIKey, "openai-key", "", "OpenAI API key (optional, defaults to OPENAI_API_KEY env var)")

	// Database URL for result persistence
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runAnalysisCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	if cmd.Flags().Changed("entity") {
		cfg.Entity = runEntity
	}
	if cmd.Flags().Changed("market") {
		markets, err := parseMarketFlags(runMarkets, runCategories)
		if err != nil {
			return err
		}
		cfg.Markets = markets
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = runBatchSize
	}
	if cmd.Flags().Changed("gemini-key") {
		cfg.GeminiAPIKey = runGeminiKey
	}
	if cmd.Flags().Changed("openai-key") {
		cfg.OpenAIAPIKey = runOpenAIKey
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}

	// Step 3: Apply defaults and environment for unset values
	cfg = cfg.MergeWithDefaults(config.Config{
		GeminiModel: "gemini-2.0-flash",
		OpenAIModel: "gpt-4o-search-preview",
	})
	cfg.FromEnv()

	// Step 4: Validate required fields
	if cfg.Entity == "" {
		return fmt.Errorf("--entity is required (via flag or config)")
	}
	if len(cfg.Markets) == 0 {
		return fmt.Errorf("at least one --market is required (via flag or config)")
	}
	if cfg.GeminiAPIKey == "" && cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("a GEMINI_API_KEY or OPENAI_API_KEY is required (env var or flag)")
	}

	markets := make([]orchestrator.Market, len(cfg.Markets))
	for i, m := range cfg.Markets {
		markets[i] = orchestrator.Market{Code: m.Code, Name: m.Name, Categories: m.Categories}
	}

	result, err := pipeline.RunAnalysis(ctx, pipeline.RunOptions{
		Entity:       cfg.Entity,
		Markets:      markets,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
		BatchSize:    cfg.BatchSize,
		DatabaseURL:  cfg.DatabaseURL,
		Verbose:      cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	return writeReport(result, runOutputPath)
}

// parseMarketFlags turns repeated code=Name flags into markets, applying
// the shared category list to each.
func parseMarketFlags(raw []string, categories []string) ([]config.MarketConfig, error) {
	markets := make([]config.MarketConfig, 0, len(raw))
	for _, entry := range raw {
		code, name, found := strings.Cut(entry, "=")
		if !found || code == "" || name == "" {
			return nil, fmt.Errorf("invalid --market %q: expected code=Name", entry)
		}
		markets = append(markets, config.MarketConfig{
			Code:       strings.ToLower(strings.TrimSpace(code)),
			Name:       strings.TrimSpace(name),
			Categories: categories,
		})
	}
	return markets, nil
}

// writeReport renders the aggregates to the output path or stdout.
func writeReport(result *pipeline.Result, path string) error {
	payload := map[string]any{
		"report_id":  result.ReportID,
		"aggregates": result.Aggregates,
		"counts": map[string]any{
			"questions":       len(result.Outcomes),
			"citations":       result.Counts.Citations,
			"by_source":       result.Counts.BySource,
			"schema_failures": result.Counts.SchemaFailures,
		},
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}

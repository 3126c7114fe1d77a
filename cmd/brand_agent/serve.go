package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/brand-radar/internal/server"
)

var (
	serveAddr      string
	serveBatchSize int
	serveVerbose   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that accepts analysis requests, streams run progress over SSE, and serves stored reports.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
	serveCmd.Flags().IntVar(&serveBatchSize, "batch-size", 0, "Questions dispatched concurrently per batch")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Print detailed debug information")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	geminiKey := os.Getenv("GEMINI_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if geminiKey == "" && openaiKey == "" {
		return fmt.Errorf("a GEMINI_API_KEY or OPENAI_API_KEY environment variable is required")
	}

	cfg := server.Config{
		Addr:         serveAddr,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		GeminiAPIKey: geminiKey,
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey: openaiKey,
		OpenAIModel:  envOr("OPENAI_MODEL", "gpt-4o-search-preview"),
		BatchSize:    serveBatchSize,
		Verbose:      serveVerbose,
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Package llm provides a uniform call contract over heterogeneous upstream
// text-generation APIs, with per-provider retry policies and typed failures.
package llm

import (
	"context"
	"time"

	"github.com/marcus/brand-radar/internal/citations"
)

// DefaultCallTimeout is the ceiling for a single provider call. Generation
// can be slow, so the ceiling is generous; redirect resolution has its own
// much shorter budget.
const DefaultCallTimeout = 5 * time.Minute

// Provider names as they appear in results and persistence.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// GenerateResult is the uniform successful outcome of a provider call.
type GenerateResult struct {
	Text         string
	Citations    []citations.Citation
	FinishReason string
	Model        string
	Latency      time.Duration
}

// Provider is the uniform call contract implemented by each upstream API.
// Generate returns a typed *Error on failure; it never panics and never
// lets an upstream failure halt sibling work.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (*GenerateResult, error)
}

// Package llm - gemini.go implements the Gemini provider with search
// grounding and exponential-backoff retries.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/marcus/brand-radar/internal/citations"
)

// GeminiProvider calls the Gemini API with the Google Search grounding tool
// enabled. Grounding citations may be provider redirect links; they are
// resolved before the result is returned.
type GeminiProvider struct {
	client   *genai.Client
	model    string
	retry    Policy
	resolver *citations.Resolver
	verbose  bool
	seq      atomic.Int64
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, verbose bool) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{
		client:   client,
		model:    model,
		retry:    DefaultPolicy(),
		resolver: citations.NewResolver(verbose),
		verbose:  verbose,
	}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return ProviderGemini }

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Generate implements Provider. Retries follow the default policy: up to 5
// attempts with exponential backoff, rate limits backing off from a longer
// base delay.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (*GenerateResult, error) {
	callID := fmt.Sprintf("%s-%d", ProviderGemini, p.seq.Add(1))
	start := time.Now()

	var result *GenerateResult
	err := p.retry.Do(ctx, func() error {
		r, err := p.generateOnce(ctx, prompt)
		if err != nil {
			if p.verbose {
				log.Printf("[GEMINI] call %s attempt failed: %v", callID, err)
			}
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, p.wrap(err)
	}

	result.Latency = time.Since(start)
	result.Citations = p.resolver.ResolveAll(ctx, result.Citations)
	if p.verbose {
		log.Printf("[GEMINI] call %s completed in %s with %d citations",
			callID, result.Latency.Round(time.Millisecond), len(result.Citations))
	}
	return result, nil
}

func (p *GeminiProvider) generateOnce(ctx context.Context, prompt string) (*GenerateResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, DefaultCallTimeout)
	defer cancel()

	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(0.2)
	model.Tools = []*genai.Tool{{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}}}

	resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, &Error{Provider: ProviderGemini, Kind: FailureUnknown, Message: "no candidates in response"}
	}

	cand := resp.Candidates[0]
	finish := strings.TrimPrefix(cand.FinishReason.String(), "FinishReason")
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		return nil, &Error{Provider: ProviderGemini, Kind: FailureTokenLimit,
			Message: "output truncated at token limit"}
	}

	text, err := candidateText(cand)
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Text:         text,
		Citations:    groundedCitations(cand),
		FinishReason: finish,
		Model:        p.model,
	}, nil
}

// candidateText joins the text parts of a candidate.
func candidateText(cand *genai.Candidate) (string, error) {
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", &Error{Provider: ProviderGemini, Kind: FailureUnknown, Message: "no content in response"}
	}
	var parts []string
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", &Error{Provider: ProviderGemini, Kind: FailureUnknown, Message: "no text parts in response"}
	}
	return strings.Join(parts, ""), nil
}

// groundedCitations collects web sources attached by the grounding tool.
// URIs may be grounding redirect links; the caller resolves them. Each
// source carries the strongest confidence score the grounding supports
// assign to its chunk, 0 when no support references it.
func groundedCitations(cand *genai.Candidate) []citations.Citation {
	var out []citations.Citation

	if gm := cand.GroundingMetadata; gm != nil {
		scores := chunkConfidence(gm.GroundingSupports)
		for i, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			out = append(out, citations.Citation{
				URL:            chunk.Web.URI,
				Title:          chunk.Web.Title,
				RelevanceScore: scores[int32(i)],
			})
		}
	}
	if len(out) > 0 {
		return out
	}

	// Older responses carry plain citation metadata instead.
	if cm := cand.CitationMetadata; cm != nil {
		for _, src := range cm.CitationSources {
			if src == nil || src.URI == nil || *src.URI == "" {
				continue
			}
			out = append(out, citations.Citation{URL: *src.URI})
		}
	}
	return out
}

// chunkConfidence maps each grounding chunk index to the highest confidence
// score any support claims for it.
func chunkConfidence(supports []*genai.GroundingSupport) map[int32]float64 {
	scores := make(map[int32]float64)
	for _, support := range supports {
		if support == nil {
			continue
		}
		for i, idx := range support.GroundingChunkIndices {
			if i >= len(support.ConfidenceScores) {
				break
			}
			if score := float64(support.ConfidenceScores[i]); score > scores[idx] {
				scores[idx] = score
			}
		}
	}
	return scores
}

// wrap converts transport errors into the typed failure model, preferring
// structured status codes over the deprecated message heuristics.
func (p *GeminiProvider) wrap(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &Error{
			Provider:   ProviderGemini,
			Kind:       ClassifyStatus(gerr.Code),
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Cause:      err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: ProviderGemini, Kind: FailureTimeout, Message: "call exceeded deadline", Cause: err}
	}
	return &Error{Provider: ProviderGemini, Kind: KindOf(err), Message: err.Error(), Cause: err}
}

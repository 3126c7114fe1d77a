package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/marcus/brand-radar/internal/llm"
	"github.com/marcus/brand-radar/internal/orchestrator"
	"github.com/marcus/brand-radar/internal/prompts"
	"github.com/marcus/brand-radar/internal/recovery"
)

// errNoUsableResponses is returned by an aggregation function when every
// provider slot for its outcome set failed.
var errNoUsableResponses = errors.New("no usable responses to aggregate")

// newAggregator builds the market aggregator. Rollups are synthesized by
// the given provider; with no provider available the first usable
// document stands in for the rollup so the report still materializes.
func newAggregator(provider llm.Provider, entity string, verbose bool) *orchestrator.Aggregator {
	return &orchestrator.Aggregator{
		Reputation:        synthesisFunc(provider, entity, "reputation_rollup"),
		CategoryDetection: synthesisFunc(provider, entity, "category_rollup"),
		Visibility:        synthesisFunc(provider, entity, "visibility_rollup"),
		Competitive:       synthesisFunc(provider, entity, "competitive_rollup"),
		Verbose:           verbose,
	}
}

func synthesisFunc(provider llm.Provider, entity, promptKey string) orchestrator.AggregateFunc {
	return func(ctx context.Context, outcomes []orchestrator.BatchOutcome) (any, error) {
		docs := usableDocuments(outcomes)
		if len(docs) == 0 {
			return nil, errNoUsableResponses
		}
		if provider == nil || len(docs) == 1 {
			return docs[0], nil
		}

		inputs, err := serializeInputs(docs)
		if err != nil {
			return nil, err
		}

		item := outcomes[0].Item
		prompt, err := prompts.SynthesisPrompt(promptKey, entity, item.MarketCode, item.CategoryID, inputs)
		if err != nil {
			return nil, err
		}

		result, err := provider.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize rollup: %w", err)
		}
		doc, err := recovery.Parse(result.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rollup response: %w", err)
		}
		return doc, nil
	}
}

// usableDocuments collects every successfully parsed document across both
// provider slots, Gemini's first.
func usableDocuments(outcomes []orchestrator.BatchOutcome) []recovery.Document {
	var docs []recovery.Document
	for _, outcome := range outcomes {
		if outcome.Gemini.Succeeded {
			docs = append(docs, outcome.Gemini.Document)
		}
		if outcome.OpenAI.Succeeded {
			docs = append(docs, outcome.OpenAI.Document)
		}
	}
	return docs
}

func serializeInputs(docs []recovery.Document) (string, error) {
	var sb strings.Builder
	for _, doc := range docs {
		line, err := json.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("failed to serialize rollup input: %w", err)
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

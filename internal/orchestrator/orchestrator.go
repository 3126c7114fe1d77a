// Package orchestrator - orchestrator.go dispatches question batches to
// both providers concurrently.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/marcus/brand-radar/internal/llm"
	"github.com/marcus/brand-radar/internal/recovery"
)

// DefaultBatchSize bounds concurrent outbound calls. Both upstream
// providers tolerate full parallelism, so the default is effectively "no
// batching" for typical question sets; batching exists to cap peak
// concurrency and memory, not to order work.
const DefaultBatchSize = 50

const (
	// geminiExtraAttempts is the asymmetric-reliability accommodation: when
	// Gemini is unusable but OpenAI succeeded, Gemini alone is retried this
	// many more times to maximize eventual data completeness.
	geminiExtraAttempts = 3
	geminiExtraDelay    = 5 * time.Second
)

// Store receives each outcome as it completes. Persistence is
// fire-and-forget: failures are logged, never propagated.
type Store interface {
	SaveOutcome(ctx context.Context, outcome BatchOutcome) error
}

// ProgressFunc is invoked once per completed item with running counts.
type ProgressFunc func(completed, total int, item QuestionItem)

// Orchestrator runs question items against the two providers.
type Orchestrator struct {
	Gemini     llm.Provider
	OpenAI     llm.Provider
	Store      Store
	BatchSize  int
	OnProgress ProgressFunc
	Verbose    bool

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// New creates an orchestrator with the default batch size. Either provider
// may be nil; its slot is then marked failed on every outcome.
func New(gemini, openai llm.Provider, store Store) *Orchestrator {
	return &Orchestrator{
		Gemini:    gemini,
		OpenAI:    openai,
		Store:     store,
		BatchSize: DefaultBatchSize,
		sleep:     time.Sleep,
	}
}

// Run processes every item and returns one BatchOutcome per item. Batches
// run sequentially relative to each other; items within a batch run fully
// concurrently, and outcomes complete in arbitrary order. An individual
// item's total failure still yields an outcome and never aborts siblings.
func (o *Orchestrator) Run(ctx context.Context, items []QuestionItem) []BatchOutcome {
	batchSize := o.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	sleep := o.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	outcomes := make([]BatchOutcome, len(items))
	var completed int
	var mu sync.Mutex

	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		batch := items[start:end]

		var wg sync.WaitGroup
		for i, item := range batch {
			wg.Add(1)
			go func(idx int, item QuestionItem) {
				defer wg.Done()
				outcome := o.processItem(ctx, item, sleep)
				outcomes[idx] = outcome

				o.persist(ctx, outcome)

				mu.Lock()
				completed++
				done := completed
				mu.Unlock()
				if o.OnProgress != nil {
					o.OnProgress(done, len(items), item)
				}
			}(start+i, item)
		}
		wg.Wait()
	}

	return outcomes
}

// processItem asks both providers concurrently and applies the Gemini
// extra-retry accommodation when only OpenAI came back usable.
func (o *Orchestrator) processItem(ctx context.Context, item QuestionItem, sleep func(time.Duration)) BatchOutcome {
	var gemini, openai ProviderResult
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		gemini = o.callProvider(ctx, o.Gemini, llm.ProviderGemini, item)
	}()
	go func() {
		defer wg.Done()
		openai = o.callProvider(ctx, o.OpenAI, llm.ProviderOpenAI, item)
	}()
	wg.Wait()

	// Asymmetric-reliability accommodation: OpenAI's result is already
	// usable downstream; only Gemini's slot is still in play here.
	if !gemini.Succeeded && openai.Succeeded && o.Gemini != nil {
		for attempt := 1; attempt <= geminiExtraAttempts && !gemini.Succeeded; attempt++ {
			sleep(geminiExtraDelay)
			if ctx.Err() != nil {
				break
			}
			if o.Verbose {
				log.Printf("[ORCHESTRATOR] item %s: gemini recovery attempt %d/%d",
					item.ID, attempt, geminiExtraAttempts)
			}
			// A retry supersedes the earlier result: latest successful,
			// or failing that, latest attempted.
			gemini = o.callProvider(ctx, o.Gemini, llm.ProviderGemini, item)
		}
	}

	return BatchOutcome{Item: item, Gemini: gemini, OpenAI: openai}
}

// callProvider performs one provider call plus response recovery. A nil or
// failing provider yields a failed slot, never a panic or propagated error.
func (o *Orchestrator) callProvider(ctx context.Context, p llm.Provider, name string, item QuestionItem) ProviderResult {
	if p == nil {
		return ProviderResult{Provider: name, FailureKind: llm.FailureUnknown}
	}

	start := time.Now()
	result, err := p.Generate(ctx, item.PromptText)
	if err != nil {
		if o.Verbose {
			log.Printf("[ORCHESTRATOR] item %s: %s failed: %v", item.ID, name, err)
		}
		return ProviderResult{
			Provider:    name,
			FailureKind: llm.KindOf(err),
			LatencyMs:   latencyMs(time.Since(start)),
		}
	}

	doc, perr := recovery.Parse(result.Text)
	if perr != nil {
		if o.Verbose {
			log.Printf("[ORCHESTRATOR] item %s: %s output unrecoverable", item.ID, name)
		}
		return ProviderResult{
			Provider:    name,
			RawText:     result.Text,
			Citations:   result.Citations,
			FailureKind: llm.FailureParse,
			LatencyMs:   latencyMs(result.Latency),
		}
	}

	return ProviderResult{
		Provider:  name,
		RawText:   result.Text,
		Document:  doc,
		Citations: result.Citations,
		Succeeded: true,
		LatencyMs: latencyMs(result.Latency),
	}
}

// persist hands the outcome to the store. A persistence failure must not
// abort the in-memory pipeline.
func (o *Orchestrator) persist(ctx context.Context, outcome BatchOutcome) {
	if o.Store == nil {
		return
	}
	if err := o.Store.SaveOutcome(ctx, outcome); err != nil {
		log.Printf("[ORCHESTRATOR] failed to persist outcome for item %s: %v",
			outcome.Item.ID, err)
	}
}


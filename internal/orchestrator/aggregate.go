// Package orchestrator - aggregate.go rolls completed outcomes up into
// per-market analyses.
package orchestrator

import (
	"context"
	"log"
	"sort"
	"sync"
)

// AggregateFunc reduces the outcomes relevant to one question dimension
// into a single analysis value. Implementations typically re-ask a model
// to synthesize, so they take a context and may fail independently.
type AggregateFunc func(ctx context.Context, outcomes []BatchOutcome) (any, error)

// Aggregator computes per-market rollups. Each market is processed by
// exactly one worker, so the market's aggregate is never written
// concurrently. Within a market, the market-level dimensions run
// concurrently with each other, and each category's dimensions run
// concurrently with the other categories.
type Aggregator struct {
	Reputation        AggregateFunc
	CategoryDetection AggregateFunc
	Visibility        AggregateFunc
	Competitive       AggregateFunc
	Verbose           bool
}

// Aggregate builds one MarketAggregate per market from the batch outcomes.
// A failed aggregation function is recorded on the aggregate (or the
// category) it belongs to and never aborts siblings. Markets with no
// outcomes still get an (empty) aggregate so downstream consumers see a
// complete market set.
func (a *Aggregator) Aggregate(ctx context.Context, outcomes []BatchOutcome, markets []Market) map[string]*MarketAggregate {
	byMarket := groupByMarket(outcomes)

	results := make(map[string]*MarketAggregate, len(markets))
	var wg sync.WaitGroup
	for _, market := range markets {
		agg := &MarketAggregate{
			MarketCode: market.Code,
			Categories: make(map[string]*CategoryAggregate, len(market.Categories)),
		}
		for _, cat := range market.Categories {
			agg.Categories[cat] = &CategoryAggregate{}
		}
		results[market.Code] = agg

		wg.Add(1)
		go func(market Market, agg *MarketAggregate) {
			defer wg.Done()
			a.aggregateMarket(ctx, market, byMarket[market.Code], agg)
		}(market, agg)
	}
	wg.Wait()

	return results
}

// aggregateMarket fills one market's aggregate. The caller guarantees
// exclusive ownership of agg for the duration of the call.
func (a *Aggregator) aggregateMarket(ctx context.Context, market Market, outcomes []BatchOutcome, agg *MarketAggregate) {
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		agg.Reputation, agg.ReputationError = a.run(ctx, a.Reputation, filterByType(outcomes, QuestionReputation))
	}()
	go func() {
		defer wg.Done()
		agg.CategoriesDetected, agg.DetectionError = a.run(ctx, a.CategoryDetection, filterByType(outcomes, QuestionCategoryDetection))
	}()

	for _, cat := range sortedCategories(agg.Categories) {
		wg.Add(1)
		go func(cat string, ca *CategoryAggregate) {
			defer wg.Done()
			a.aggregateCategory(ctx, outcomes, cat, ca)
		}(cat, agg.Categories[cat])
	}
	wg.Wait()

	if a.Verbose {
		log.Printf("[AGGREGATE] market %s: %d outcomes, %d categories",
			market.Code, len(outcomes), len(agg.Categories))
	}
}

// aggregateCategory fills one category's rollup. Visibility and
// competitive run sequentially; a failure in either is recorded on the
// category without touching its sibling dimension.
func (a *Aggregator) aggregateCategory(ctx context.Context, outcomes []BatchOutcome, category string, ca *CategoryAggregate) {
	visibility := filterByCategory(outcomes, QuestionVisibility, category)
	competitive := filterByCategory(outcomes, QuestionCompetitive, category)

	var visErr, compErr string
	ca.Visibility, visErr = a.run(ctx, a.Visibility, visibility)
	ca.Competitive, compErr = a.run(ctx, a.Competitive, competitive)

	switch {
	case visErr != "" && compErr != "":
		ca.Error = visErr + "; " + compErr
	case visErr != "":
		ca.Error = visErr
	case compErr != "":
		ca.Error = compErr
	}
}

// run invokes one aggregation function, converting its error into the
// string form the aggregates carry. A nil function or an empty outcome
// set yields nothing rather than an error.
func (a *Aggregator) run(ctx context.Context, fn AggregateFunc, outcomes []BatchOutcome) (any, string) {
	if fn == nil || len(outcomes) == 0 {
		return nil, ""
	}
	value, err := fn(ctx, outcomes)
	if err != nil {
		return nil, err.Error()
	}
	return value, ""
}

func groupByMarket(outcomes []BatchOutcome) map[string][]BatchOutcome {
	grouped := make(map[string][]BatchOutcome)
	for _, o := range outcomes {
		grouped[o.Item.MarketCode] = append(grouped[o.Item.MarketCode], o)
	}
	return grouped
}

func filterByType(outcomes []BatchOutcome, qt QuestionType) []BatchOutcome {
	var out []BatchOutcome
	for _, o := range outcomes {
		if o.Item.Type == qt {
			out = append(out, o)
		}
	}
	return out
}

func filterByCategory(outcomes []BatchOutcome, qt QuestionType, category string) []BatchOutcome {
	var out []BatchOutcome
	for _, o := range outcomes {
		if o.Item.Type == qt && o.Item.CategoryID == category {
			out = append(out, o)
		}
	}
	return out
}

func sortedCategories(categories map[string]*CategoryAggregate) []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

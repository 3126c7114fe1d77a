package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcomeFor(market string, qt QuestionType, category string) BatchOutcome {
	return BatchOutcome{
		Item: QuestionItem{
			ID:         market + "-" + string(qt) + "-" + category,
			MarketCode: market,
			CategoryID: category,
			Type:       qt,
		},
		Gemini: ProviderResult{Provider: "gemini", Succeeded: true},
	}
}

func marketFixture() ([]BatchOutcome, []Market) {
	outcomes := []BatchOutcome{
		outcomeFor("us", QuestionReputation, ""),
		outcomeFor("us", QuestionCategoryDetection, ""),
		outcomeFor("us", QuestionVisibility, "banking"),
		outcomeFor("us", QuestionCompetitive, "banking"),
		outcomeFor("us", QuestionVisibility, "insurance"),
		outcomeFor("de", QuestionReputation, ""),
		outcomeFor("de", QuestionVisibility, "banking"),
	}
	markets := []Market{
		{Code: "us", Name: "United States", Categories: []string{"banking", "insurance"}},
		{Code: "de", Name: "Germany", Categories: []string{"banking"}},
	}
	return outcomes, markets
}

func countingFunc(label string, calls *atomic.Int32) AggregateFunc {
	return func(ctx context.Context, outcomes []BatchOutcome) (any, error) {
		calls.Add(1)
		return label + ":" + outcomes[0].Item.MarketCode, nil
	}
}

func TestAggregate_BuildsOneAggregatePerMarket(t *testing.T) {
	outcomes, markets := marketFixture()
	var repCalls, detCalls, visCalls, compCalls atomic.Int32
	a := &Aggregator{
		Reputation:        countingFunc("rep", &repCalls),
		CategoryDetection: countingFunc("det", &detCalls),
		Visibility:        countingFunc("vis", &visCalls),
		Competitive:       countingFunc("comp", &compCalls),
	}

	results := a.Aggregate(context.Background(), outcomes, markets)

	require.Len(t, results, 2)

	us := results["us"]
	require.NotNil(t, us)
	assert.Equal(t, "rep:us", us.Reputation)
	assert.Equal(t, "det:us", us.CategoriesDetected)
	require.Len(t, us.Categories, 2)
	assert.Equal(t, "vis:us", us.Categories["banking"].Visibility)
	assert.Equal(t, "comp:us", us.Categories["banking"].Competitive)
	assert.Equal(t, "vis:us", us.Categories["insurance"].Visibility)
	// No competitive outcomes exist for insurance, so the function is
	// skipped rather than fed an empty set.
	assert.Nil(t, us.Categories["insurance"].Competitive)

	de := results["de"]
	require.NotNil(t, de)
	assert.Equal(t, "rep:de", de.Reputation)
	assert.Nil(t, de.CategoriesDetected)
	assert.Equal(t, "vis:de", de.Categories["banking"].Visibility)

	assert.Equal(t, int32(2), repCalls.Load())
	assert.Equal(t, int32(1), detCalls.Load())
	assert.Equal(t, int32(3), visCalls.Load())
	assert.Equal(t, int32(1), compCalls.Load())
}

func TestAggregate_CategoryFailureIsIsolated(t *testing.T) {
	outcomes, markets := marketFixture()
	a := &Aggregator{
		Reputation: func(ctx context.Context, o []BatchOutcome) (any, error) {
			return "fine", nil
		},
		Visibility: func(ctx context.Context, o []BatchOutcome) (any, error) {
			if o[0].Item.CategoryID == "banking" {
				return nil, errors.New("model returned no usable signal")
			}
			return "visible", nil
		},
		Competitive: func(ctx context.Context, o []BatchOutcome) (any, error) {
			return "competitive", nil
		},
	}

	results := a.Aggregate(context.Background(), outcomes, markets)

	us := results["us"]
	require.NotNil(t, us)
	assert.Equal(t, "fine", us.Reputation)
	assert.Empty(t, us.ReputationError)

	banking := us.Categories["banking"]
	assert.Nil(t, banking.Visibility)
	assert.Equal(t, "model returned no usable signal", banking.Error)
	assert.Equal(t, "competitive", banking.Competitive,
		"sibling dimension of a failed category still runs")

	insurance := us.Categories["insurance"]
	assert.Equal(t, "visible", insurance.Visibility)
	assert.Empty(t, insurance.Error)
}

func TestAggregate_MarketDimensionFailureIsIsolated(t *testing.T) {
	outcomes, markets := marketFixture()
	a := &Aggregator{
		Reputation: func(ctx context.Context, o []BatchOutcome) (any, error) {
			if o[0].Item.MarketCode == "us" {
				return nil, errors.New("synthesis failed")
			}
			return "rep", nil
		},
		Visibility: func(ctx context.Context, o []BatchOutcome) (any, error) {
			return "vis", nil
		},
	}

	results := a.Aggregate(context.Background(), outcomes, markets)

	assert.Equal(t, "synthesis failed", results["us"].ReputationError)
	assert.Nil(t, results["us"].Reputation)
	assert.Equal(t, "vis", results["us"].Categories["banking"].Visibility,
		"category rollups proceed despite a market-level failure")
	assert.Equal(t, "rep", results["de"].Reputation)
}

func TestAggregate_BothCategoryDimensionsFail(t *testing.T) {
	outcomes, markets := marketFixture()
	fail := func(msg string) AggregateFunc {
		return func(ctx context.Context, o []BatchOutcome) (any, error) {
			return nil, errors.New(msg)
		}
	}
	a := &Aggregator{Visibility: fail("vis down"), Competitive: fail("comp down")}

	results := a.Aggregate(context.Background(), outcomes, markets)

	assert.Equal(t, "vis down; comp down", results["us"].Categories["banking"].Error)
}

func TestAggregate_MarketWithoutOutcomes(t *testing.T) {
	a := &Aggregator{
		Reputation: func(ctx context.Context, o []BatchOutcome) (any, error) {
			t.Error("must not be called with no outcomes")
			return nil, nil
		},
	}
	markets := []Market{{Code: "fr", Name: "France", Categories: []string{"banking"}}}

	results := a.Aggregate(context.Background(), nil, markets)

	require.Len(t, results, 1)
	fr := results["fr"]
	require.NotNil(t, fr)
	assert.Nil(t, fr.Reputation)
	assert.Empty(t, fr.ReputationError)
	require.Contains(t, fr.Categories, "banking")
}

func TestAggregate_MarketsRunConcurrently(t *testing.T) {
	outcomes, markets := marketFixture()

	// Both markets' reputation functions must be in flight at once. Each
	// waits for the other to start before returning; a sequential driver
	// would deadlock here, so the test bounds the wait with a barrier.
	var wg sync.WaitGroup
	wg.Add(2)
	a := &Aggregator{
		Reputation: func(ctx context.Context, o []BatchOutcome) (any, error) {
			wg.Done()
			wg.Wait()
			return "rep", nil
		},
	}

	results := a.Aggregate(context.Background(), outcomes, markets)
	assert.Equal(t, "rep", results["us"].Reputation)
	assert.Equal(t, "rep", results["de"].Reputation)
}

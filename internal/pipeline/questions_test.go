package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/brand-radar/internal/orchestrator"
)

func TestBuildQuestions(t *testing.T) {
	markets := []orchestrator.Market{
		{Code: "us", Name: "United States", Categories: []string{"banking", "insurance"}},
		{Code: "de", Name: "Germany", Categories: nil},
	}

	items, err := BuildQuestions("Acme Bank", markets)
	require.NoError(t, err)

	// us: reputation + detection + 2 categories x 2 questions; de: 2.
	require.Len(t, items, 8)

	byID := make(map[string]orchestrator.QuestionItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	rep, ok := byID["us:reputation"]
	require.True(t, ok)
	assert.Equal(t, orchestrator.QuestionReputation, rep.Type)
	assert.Contains(t, rep.PromptText, "Acme Bank")
	assert.Contains(t, rep.PromptText, "United States")

	vis, ok := byID["us:visibility:insurance"]
	require.True(t, ok)
	assert.Equal(t, "insurance", vis.CategoryID)
	assert.Contains(t, vis.PromptText, "insurance")

	_, ok = byID["de:category-detection"]
	assert.True(t, ok)
	_, ok = byID["de:visibility:banking"]
	assert.False(t, ok, "markets without categories get no category questions")
}

func TestBuildQuestions_Deterministic(t *testing.T) {
	markets := []orchestrator.Market{{Code: "us", Name: "United States", Categories: []string{"banking"}}}

	first, err := BuildQuestions("Acme", markets)
	require.NoError(t, err)
	second, err := BuildQuestions("Acme", markets)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

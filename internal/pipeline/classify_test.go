package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcus/brand-radar/internal/citations"
	"github.com/marcus/brand-radar/internal/orchestrator"
	"github.com/marcus/brand-radar/internal/recovery"
)

func TestDomainClassifier(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"reuters.com", SourceNews},
		{"uk.reuters.com", SourceNews},
		{"x.com", SourceSocial},
		{"reddit.com", SourceSocial},
		{"en.wikipedia.org", SourceReference},
		{"heise-news.de", SourceNews},
		{"engineering-blog.example.com", SourceBlog},
		{"medium.com", SourceBlog},
		{"acmebank.com", SourceCorporate},
		{"", SourceUnknown},
	}

	c := DomainClassifier{}
	for _, tt := range tests {
		got := c.Classify(citations.Citation{URL: "https://" + tt.domain, Domain: tt.domain})
		assert.Equal(t, tt.want, got, "domain %q", tt.domain)
	}
}

func TestDomainClassifier_Unresolved(t *testing.T) {
	c := DomainClassifier{}
	got := c.Classify(citations.Citation{URL: citations.Unresolved, Domain: citations.Unresolved})
	assert.Equal(t, SourceUnknown, got)
}

func TestClassifyOutcomes(t *testing.T) {
	outcomes := []orchestrator.BatchOutcome{
		{
			Item: orchestrator.QuestionItem{Type: orchestrator.QuestionVisibility},
			Gemini: orchestrator.ProviderResult{
				Succeeded: true,
				Document:  recovery.Document{"mentioned": true, "summary": "ok"},
				Citations: []citations.Citation{
					{URL: "https://reuters.com/a", Domain: "reuters.com"},
					{URL: "https://acme.com/b", Domain: "acme.com"},
				},
			},
			OpenAI: orchestrator.ProviderResult{
				Succeeded: true,
				Document:  recovery.Document{"summary": "missing the mentioned field"},
			},
		},
	}

	counts := classifyOutcomes(outcomes, DomainClassifier{})

	assert.Equal(t, 2, counts.Citations)
	assert.Equal(t, 1, counts.BySource[SourceNews])
	assert.Equal(t, 1, counts.BySource[SourceCorporate])
	assert.Equal(t, 1, counts.ValidDocuments)
	assert.Equal(t, 1, counts.SchemaFailures)

	// Labels are written back onto the citations themselves.
	assert.Equal(t, SourceNews, outcomes[0].Gemini.Citations[0].SourceType)
	assert.Equal(t, SourceCorporate, outcomes[0].Gemini.Citations[1].SourceType)
}

package pipeline

import (
	"strings"

	"github.com/marcus/brand-radar/internal/citations"
	"github.com/marcus/brand-radar/internal/orchestrator"
	"github.com/marcus/brand-radar/internal/schemas"
)

// Source type labels assigned during classification.
const (
	SourceNews      = "news"
	SourceSocial    = "social"
	SourceReference = "reference"
	SourceBlog      = "blog"
	SourceCorporate = "corporate"
	SourceUnknown   = "unknown"
)

// SourceClassifier assigns a source type label to a resolved citation.
type SourceClassifier interface {
	Classify(c citations.Citation) string
}

// DomainClassifier labels citations from their domain alone. It needs no
// network access and never fails, which keeps the classification phase
// cheap relative to the provider-call phase.
type DomainClassifier struct{}

var newsDomains = []string{
	"reuters.com", "bloomberg.com", "ft.com", "wsj.com", "nytimes.com",
	"theguardian.com", "bbc.com", "bbc.co.uk", "cnbc.com", "forbes.com",
	"handelsblatt.com", "lemonde.fr", "elpais.com",
}

var socialDomains = []string{
	"twitter.com", "x.com", "reddit.com", "facebook.com", "linkedin.com",
	"instagram.com", "tiktok.com", "youtube.com",
}

var referenceDomains = []string{
	"wikipedia.org", "wikidata.org", "britannica.com",
}

// Classify implements SourceClassifier.
func (DomainClassifier) Classify(c citations.Citation) string {
	if c.IsUnresolved() || c.Domain == "" {
		return SourceUnknown
	}
	domain := strings.ToLower(c.Domain)

	for _, d := range newsDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return SourceNews
		}
	}
	for _, d := range socialDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return SourceSocial
		}
	}
	for _, d := range referenceDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return SourceReference
		}
	}
	if strings.Contains(domain, "news") {
		return SourceNews
	}
	if strings.Contains(domain, "blog") || strings.Contains(domain, "medium.com") ||
		strings.Contains(domain, "substack.com") {
		return SourceBlog
	}
	return SourceCorporate
}

// ClassificationCounts summarizes the classification phase.
type ClassificationCounts struct {
	Citations      int
	BySource       map[string]int
	ValidDocuments int
	SchemaFailures int
}

// classifyOutcomes labels every citation in place and validates each
// recovered document against its question type's schema. A schema failure
// is counted, not fatal; the document still participates in aggregation.
func classifyOutcomes(outcomes []orchestrator.BatchOutcome, classifier SourceClassifier) ClassificationCounts {
	counts := ClassificationCounts{BySource: make(map[string]int)}

	for i := range outcomes {
		for _, result := range []*orchestrator.ProviderResult{&outcomes[i].Gemini, &outcomes[i].OpenAI} {
			for j := range result.Citations {
				label := classifier.Classify(result.Citations[j])
				result.Citations[j].SourceType = label
				counts.Citations++
				counts.BySource[label]++
			}
			if result.Succeeded {
				if err := schemas.ValidateResponse(string(outcomes[i].Item.Type), result.Document); err != nil {
					counts.SchemaFailures++
				} else {
					counts.ValidDocuments++
				}
			}
		}
	}

	return counts
}

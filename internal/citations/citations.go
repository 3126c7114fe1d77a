// Package citations holds the citation model attached to grounded provider
// answers and the resolver that follows provider redirect links to their
// real destinations.
package citations

import (
	"net/url"
	"strings"
)

// Unresolved is the reserved marker used for citations whose redirect could
// not be resolved and whose title yielded no domain guess. Consumers must
// treat it as "source unknown", never as a real URL.
const Unresolved = "unresolved"

// Citation is a single web source attached to a generated answer. URL may
// transiently hold a provider redirect link until resolution completes.
// RelevanceScore is the provider's confidence that the source supports the
// answer; it stays 0 when the provider reports none.
type Citation struct {
	URL            string  `json:"url"`
	Domain         string  `json:"domain"`
	Title          string  `json:"title"`
	RelevanceScore float64 `json:"relevance_score"`
	SourceType     string  `json:"source_type,omitempty"`
}

// IsUnresolved reports whether the citation carries the reserved marker.
func (c Citation) IsUnresolved() bool {
	return c.URL == Unresolved
}

// redirectHosts are provider indirection hosts whose links must be followed
// to reach the real source.
var redirectHosts = []string{
	"vertexaisearch.cloud.google.com",
	"grounding-api-redirect",
}

// IsRedirectURL reports whether rawURL is a provider grounding redirect link
// rather than a real destination.
func IsRedirectURL(rawURL string) bool {
	for _, h := range redirectHosts {
		if strings.Contains(rawURL, h) {
			return true
		}
	}
	return false
}

// DomainOf extracts the bare host from a URL, without the www prefix.
func DomainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// DomainFromTitle derives a domain guess from a human-readable citation
// title. Publication titles commonly end with the outlet name, e.g.
// "Article Title | Outlet.com" or "Quarterly Report | Example Corp".
// Returns "" when no plausible guess can be made.
func DomainFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	segment := title
	for _, sep := range []string{"|", "–", "—", " - "} {
		if idx := strings.LastIndex(segment, sep); idx >= 0 {
			segment = segment[idx+len(sep):]
		}
	}
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return ""
	}

	// The outlet segment may already be a domain ("Outlet.com").
	if looksLikeDomain(segment) {
		return strings.TrimPrefix(strings.ToLower(segment), "www.")
	}

	// Otherwise collapse the publication name into a .com guess
	// ("Example Corp" -> "examplecorp.com").
	var sb strings.Builder
	for _, r := range strings.ToLower(segment) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() < 2 {
		return ""
	}
	return sb.String() + ".com"
}

// looksLikeDomain reports whether s is shaped like a bare hostname.
func looksLikeDomain(s string) bool {
	if !strings.Contains(s, ".") || strings.ContainsAny(s, " /") {
		return false
	}
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			continue
		}
		return false
	}
	return true
}

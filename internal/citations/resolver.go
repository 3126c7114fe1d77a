// Package citations - resolver.go follows provider redirect links in
// parallel and degrades to title-based guesses when resolution fails.
package citations

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultResolveTimeout bounds a single redirect resolution.
	DefaultResolveTimeout = 8 * time.Second
	// MaxRedirectHops bounds the redirect chain length per citation.
	MaxRedirectHops = 10
)

// Resolver resolves provider redirect links to canonical destination URLs.
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	verbose bool
}

// NewResolver creates a resolver. Redirects are followed up to
// MaxRedirectHops and response bodies are never downloaded.
func NewResolver(verbose bool) *Resolver {
	return &Resolver{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxRedirectHops {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		timeout: DefaultResolveTimeout,
		verbose: verbose,
	}
}

// ResolveAll resolves every redirect citation in cs concurrently and returns
// the updated set. Non-redirect citations pass through with their domain
// filled in. A citation that cannot be resolved is tagged with the reserved
// unresolved marker (or a title-derived domain guess) rather than dropped;
// resolution never fails the surrounding provider call.
func (r *Resolver) ResolveAll(ctx context.Context, cs []Citation) []Citation {
	if len(cs) == 0 {
		return cs
	}

	resolved := make([]Citation, len(cs))
	var wg sync.WaitGroup
	for i, c := range cs {
		wg.Add(1)
		go func(i int, c Citation) {
			defer wg.Done()
			resolved[i] = r.resolveOne(ctx, c)
		}(i, c)
	}
	wg.Wait()
	return resolved
}

func (r *Resolver) resolveOne(ctx context.Context, c Citation) Citation {
	if !IsRedirectURL(c.URL) {
		if c.Domain == "" {
			c.Domain = DomainOf(c.URL)
		}
		return c
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	finalURL, status, err := r.follow(ctx, c.URL)
	if err != nil {
		if r.verbose {
			log.Printf("[CITATIONS] redirect resolution failed for %q: %v", c.Title, err)
		}
		return fallback(c)
	}
	// A 3xx final status means the hop budget ran out mid-chain; the last
	// reported URL is another redirect, not a destination.
	if status >= 300 && status < 400 {
		if r.verbose {
			log.Printf("[CITATIONS] redirect chain for %q exceeded %d hops", c.Title, MaxRedirectHops)
		}
		return fallback(c)
	}
	if isSearchResultsPage(finalURL) {
		if r.verbose {
			log.Printf("[CITATIONS] redirect for %q landed on a search page, using title fallback", c.Title)
		}
		return fallback(c)
	}

	c.URL = finalURL
	c.Domain = DomainOf(finalURL)
	return c
}

// follow issues a GET and returns the URL and status of the final response
// without reading its body.
func (r *Resolver) follow(ctx context.Context, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.Request.URL.String(), resp.StatusCode, nil
}

// fallback derives the best available citation when resolution failed: a
// title-based domain guess when possible, otherwise the reserved unresolved
// marker carrying the original title. The opaque redirect URL is never kept.
func fallback(c Citation) Citation {
	if domain := DomainFromTitle(c.Title); domain != "" {
		c.URL = "https://" + domain
		c.Domain = domain
		return c
	}
	c.URL = Unresolved
	c.Domain = Unresolved
	return c
}

// isSearchResultsPage reports whether a resolved URL is a generic search
// results page rather than a real destination.
func isSearchResultsPage(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	path := strings.ToLower(parsed.Path)
	query := parsed.Query()

	switch {
	case strings.HasSuffix(host, "google.com") && strings.HasPrefix(path, "/search"):
		return true
	case strings.HasSuffix(host, "bing.com") && strings.HasPrefix(path, "/search"):
		return true
	case strings.HasSuffix(host, "duckduckgo.com") && query.Get("q") != "":
		return true
	case strings.HasPrefix(path, "/search") && query.Get("q") != "":
		return true
	}
	return false
}

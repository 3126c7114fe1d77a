package citations

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirectURL builds a test URL that the resolver treats as a provider
// redirect link (the path carries the grounding redirect marker).
func redirectURL(base, target string) string {
	return fmt.Sprintf("%s/grounding-api-redirect/?to=%s", base, target)
}

func newRedirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/grounding-api-redirect/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Query().Get("to"), http.StatusFound)
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Query().Get("to"), http.StatusFound)
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return srv
}

func TestResolveAll_FollowsRedirectChain(t *testing.T) {
	srv := newRedirectServer(t)
	target := srv.URL + "/article"
	hop := srv.URL + "/hop?to=" + target

	r := NewResolver(false)
	got := r.ResolveAll(context.Background(), []Citation{
		{URL: redirectURL(srv.URL, hop), Title: "Some Article | Example News"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, target, got[0].URL)
	assert.NotEqual(t, Unresolved, got[0].Domain)
}

func TestResolveAll_SearchPageFallsBackToTitleDomain(t *testing.T) {
	srv := newRedirectServer(t)
	// Two hops ending on a generic search results page.
	search := srv.URL + "/search?q=example"
	hop := srv.URL + "/hop?to=" + search

	r := NewResolver(false)
	got := r.ResolveAll(context.Background(), []Citation{
		{URL: redirectURL(srv.URL, hop), Title: "Quarterly Report | Example Corp"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "examplecorp.com", got[0].Domain)
	assert.Equal(t, "https://examplecorp.com", got[0].URL)
	assert.Equal(t, "Quarterly Report | Example Corp", got[0].Title)
}

func TestResolveAll_EndlessRedirectChainFallsBackToTitle(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/grounding-api-redirect/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/grounding-api-redirect/loop", http.StatusFound)
	})

	r := NewResolver(false)
	got := r.ResolveAll(context.Background(), []Citation{
		{URL: srv.URL + "/grounding-api-redirect/loop", Title: "Deep Dive | Outlet.com"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "outlet.com", got[0].Domain, "a chain that never terminates must not yield an intermediate hop URL")
	assert.Equal(t, "https://outlet.com", got[0].URL)
}

func TestResolveAll_NetworkFailureFallsBackToTitle(t *testing.T) {
	srv := newRedirectServer(t)
	srv.Close() // force connection errors

	r := NewResolver(false)
	r.timeout = 500 * time.Millisecond
	got := r.ResolveAll(context.Background(), []Citation{
		{URL: redirectURL(srv.URL, "ignored"), Title: "Launch Coverage | Outlet.com"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "outlet.com", got[0].Domain)
}

func TestResolveAll_NoFallbackYieldsUnresolvedMarker(t *testing.T) {
	srv := newRedirectServer(t)
	srv.Close()

	r := NewResolver(false)
	r.timeout = 500 * time.Millisecond
	got := r.ResolveAll(context.Background(), []Citation{
		{URL: redirectURL(srv.URL, "ignored"), Title: ""},
	})

	require.Len(t, got, 1)
	assert.True(t, got[0].IsUnresolved())
	assert.Equal(t, Unresolved, got[0].Domain)
}

func TestResolveAll_NonRedirectPassesThrough(t *testing.T) {
	r := NewResolver(false)
	got := r.ResolveAll(context.Background(), []Citation{
		{URL: "https://www.example.org/post", Title: "Post"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "https://www.example.org/post", got[0].URL)
	assert.Equal(t, "example.org", got[0].Domain)
}

func TestDomainFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Quarterly Report | Example Corp", "examplecorp.com"},
		{"Article Title | Outlet.com", "outlet.com"},
		{"Review - TechDaily", "techdaily.com"},
		{"Standalone Title", "standalonetitle.com"},
		{"", ""},
		{"|", ""},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainFromTitle(tt.title))
		})
	}
}

func TestIsSearchResultsPage(t *testing.T) {
	assert.True(t, isSearchResultsPage("https://www.google.com/search?q=acme"))
	assert.True(t, isSearchResultsPage("https://bing.com/search?q=acme"))
	assert.True(t, isSearchResultsPage("https://duckduckgo.com/?q=acme"))
	assert.False(t, isSearchResultsPage("https://example.com/article/acme"))
}

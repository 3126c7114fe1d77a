// Package llm - openai.go implements the OpenAI provider over the raw chat
// completions wire protocol.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/marcus/brand-radar/internal/citations"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// plainRetryDelay is the fixed wait before the single retry in plain
// chat-completion mode. No exponential backoff for this provider.
const plainRetryDelay = 2 * time.Second

// OpenAIProvider calls the OpenAI chat completions API. Search-preview
// model families return url_citation annotations; plain chat models return
// no citations and get a single retry on 4xx/5xx with a fixed short delay.
type OpenAIProvider struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	verbose    bool
	seq        atomic.Int64

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(apiKey, model string, verbose bool) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return &OpenAIProvider{
		endpoint:   defaultOpenAIEndpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: DefaultCallTimeout},
		verbose:    verbose,
		sleep:      time.Sleep,
	}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// searchEnabled reports whether the configured model family supports the
// web-search tool and returns citation annotations.
func (p *OpenAIProvider) searchEnabled() bool {
	return strings.Contains(p.model, "search")
}

// Generate implements Provider.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (*GenerateResult, error) {
	callID := fmt.Sprintf("%s-%d", ProviderOpenAI, p.seq.Add(1))
	start := time.Now()

	// The single fixed-delay retry belongs to plain chat mode only;
	// search-preview calls go out exactly once.
	result, err := p.generateOnce(ctx, prompt)
	if err != nil && !p.searchEnabled() {
		var pe *Error
		if errors.As(err, &pe) && pe.StatusCode >= 400 {
			if p.verbose {
				log.Printf("[OPENAI] call %s failed (status %d), retrying once", callID, pe.StatusCode)
			}
			p.sleep(plainRetryDelay)
			result, err = p.generateOnce(ctx, prompt)
		}
	}
	if err != nil {
		return nil, err
	}

	result.Latency = time.Since(start)
	if p.verbose {
		log.Printf("[OPENAI] call %s completed in %s with %d citations",
			callID, result.Latency.Round(time.Millisecond), len(result.Citations))
	}
	return result, nil
}

// Wire types for the chat completions protocol.
type chatRequest struct {
	Model            string            `json:"model"`
	Messages         []chatMessage     `json:"messages"`
	WebSearchOptions *webSearchOptions `json:"web_search_options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type webSearchOptions struct {
	SearchContextSize string `json:"search_context_size,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content     string `json:"content"`
			Annotations []struct {
				Type        string `json:"type"`
				URLCitation struct {
					URL   string `json:"url"`
					Title string `json:"title"`
				} `json:"url_citation"`
			} `json:"annotations"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *OpenAIProvider) generateOnce(ctx context.Context, prompt string) (*GenerateResult, error) {
	req := chatRequest{
		Model:    p.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	if p.searchEnabled() {
		req.WebSearchOptions = &webSearchOptions{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Provider: ProviderOpenAI, Kind: FailureUnknown,
			Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: ProviderOpenAI, Kind: FailureUnknown,
			Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		kind := FailureUnknown
		if errors.Is(err, context.DeadlineExceeded) {
			kind = FailureTimeout
		}
		return nil, &Error{Provider: ProviderOpenAI, Kind: kind, Message: err.Error(), Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &Error{Provider: ProviderOpenAI, Kind: FailureUnknown,
			Message: "failed to read response body", Cause: err}
	}

	var decoded chatResponse
	_ = json.Unmarshal(payload, &decoded)

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(payload))
		if decoded.Error != nil {
			msg = decoded.Error.Message
		}
		return nil, &Error{
			Provider:   ProviderOpenAI,
			Kind:       ClassifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	if len(decoded.Choices) == 0 {
		return nil, &Error{Provider: ProviderOpenAI, Kind: FailureUnknown, Message: "no choices in response"}
	}
	choice := decoded.Choices[0]
	if choice.FinishReason == "length" {
		return nil, &Error{Provider: ProviderOpenAI, Kind: FailureTokenLimit,
			Message: "output truncated at token limit"}
	}

	var cs []citations.Citation
	if p.searchEnabled() {
		for _, ann := range choice.Message.Annotations {
			if ann.Type != "url_citation" || ann.URLCitation.URL == "" {
				continue
			}
			cs = append(cs, citations.Citation{
				URL:    ann.URLCitation.URL,
				Domain: citations.DomainOf(ann.URLCitation.URL),
				Title:  ann.URLCitation.Title,
			})
		}
	}

	return &GenerateResult{
		Text:         choice.Message.Content,
		Citations:    cs,
		FinishReason: choice.FinishReason,
		Model:        p.model,
	}, nil
}

// Package llm - errors.go defines the typed failure model shared by every
// provider adapter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FailureKind classifies a provider call failure. The retry layer keys off
// this value, so classification must happen before propagation.
type FailureKind string

// Failure taxonomy. Only timeout, rate_limit and server_error are retried
// by the generic retry policy.
const (
	FailureTimeout    FailureKind = "timeout"
	FailureRateLimit  FailureKind = "rate_limit"
	FailureServer     FailureKind = "server_error"
	FailureAuth       FailureKind = "auth_error"
	FailureParse      FailureKind = "parse_error"
	FailureTokenLimit FailureKind = "token_limit"
	FailureUnknown    FailureKind = "unknown"
)

// Error is a classified provider failure.
type Error struct {
	Provider   string
	Kind       FailureKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s call failed (%s, status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s call failed (%s): %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the failure kind of err, classifying untyped errors on the
// way through. Nil errors have no kind.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return classifyMessage(err.Error())
}

// Retryable reports whether a failure kind is retried by the generic retry
// policy. Auth failures retried N times waste quota; a parse failure retried
// against the same bad output will not improve.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureTimeout, FailureRateLimit, FailureServer:
		return true
	}
	return false
}

// ClassifyStatus maps an HTTP status code to a failure kind.
func ClassifyStatus(code int) FailureKind {
	switch {
	case code == http.StatusTooManyRequests:
		return FailureRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return FailureAuth
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return FailureTimeout
	case code >= 500:
		return FailureServer
	}
	return FailureUnknown
}

// classifyMessage is the deprecated string-matching fallback, kept only for
// transports that surface no structured status. It is known to misclassify:
// any auth failure whose message mentions "token" comes back as token_limit.
// Prefer ClassifyStatus wherever a status code is available.
//
// Deprecated: use structured classification via ClassifyStatus.
func classifyMessage(msg string) FailureKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota"):
		return FailureRateLimit
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return FailureTimeout
	case strings.Contains(lower, "token"):
		return FailureTokenLimit
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api key"):
		return FailureAuth
	}
	return FailureUnknown
}

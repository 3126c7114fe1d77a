// Package recovery turns arbitrary, possibly malformed LLM output into a
// structured JSON document. It degrades through a ladder of repair stages,
// each strictly more aggressive than the last, and short-circuits on the
// first stage that yields a valid document.
package recovery

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// Document is a decoded top-level JSON object from a provider response.
type Document = map[string]any

// LadderError reports why every recovery stage failed for a given input.
type LadderError struct {
	Stages []StageFailure
}

// StageFailure records the failure of a single recovery stage.
type StageFailure struct {
	Stage  string
	Reason string
}

func (e *LadderError) Error() string {
	var sb strings.Builder
	sb.WriteString("all recovery stages failed:")
	for _, s := range e.Stages {
		sb.WriteString(fmt.Sprintf(" [%s: %s]", s.Stage, s.Reason))
	}
	return sb.String()
}

// Parse attempts to decode text into a Document, repairing common provider
// output defects along the way. It never panics. A nil Document with a
// non-nil error means no usable structured output could be recovered;
// callers must never treat that as an empty-but-valid document.
func Parse(text string) (Document, error) {
	// Stage 1: direct parse. Already-valid input never touches the
	// repair stages.
	doc, derr := decode(text)
	if derr == nil {
		return doc, nil
	}

	var failures []StageFailure
	record := func(stage string, err error) {
		failures = append(failures, StageFailure{Stage: stage, Reason: err.Error()})
	}
	record("direct", derr)

	// Stage 2: strip markdown fences and stray control bytes.
	sanitized := Sanitize(text)
	if doc, err := decode(sanitized); err == nil {
		return doc, nil
	} else {
		record("sanitize", err)
	}

	// Stage 3: heuristic separator repairs on the sanitized text.
	repaired := RepairSeparators(sanitized)
	if doc, err := decode(repaired); err == nil {
		return doc, nil
	} else {
		record("separators", err)
	}

	// Stage 4: balanced-object extraction, then stages 2-3 on the substring.
	if extracted, ok := ExtractObject(sanitized); ok {
		candidate := RepairSeparators(Sanitize(extracted))
		if doc, err := decode(candidate); err == nil {
			return doc, nil
		} else {
			record("extract", err)
		}
	} else {
		record("extract", fmt.Errorf("no balanced top-level object found"))
	}

	// Stage 5: aggressive character-level repair, with and without
	// bracket extraction.
	aggressive := RepairSeparators(AggressiveRepair(sanitized))
	if doc, err := decode(aggressive); err == nil {
		return doc, nil
	} else {
		record("aggressive", err)
	}
	if extracted, ok := ExtractObject(aggressive); ok {
		if doc, err := decode(extracted); err == nil {
			return doc, nil
		} else {
			record("aggressive-extract", err)
		}
	}

	err := &LadderError{Stages: failures}
	log.Printf("[RECOVERY] unrecoverable response (%d chars): head=%q tail=%q stages=%v",
		len(text), head(text, 200), tail(text, 200), err)
	return nil, err
}

// ParseInto recovers a document from text and unmarshals it into v.
func ParseInto(text string, v any) error {
	doc, err := Parse(text)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to re-encode recovered document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode recovered document: %w", err)
	}
	return nil
}

// decode parses text as a single top-level JSON object. Trailing garbage
// is rejected; the extraction stage handles that case instead.
func decode(text string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("decoded value is not an object")
	}
	return doc, nil
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

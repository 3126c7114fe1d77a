package recovery

import (
	"encoding/json"
	"testing"
)

func TestParse_ValidFastPath(t *testing.T) {
	input := `{"brand": "Acme", "score": 8.5, "sources": ["a", "b"]}`

	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}

	var direct map[string]any
	if err := json.Unmarshal([]byte(input), &direct); err != nil {
		t.Fatalf("fixture is not valid JSON: %v", err)
	}
	assertDocEqual(t, doc, direct)
}

func TestParse_CodeFenceWrapper(t *testing.T) {
	unwrapped := `{"sentiment": "positive", "score": 7}`
	tests := []struct {
		name  string
		input string
	}{
		{name: "json fence", input: "```json\n" + unwrapped + "\n```"},
		{name: "bare fence", input: "```\n" + unwrapped + "\n```"},
		{name: "fence with surrounding whitespace", input: "\n\n```json\n" + unwrapped + "\n```\n"},
	}

	want, err := Parse(unwrapped)
	if err != nil {
		t.Fatalf("Parse(unwrapped) error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse() error = %v, want nil", err)
			}
			assertDocEqual(t, doc, want)
		})
	}
}

func TestParse_MissingSeparatorBetweenStrings(t *testing.T) {
	// A missing comma between two string values split by a newline.
	input := "{\"strengths\": [\"fast shipping\"\n\"good support\"], \"score\": 6}"

	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v, want recovered document", err)
	}

	strengths, ok := doc["strengths"].([]any)
	if !ok || len(strengths) != 2 {
		t.Fatalf("strengths = %v, want two entries", doc["strengths"])
	}
	if strengths[0] != "fast shipping" || strengths[1] != "good support" {
		t.Errorf("strengths = %v, want original values", strengths)
	}
}

func TestParse_MissingSeparatorBetweenObjects(t *testing.T) {
	input := "{\"categories\": [{\"id\": \"crm\"}\n{\"id\": \"erp\"}]}"

	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v, want recovered document", err)
	}
	cats, ok := doc["categories"].([]any)
	if !ok || len(cats) != 2 {
		t.Fatalf("categories = %v, want two entries", doc["categories"])
	}
}

func TestParse_TrailingComma(t *testing.T) {
	input := `{"brands": ["Acme", "Globex",], "total": 2,}`

	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v, want recovered document", err)
	}
	if doc["total"] != float64(2) {
		t.Errorf("total = %v, want 2", doc["total"])
	}
}

func TestParse_ExtractionFromProse(t *testing.T) {
	input := "Here is the analysis you asked for:\n\n" +
		`{"summary": "strong presence", "score": 9}` +
		"\n\nLet me know if you need anything else!"

	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v, want recovered document", err)
	}
	if doc["summary"] != "strong presence" {
		t.Errorf("summary = %v", doc["summary"])
	}
}

func TestParse_SmartQuotes(t *testing.T) {
	input := "{“summary”: “market leader”, “score”: 4}"

	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v, want recovered document", err)
	}
	if doc["summary"] != "market leader" {
		t.Errorf("summary = %v, want %q", doc["summary"], "market leader")
	}
}

func TestParse_Idempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"a\": 1}\n```",
		"{\"list\": [\"x\"\n\"y\"]}",
		"prose before {\"k\": \"v\"} prose after",
	}
	for _, input := range inputs {
		doc, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", input, err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			t.Fatalf("marshal recovered document: %v", err)
		}
		again, err := Parse(string(raw))
		if err != nil {
			t.Fatalf("re-parse of recovered output failed: %v", err)
		}
		assertDocEqual(t, again, doc)
	}
}

func TestParse_TotalFailure(t *testing.T) {
	tests := []string{
		"",
		"the model declined to answer",
		"[1, 2, 3]", // not a document
		"null",
	}
	for _, input := range tests {
		doc, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q) = %v, want error", input, doc)
			continue
		}
		if doc != nil {
			t.Errorf("Parse(%q) returned non-nil document with error", input)
		}
		var le *LadderError
		if !asLadderError(err, &le) {
			t.Errorf("Parse(%q) error type = %T, want *LadderError", input, err)
		} else if len(le.Stages) == 0 {
			t.Errorf("LadderError carries no stage failures")
		}
	}
}

func TestParseInto(t *testing.T) {
	type answer struct {
		Summary string  `json:"summary"`
		Score   float64 `json:"score"`
	}
	var a answer
	if err := ParseInto("```json\n{\"summary\": \"ok\", \"score\": 3.5}\n```", &a); err != nil {
		t.Fatalf("ParseInto() error = %v", err)
	}
	if a.Summary != "ok" || a.Score != 3.5 {
		t.Errorf("ParseInto() = %+v", a)
	}
}

func assertDocEqual(t *testing.T, got, want Document) {
	t.Helper()
	g, _ := json.Marshal(got)
	w, _ := json.Marshal(want)
	if string(g) != string(w) {
		t.Errorf("document mismatch:\n got %s\nwant %s", g, w)
	}
}

func asLadderError(err error, target **LadderError) bool {
	le, ok := err.(*LadderError)
	if ok {
		*target = le
	}
	return ok
}

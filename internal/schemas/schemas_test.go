package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResponse_ReputationValid(t *testing.T) {
	doc := map[string]any{
		"sentiment": "positive",
		"score":     7.5,
		"summary":   "Generally well regarded for service quality.",
		"themes":    []any{"customer service", "pricing"},
	}
	assert.NoError(t, ValidateResponse("reputation", doc))
}

func TestValidateResponse_ReputationMissingRequired(t *testing.T) {
	doc := map[string]any{
		"sentiment": "positive",
		"summary":   "Missing score.",
	}
	err := ValidateResponse("reputation", doc)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.NotEmpty(t, verr.Errors)
	assert.Contains(t, verr.Error(), "score")
}

func TestValidateResponse_ReputationBadEnum(t *testing.T) {
	doc := map[string]any{
		"sentiment": "fantastic",
		"score":     5,
		"summary":   "ok",
	}
	var verr *ValidationError
	require.ErrorAs(t, ValidateResponse("reputation", doc), &verr)
}

func TestValidateResponse_VisibilityRankNullable(t *testing.T) {
	doc := map[string]any{
		"mentioned": false,
		"rank":      nil,
		"summary":   "Not present in model answers.",
	}
	assert.NoError(t, ValidateResponse("visibility", doc))
}

func TestValidateResponse_CompetitiveRequiresLeaders(t *testing.T) {
	valid := map[string]any{
		"leaders": []any{"Acme", "Globex"},
		"summary": "Two clear leaders.",
	}
	assert.NoError(t, ValidateResponse("competitive", valid))

	invalid := map[string]any{
		"leaders": []any{},
		"summary": "Empty leader list.",
	}
	var verr *ValidationError
	require.ErrorAs(t, ValidateResponse("competitive", invalid), &verr)
}

func TestValidateResponse_CategoryDetection(t *testing.T) {
	doc := map[string]any{
		"categories": []any{
			map[string]any{"name": "retail banking", "confidence": 0.9},
			map[string]any{"name": "mortgages"},
		},
	}
	assert.NoError(t, ValidateResponse("category-detection", doc))
}

func TestValidateResponse_UnknownQuestionType(t *testing.T) {
	err := ValidateResponse("horoscope", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "horoscope")
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "ok"}`))

	err := ValidateJSONString(schema, `{}`)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAllEmbeddedSchemasCompile(t *testing.T) {
	for questionType, file := range filesByType {
		t.Run(questionType, func(t *testing.T) {
			_, err := loadSchema(file)
			assert.NoError(t, err)
		})
	}
}

package prompts

// Question prompt files and keys.
const (
	QuestionsFile = "questions.json"
	SynthesisFile = "synthesis.json"

	KeyReputation        = "reputation"
	KeyVisibility        = "visibility"
	KeyCompetitive       = "competitive"
	KeyCategoryDetection = "category_detection"
)

// ReputationPrompt builds the market-level reputation question. The same
// inputs always produce the same prompt text.
func ReputationPrompt(entity, market string) (string, error) {
	template, err := Get(QuestionsFile, KeyReputation)
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{"Entity": entity, "Market": market}), nil
}

// VisibilityPrompt builds the per-category visibility question.
func VisibilityPrompt(entity, market, category string) (string, error) {
	template, err := Get(QuestionsFile, KeyVisibility)
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{"Entity": entity, "Market": market, "Category": category}), nil
}

// CompetitivePrompt builds the per-category competitive question.
func CompetitivePrompt(entity, market, category string) (string, error) {
	template, err := Get(QuestionsFile, KeyCompetitive)
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{"Entity": entity, "Market": market, "Category": category}), nil
}

// CategoryDetectionPrompt builds the market-level category discovery question.
func CategoryDetectionPrompt(entity, market string) (string, error) {
	template, err := Get(QuestionsFile, KeyCategoryDetection)
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{"Entity": entity, "Market": market}), nil
}

// SynthesisPrompt builds a rollup prompt that reconciles independent
// assessments into one. The inputs blob is the caller's serialized
// assessments, one per line.
func SynthesisPrompt(key, entity, market, category, inputs string) (string, error) {
	template, err := Get(SynthesisFile, key)
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{
		"Entity":   entity,
		"Market":   market,
		"Category": category,
		"Inputs":   inputs,
	}), nil
}

package pipeline

import (
	"fmt"

	"github.com/marcus/brand-radar/internal/orchestrator"
	"github.com/marcus/brand-radar/internal/prompts"
)

// BuildQuestions expands the entity and market list into the full question
// set: per market one reputation and one category-detection question, plus
// one visibility and one competitive question per configured category.
// Question IDs and prompt text are deterministic for the same inputs.
func BuildQuestions(entity string, markets []orchestrator.Market) ([]orchestrator.QuestionItem, error) {
	var items []orchestrator.QuestionItem

	for _, market := range markets {
		reputation, err := prompts.ReputationPrompt(entity, market.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to build reputation prompt: %w", err)
		}
		items = append(items, orchestrator.QuestionItem{
			ID:         questionID(market.Code, orchestrator.QuestionReputation, ""),
			MarketCode: market.Code,
			Type:       orchestrator.QuestionReputation,
			PromptText: reputation,
		})

		detection, err := prompts.CategoryDetectionPrompt(entity, market.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to build category detection prompt: %w", err)
		}
		items = append(items, orchestrator.QuestionItem{
			ID:         questionID(market.Code, orchestrator.QuestionCategoryDetection, ""),
			MarketCode: market.Code,
			Type:       orchestrator.QuestionCategoryDetection,
			PromptText: detection,
		})

		for _, category := range market.Categories {
			visibility, err := prompts.VisibilityPrompt(entity, market.Name, category)
			if err != nil {
				return nil, fmt.Errorf("failed to build visibility prompt: %w", err)
			}
			items = append(items, orchestrator.QuestionItem{
				ID:         questionID(market.Code, orchestrator.QuestionVisibility, category),
				MarketCode: market.Code,
				CategoryID: category,
				Type:       orchestrator.QuestionVisibility,
				PromptText: visibility,
			})

			competitive, err := prompts.CompetitivePrompt(entity, market.Name, category)
			if err != nil {
				return nil, fmt.Errorf("failed to build competitive prompt: %w", err)
			}
			items = append(items, orchestrator.QuestionItem{
				ID:         questionID(market.Code, orchestrator.QuestionCompetitive, category),
				MarketCode: market.Code,
				CategoryID: category,
				Type:       orchestrator.QuestionCompetitive,
				PromptText: competitive,
			})
		}
	}

	return items, nil
}

func questionID(market string, qt orchestrator.QuestionType, category string) string {
	if category == "" {
		return fmt.Sprintf("%s:%s", market, qt)
	}
	return fmt.Sprintf("%s:%s:%s", market, qt, category)
}

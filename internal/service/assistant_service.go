package service

import (
	"context"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// AssistantService answers the storefront's travel questions with Gemini:
// a short connectivity-focused travel plan for a destination, and a data
// usage estimate to help pick a package size.
type AssistantService struct {
	model *genai.GenerativeModel
}

// NewAssistantService constructs an AssistantService. Returns an error when
// the client cannot be created; the storefront runs without the assistant
// in that case.
func NewAssistantService(ctx context.Context, apiKey, modelName string) (*AssistantService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := client.GenerativeModel(modelName)
	return &AssistantService{model: model}, nil
}

// TravelPlan generates a short connectivity-aware travel plan.
func (s *AssistantService) TravelPlan(ctx context.Context, destination string, days int) (string, error) {
	if days <= 0 {
		days = 7
	}
	prompt := fmt.Sprintf(
		"You are a travel assistant for an eSIM store. Write a concise %d-day travel plan for %s. "+
			"For each day give one or two highlights. Finish with a short note on mobile coverage "+
			"and where travelers typically need the most mobile data. Plain text, no markdown.",
		days, destination)
	return s.generate(ctx, prompt)
}

// EstimateData estimates how much mobile data a trip needs, given the
// traveler's habits in free text.
func (s *AssistantService) EstimateData(ctx context.Context, days int, habits string) (string, error) {
	if days <= 0 {
		days = 7
	}
	prompt := fmt.Sprintf(
		"You are a mobile data advisor for an eSIM store. A traveler is going on a %d-day trip and "+
			"describes their usage as: %q. Estimate their total data need in GB, explain the estimate "+
			"in two or three sentences, and recommend whether a small (1-3GB), medium (5-10GB) or "+
			"unlimited plan fits best. Plain text, no markdown.",
		days, habits)
	return s.generate(ctx, prompt)
}

func (s *AssistantService) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		log.Warn().Msg("assistant: empty gemini response")
		return "", fmt.Errorf("assistant returned no answer")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return sb.String(), nil
}

// Package extractor turns a finished interview into structured family data.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"family-vault/internal/api"
	"family-vault/internal/interview"
	"family-vault/internal/prompts"
)

const (
	extractionTemperature = 0.3
	extractionMaxTokens   = 2000
)

// ProfileCounter is notified after each successful extraction.
type ProfileCounter interface {
	IncrementProfilesGenerated()
}

type Service struct {
	client  api.Completer
	metrics ProfileCounter
	logger  *zap.Logger
}

func New(client api.Completer, metrics ProfileCounter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, metrics: metrics, logger: logger.Named("extractor")}
}

// Extract asks the model for the family data schema filled from answers.
// An interview without answers yields nil data and no error.
func (s *Service) Extract(ctx context.Context, subject string, answers []interview.Answer) (map[string]any, error) {
	if len(answers) == 0 {
		return nil, nil
	}

	transcript := prompts.Transcript(subject, answers)
	s.logger.Info("extracting structured data",
		zap.String("subject", subject),
		zap.Int("answers", len(answers)),
		zap.Int("transcript_bytes", len(transcript)))

	reply, err := s.client.Complete(ctx, api.ChatRequest{
		System:      prompts.ExtractionSystem,
		Prompt:      prompts.Extraction(subject, transcript),
		Temperature: extractionTemperature,
		MaxTokens:   extractionMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("extract structured data: %w", err)
	}

	data, err := ParseExtraction(reply)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementProfilesGenerated()
	}
	return data, nil
}

// ParseExtraction decodes a model reply that must hold one JSON object.
func ParseExtraction(reply string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(api.CleanJSONResponse(reply)), &data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %w", api.ErrExternalService, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: extraction is not a JSON object", api.ErrExternalService)
	}
	return data, nil
}

// Package interviewer generates follow-up questions with the model.
package interviewer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"family-vault/internal/api"
	"family-vault/internal/prompts"
)

const (
	followupTemperature = 0.7
	followupMaxTokens   = 200
)

// listMarker matches leading "1.", "2)", "-", "*" or "•" the model adds
// despite being asked not to.
var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// Service implements interview.FollowupGenerator.
type Service struct {
	client api.Completer
	logger *zap.Logger
}

func New(client api.Completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger.Named("interviewer")}
}

// GenerateFollowups asks the model for up to count follow-ups to answer.
func (s *Service) GenerateFollowups(ctx context.Context, question, answer string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}

	reply, err := s.client.Complete(ctx, api.ChatRequest{
		System:      prompts.FollowupSystem,
		Prompt:      prompts.Followup(question, answer, count),
		Temperature: followupTemperature,
		MaxTokens:   followupMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate follow-ups: %w", err)
	}

	followups := ParseFollowups(reply, count)
	s.logger.Debug("follow-ups generated",
		zap.String("question", question),
		zap.Int("count", len(followups)))
	return followups, nil
}

// ParseFollowups splits a model reply into at most limit questions, one per
// non-blank line.
func ParseFollowups(reply string, limit int) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

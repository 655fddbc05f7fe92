// Package search answers family questions from saved interviews.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"family-vault/internal/api"
	"family-vault/internal/interview"
	"family-vault/internal/prompts"
	"family-vault/internal/storage"
)

const (
	searchTemperature = 0.7
	searchMaxTokens   = 300
)

type Responder struct {
	client api.Completer
	logger *zap.Logger
	now    func() time.Time
}

func New(client api.Completer, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{client: client, logger: logger.Named("search"), now: time.Now}
}

// Answer answers question from one interview record.
func (r *Responder) Answer(ctx context.Context, question string, rec *storage.Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("search requires a record")
	}
	return r.AnswerAcross(ctx, question, []*storage.Record{rec})
}

// AnswerAcross answers question from several interview records at once.
func (r *Responder) AnswerAcross(ctx context.Context, question string, recs []*storage.Record) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question: %w", interview.ErrEmptyInput)
	}
	if len(recs) == 0 {
		return prompts.NoInformationAnswer, nil
	}

	names := make([]string, 0, len(recs))
	sections := make([]string, 0, len(recs))
	for _, rec := range recs {
		names = append(names, rec.SubjectName)
		sections = append(sections, prompts.SearchContext(rec.SubjectName, rec.InterviewAnswers(nil), rec.ExtractedData))
	}
	subject := strings.Join(names, ", ")

	answer, err := r.client.Complete(ctx, api.ChatRequest{
		System:      prompts.SearchSystem(subject),
		Prompt:      prompts.Search(subject, strings.Join(sections, "\n"), question, r.now()),
		Temperature: searchTemperature,
		MaxTokens:   searchMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}

	r.logger.Debug("question answered",
		zap.String("subject", subject),
		zap.Int("records", len(recs)))
	return answer, nil
}

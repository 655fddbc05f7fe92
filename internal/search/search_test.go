package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"family-vault/internal/api"
	"family-vault/internal/interview"
	"family-vault/internal/prompts"
	"family-vault/internal/storage"
)

type fakeCompleter struct {
	reply string
	err   error
	last  api.ChatRequest
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, req api.ChatRequest) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

func record(subject, question, answer string) *storage.Record {
	return &storage.Record{
		SubjectName: subject,
		Answers: []storage.AnswerRecord{{
			Question:  question,
			Answer:    answer,
			Followups: []interview.FollowupAnswer{{Question: "When?", Answer: "1946"}},
		}},
		ExtractedData: map[string]any{"places": []any{map[string]any{"location": "Cleveland"}}},
	}
}

func newResponder(c api.Completer) *Responder {
	r := New(c, nil)
	r.now = func() time.Time { return time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC) }
	return r
}

func TestAnswer(t *testing.T) {
	c := &fakeCompleter{reply: "Margaret grew up in Cleveland."}
	r := newResponder(c)

	got, err := r.Answer(context.Background(), " Where did Margaret grow up? ", record("Margaret", "Where did you grow up?", "Cleveland"))
	require.NoError(t, err)
	assert.Equal(t, "Margaret grew up in Cleveland.", got)

	assert.Contains(t, c.last.Prompt, "Today's date: January 12, 2026")
	assert.Contains(t, c.last.Prompt, "Q1: Where did you grow up?")
	assert.Contains(t, c.last.Prompt, "  Follow-up A: 1946")
	assert.Contains(t, c.last.Prompt, `"location": "Cleveland"`)
	assert.Contains(t, c.last.Prompt, `User's question: "Where did Margaret grow up?"`)
	assert.Equal(t, 300, c.last.MaxTokens)
}

func TestAnswerAcrossRecords(t *testing.T) {
	c := &fakeCompleter{reply: "ok"}
	_, err := newResponder(c).AnswerAcross(context.Background(), "Who was born first?", []*storage.Record{
		record("Margaret", "q", "a"),
		record("Robert", "q", "b"),
	})
	require.NoError(t, err)
	assert.Contains(t, c.last.Prompt, "Interview with Margaret")
	assert.Contains(t, c.last.Prompt, "Interview with Robert")
	assert.Contains(t, c.last.System, "Margaret, Robert")
}

func TestAnswerRejectsBlankQuestion(t *testing.T) {
	c := &fakeCompleter{}
	_, err := newResponder(c).Answer(context.Background(), "  ", record("M", "q", "a"))
	assert.ErrorIs(t, err, interview.ErrEmptyInput)
	assert.Zero(t, c.calls)
}

func TestAnswerWithoutRecords(t *testing.T) {
	c := &fakeCompleter{}
	got, err := newResponder(c).AnswerAcross(context.Background(), "Anything?", nil)
	require.NoError(t, err)
	assert.Equal(t, prompts.NoInformationAnswer, got)
	assert.Zero(t, c.calls)
}

func TestAnswerPropagatesFailure(t *testing.T) {
	_, err := newResponder(&fakeCompleter{err: api.ErrExternalService}).Answer(context.Background(), "q?", record("M", "q", "a"))
	assert.ErrorIs(t, err, api.ErrExternalService)
}

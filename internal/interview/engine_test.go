package interview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	followups []string
	err       error
	calls     int
	lastCount int
}

func (f *fakeGenerator) GenerateFollowups(_ context.Context, _, _ string, count int) ([]string, error) {
	f.calls++
	f.lastCount = count
	if f.err != nil {
		return nil, f.err
	}
	return f.followups, nil
}

func testBank(t *testing.T, n int) *QuestionBank {
	t.Helper()
	questions := make([]Question, n)
	for i := range questions {
		questions[i] = Question{Category: "Category", Text: "Question " + string(rune('A'+i))}
	}
	bank, err := NewQuestionBank(questions)
	require.NoError(t, err)
	return bank
}

func newTestEngine(t *testing.T, n int, gen FollowupGenerator) *Engine {
	t.Helper()
	bank := testBank(t, n)
	state, err := NewSession("Margaret Smith", bank, time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	engine, err := NewEngine(bank, state, gen)
	require.NoError(t, err)
	return engine
}

func TestScenarioTwoQuestions(t *testing.T) {
	gen := &fakeGenerator{followups: []string{"F1", "F2"}}
	e := newTestEngine(t, 2, gen)
	ctx := context.Background()

	require.NoError(t, e.SubmitMainAnswer(ctx, "A1"))
	assert.Equal(t, AwaitingFollowupAnswer, e.Phase())
	assert.Equal(t, 0, e.State().CurrentIndex())
	assert.Equal(t, 2, gen.lastCount)

	require.NoError(t, e.SubmitFollowupAnswer("B1"))
	require.NoError(t, e.SubmitFollowupAnswer(""))

	answers := e.State().Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "A1", answers[0].Text)
	assert.Equal(t, []FollowupAnswer{{Question: "F1", Answer: "B1"}}, answers[0].Followups)
	assert.Equal(t, 1, e.State().CurrentIndex())
	assert.Equal(t, AwaitingMainAnswer, e.Phase())

	require.NoError(t, e.SkipCurrentQuestion())
	assert.Equal(t, 2, e.State().CurrentIndex())
	assert.Equal(t, Complete, e.Phase())
	assert.True(t, e.State().Completed())
	assert.Len(t, e.State().Answers(), 1)
	assert.NoError(t, e.State().Validate())
}

func TestSubmitMainAnswerRejectsBlank(t *testing.T) {
	gen := &fakeGenerator{followups: []string{"F1"}}
	e := newTestEngine(t, 2, gen)

	err := e.SubmitMainAnswer(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, AwaitingMainAnswer, e.Phase())
	assert.Equal(t, 0, e.State().CurrentIndex())
	assert.Empty(t, e.State().Answers())
	assert.Zero(t, gen.calls, "generator must not be called for blank input")
}

func TestGeneratorFailureFinalizesWithoutFollowups(t *testing.T) {
	e := newTestEngine(t, 2, &fakeGenerator{err: errors.New("rate limited")})

	require.NoError(t, e.SubmitMainAnswer(context.Background(), "I grew up in Cleveland"))
	assert.Equal(t, AwaitingMainAnswer, e.Phase())
	assert.Equal(t, 1, e.State().CurrentIndex())

	answers := e.State().Answers()
	require.Len(t, answers, 1)
	assert.Empty(t, answers[0].Followups)
}

func TestEmptyGeneratorResultOnLastQuestionCompletes(t *testing.T) {
	e := newTestEngine(t, 1, &fakeGenerator{followups: []string{"", "  "}})

	require.NoError(t, e.SubmitMainAnswer(context.Background(), "answer"))
	assert.Equal(t, Complete, e.Phase())
	assert.Equal(t, 1, e.State().CurrentIndex())
}

func TestNilGeneratorSkipsFollowups(t *testing.T) {
	e := newTestEngine(t, 2, nil)
	require.NoError(t, e.SubmitMainAnswer(context.Background(), "answer"))
	assert.Equal(t, 1, e.State().CurrentIndex())
}

func TestGeneratorResultIsCapped(t *testing.T) {
	e := newTestEngine(t, 2, &fakeGenerator{followups: []string{"F1", "F2", "F3"}})
	require.NoError(t, e.SubmitMainAnswer(context.Background(), "answer"))

	_, _, count, ok := e.State().PendingFollowup()
	require.True(t, ok)
	assert.Equal(t, 2, count)
}

func TestSkipFollowupsKeepsRecorded(t *testing.T) {
	e := newTestEngine(t, 3, &fakeGenerator{followups: []string{"F1", "F2"}})
	require.NoError(t, e.SubmitMainAnswer(context.Background(), "A1"))
	require.NoError(t, e.SubmitFollowupAnswer("B1"))
	require.NoError(t, e.SkipFollowups())

	answers := e.State().Answers()
	require.Len(t, answers, 1)
	assert.Len(t, answers[0].Followups, 1)
	assert.Equal(t, 1, e.State().CurrentIndex())
	assert.Equal(t, AwaitingMainAnswer, e.Phase())
}

func TestCancelFollowupsReturnsToQuestion(t *testing.T) {
	e := newTestEngine(t, 2, &fakeGenerator{followups: []string{"F1"}})
	require.NoError(t, e.SubmitMainAnswer(context.Background(), "draft"))

	draft, ok := e.State().DraftAnswer()
	require.True(t, ok)
	assert.Equal(t, "draft", draft)

	require.NoError(t, e.CancelFollowups())
	assert.Equal(t, AwaitingMainAnswer, e.Phase())
	assert.Equal(t, 0, e.State().CurrentIndex())
	assert.Empty(t, e.State().Answers())
	assert.NoError(t, e.State().Validate())
}

func TestOperationsRejectedInWrongPhase(t *testing.T) {
	e := newTestEngine(t, 1, &fakeGenerator{followups: []string{"F1"}})

	assert.ErrorIs(t, e.SubmitFollowupAnswer("x"), ErrInvalidTransition)
	assert.ErrorIs(t, e.SkipFollowups(), ErrInvalidTransition)
	assert.ErrorIs(t, e.CancelFollowups(), ErrInvalidTransition)
	assert.ErrorIs(t, e.GoToPreviousQuestion(), ErrInvalidTransition)

	require.NoError(t, e.SubmitMainAnswer(context.Background(), "A1"))
	assert.ErrorIs(t, e.SubmitMainAnswer(context.Background(), "again"), ErrInvalidTransition)
	assert.ErrorIs(t, e.SkipCurrentQuestion(), ErrInvalidTransition)
	assert.ErrorIs(t, e.GoToPreviousQuestion(), ErrInvalidTransition)

	require.NoError(t, e.SkipFollowups())
	require.Equal(t, Complete, e.Phase())
	assert.ErrorIs(t, e.SubmitMainAnswer(context.Background(), "late"), ErrInvalidTransition)
	assert.ErrorIs(t, e.SkipCurrentQuestion(), ErrInvalidTransition)
	assert.ErrorIs(t, e.GoToPreviousQuestion(), ErrInvalidTransition)

	var terr *TransitionError
	require.ErrorAs(t, e.SkipCurrentQuestion(), &terr)
	assert.Equal(t, Complete, terr.Phase)
}

func TestGoToPreviousQuestionRemovesAnswer(t *testing.T) {
	e := newTestEngine(t, 3, nil)
	ctx := context.Background()
	require.NoError(t, e.SubmitMainAnswer(ctx, "A1"))
	require.NoError(t, e.SubmitMainAnswer(ctx, "A2"))
	before := e.State().Answers()

	require.NoError(t, e.GoToPreviousQuestion())
	assert.Equal(t, 1, e.State().CurrentIndex())
	require.Len(t, e.State().Answers(), 1)

	require.NoError(t, e.SubmitMainAnswer(ctx, "A2"))
	assert.Equal(t, before, e.State().Answers())
}

func TestGoToPreviousQuestionOverSkippedQuestion(t *testing.T) {
	e := newTestEngine(t, 3, nil)
	ctx := context.Background()
	require.NoError(t, e.SubmitMainAnswer(ctx, "A1"))
	require.NoError(t, e.SkipCurrentQuestion())

	require.NoError(t, e.GoToPreviousQuestion())
	assert.Equal(t, 1, e.State().CurrentIndex())
	assert.Len(t, e.State().Answers(), 1, "skipped question had no answer to remove")
	assert.NoError(t, e.State().Validate())
}

func TestGoToPreviousQuestionBlockedWhileRecording(t *testing.T) {
	e := newTestEngine(t, 2, nil)
	require.NoError(t, e.SubmitMainAnswer(context.Background(), "A1"))

	e.SetRecording(true)
	err := e.GoToPreviousQuestion()
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, e.State().CurrentIndex())

	e.SetRecording(false)
	require.NoError(t, e.GoToPreviousQuestion())
	assert.Equal(t, 0, e.State().CurrentIndex())
}

func TestExhaustingBankCompletes(t *testing.T) {
	sequences := []func(e *Engine) error{
		func(e *Engine) error { return e.SubmitMainAnswer(context.Background(), "answer") },
		func(e *Engine) error {
			if err := e.SubmitMainAnswer(context.Background(), "answer"); err != nil {
				return err
			}
			return e.SkipFollowups()
		},
		func(e *Engine) error {
			if err := e.SubmitMainAnswer(context.Background(), "answer"); err != nil {
				return err
			}
			if err := e.SubmitFollowupAnswer("one"); err != nil {
				return err
			}
			return e.SubmitFollowupAnswer("two")
		},
	}

	e := newTestEngine(t, 5, &fakeGenerator{followups: []string{"F1", "F2"}})
	for i := 0; e.Phase() != Complete; i++ {
		if e.Phase() == AwaitingFollowupAnswer {
			require.NoError(t, e.SkipFollowups())
			continue
		}
		require.NoError(t, sequences[i%len(sequences)](e))
		require.NoError(t, e.State().Validate())
	}

	assert.True(t, e.State().Completed())
	assert.Equal(t, 5, e.State().CurrentIndex())
	assert.Len(t, e.State().Answers(), 5)
}

func TestPromptDescribesFollowup(t *testing.T) {
	e := newTestEngine(t, 2, &fakeGenerator{followups: []string{"Where was Clint born?", "When?"}})
	require.NoError(t, e.SubmitMainAnswer(context.Background(), "My brother Clint"))
	require.NoError(t, e.SubmitFollowupAnswer("Ohio"))

	p := e.Prompt()
	assert.Equal(t, AwaitingFollowupAnswer, p.Phase)
	assert.Equal(t, "Question A", p.Question)
	assert.Equal(t, "When?", p.Followup)
	assert.Equal(t, 1, p.FollowupIndex)
	assert.Equal(t, 2, p.FollowupCount)
}

func TestNewEngineRejectsMismatchedBank(t *testing.T) {
	state, err := NewSession("Subject", testBank(t, 2), time.Now())
	require.NoError(t, err)
	_, err = NewEngine(testBank(t, 3), state, nil)
	assert.Error(t, err)
}

func TestWithFollowupCountZeroDisablesGenerator(t *testing.T) {
	bank := testBank(t, 2)
	state, err := NewSession("Subject", bank, time.Now())
	require.NoError(t, err)
	gen := &fakeGenerator{followups: []string{"F1"}}
	e, err := NewEngine(bank, state, gen, WithFollowupCount(0))
	require.NoError(t, err)

	require.NoError(t, e.SubmitMainAnswer(context.Background(), "answer"))
	assert.Zero(t, gen.calls)
	assert.Equal(t, 1, e.State().CurrentIndex())
}

func TestPreviousFollowupDropsItsAnswer(t *testing.T) {
	e := newTestEngine(t, 2, &fakeGenerator{followups: []string{"F1", "F2"}})
	require.NoError(t, e.SubmitMainAnswer(context.Background(), "A1"))

	assert.ErrorIs(t, e.PreviousFollowup(), ErrInvalidTransition, "first follow-up has no predecessor")

	require.NoError(t, e.SubmitFollowupAnswer("B1"))
	require.NoError(t, e.PreviousFollowup())
	prompt, pos, _, ok := e.State().PendingFollowup()
	require.True(t, ok)
	assert.Equal(t, "F1", prompt)
	assert.Equal(t, 0, pos)

	require.NoError(t, e.SubmitFollowupAnswer("B1 corrected"))
	require.NoError(t, e.SubmitFollowupAnswer("B2"))

	answers := e.State().Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, []FollowupAnswer{
		{Question: "F1", Answer: "B1 corrected"},
		{Question: "F2", Answer: "B2"},
	}, answers[0].Followups)
	assert.NoError(t, e.State().Validate())
}

func TestPreviousFollowupOverSkippedFollowup(t *testing.T) {
	e := newTestEngine(t, 2, &fakeGenerator{followups: []string{"F1", "F2", "F3"}})
	e.followupCount = 3
	require.NoError(t, e.SubmitMainAnswer(context.Background(), "A1"))
	require.NoError(t, e.SubmitFollowupAnswer("B1"))
	require.NoError(t, e.SubmitFollowupAnswer(""))

	require.NoError(t, e.PreviousFollowup())
	_, pos, _, _ := e.State().PendingFollowup()
	assert.Equal(t, 1, pos)

	require.NoError(t, e.SkipFollowups())
	answers := e.State().Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, []FollowupAnswer{{Question: "F1", Answer: "B1"}}, answers[0].Followups,
		"stepping back over a skipped follow-up keeps earlier answers")
}

func TestPreviousFollowupRejectedOutsideCycle(t *testing.T) {
	e := newTestEngine(t, 1, &fakeGenerator{followups: []string{"F1", "F2"}})
	assert.ErrorIs(t, e.PreviousFollowup(), ErrInvalidTransition)

	require.NoError(t, e.SubmitMainAnswer(context.Background(), "A1"))
	require.NoError(t, e.SubmitFollowupAnswer("B1"))
	e.SetRecording(true)
	assert.ErrorIs(t, e.PreviousFollowup(), ErrInvalidTransition)
	e.SetRecording(false)

	require.NoError(t, e.SkipFollowups())
	require.Equal(t, Complete, e.Phase())
	assert.ErrorIs(t, e.PreviousFollowup(), ErrInvalidTransition)
}

func TestReopenLastQuestion(t *testing.T) {
	e := newTestEngine(t, 2, nil)
	ctx := context.Background()
	assert.ErrorIs(t, e.ReopenLastQuestion(), ErrInvalidTransition, "only a complete session can be reopened")

	require.NoError(t, e.SubmitMainAnswer(ctx, "A1"))
	require.NoError(t, e.SubmitMainAnswer(ctx, "A2"))
	require.Equal(t, Complete, e.Phase())

	require.NoError(t, e.ReopenLastQuestion())
	assert.Equal(t, AwaitingMainAnswer, e.Phase())
	assert.Equal(t, 1, e.State().CurrentIndex())
	require.Len(t, e.State().Answers(), 1)
	assert.NoError(t, e.State().Validate())

	require.NoError(t, e.SubmitMainAnswer(ctx, "A2 edited"))
	assert.Equal(t, Complete, e.Phase())
	assert.Equal(t, "A2 edited", e.State().Answers()[1].Text)
}

func TestReopenLastQuestionAfterSkip(t *testing.T) {
	e := newTestEngine(t, 2, nil)
	require.NoError(t, e.SubmitMainAnswer(context.Background(), "A1"))
	require.NoError(t, e.SkipCurrentQuestion())

	e.SetRecording(true)
	assert.ErrorIs(t, e.ReopenLastQuestion(), ErrInvalidTransition)
	e.SetRecording(false)

	require.NoError(t, e.ReopenLastQuestion())
	assert.Equal(t, 1, e.State().CurrentIndex())
	assert.Len(t, e.State().Answers(), 1)
	assert.NoError(t, e.State().Validate())
}

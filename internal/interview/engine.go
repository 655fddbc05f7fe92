package interview

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultFollowupCount is how many follow-ups are requested after each main answer.
const DefaultFollowupCount = 2

// FollowupGenerator produces follow-up questions for an answer.
type FollowupGenerator interface {
	GenerateFollowups(ctx context.Context, question, answer string, count int) ([]string, error)
}

// Engine drives one session through its questions and follow-up cycles.
// It is not safe for concurrent use; callers serialize access per session.
type Engine struct {
	bank          *QuestionBank
	state         *SessionState
	generator     FollowupGenerator
	followupCount int
	recording     bool
	logger        *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFollowupCount sets how many follow-ups to request. Zero disables follow-ups.
func WithFollowupCount(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.followupCount = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine binds a session to its question bank. generator may be nil, in
// which case no follow-ups are asked.
func NewEngine(bank *QuestionBank, state *SessionState, generator FollowupGenerator, opts ...Option) (*Engine, error) {
	if bank == nil || state == nil {
		return nil, fmt.Errorf("engine requires a question bank and a session")
	}
	if state.total != bank.Len() {
		return nil, fmt.Errorf("session expects %d questions, bank has %d", state.total, bank.Len())
	}

	e := &Engine{
		bank:          bank,
		state:         state,
		generator:     generator,
		followupCount: DefaultFollowupCount,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// State returns the session driven by the engine.
func (e *Engine) State() *SessionState {
	return e.state
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	return e.state.phase
}

// SetRecording marks whether audio is being recorded for the current question.
func (e *Engine) SetRecording(recording bool) {
	e.recording = recording
}

// Recording reports whether audio recording is in progress.
func (e *Engine) Recording() bool {
	return e.recording
}

// SubmitMainAnswer records the answer to the current question and asks for
// follow-ups. When follow-up generation fails or returns nothing, the answer
// is finalized immediately.
func (e *Engine) SubmitMainAnswer(ctx context.Context, text string) error {
	if e.state.phase != AwaitingMainAnswer {
		return &TransitionError{Op: "submit main answer", Phase: e.state.phase}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("main answer: %w", ErrEmptyInput)
	}

	question, _ := e.bank.At(e.state.index)
	prompts := e.requestFollowups(ctx, question, text)
	if len(prompts) == 0 {
		e.finalize(Answer{
			QuestionIndex: question.Index,
			Question:      question.Text,
			Category:      question.Category,
			Text:          text,
			Followups:     []FollowupAnswer{},
		})
		return nil
	}

	e.state.cycle = &followupCycle{
		prompts:    prompts,
		mainAnswer: text,
		recorded:   []FollowupAnswer{},
		answered:   []int{},
	}
	e.state.phase = AwaitingFollowupAnswer
	return nil
}

// SubmitFollowupAnswer records an answer to the pending follow-up. A blank
// answer skips the follow-up without recording it.
func (e *Engine) SubmitFollowupAnswer(text string) error {
	if e.state.phase != AwaitingFollowupAnswer {
		return &TransitionError{Op: "submit follow-up answer", Phase: e.state.phase}
	}

	cycle := e.state.cycle
	if text = strings.TrimSpace(text); text != "" {
		cycle.recorded = append(cycle.recorded, FollowupAnswer{
			Question: cycle.prompts[cycle.current],
			Answer:   text,
		})
		cycle.answered = append(cycle.answered, cycle.current)
	}

	if cycle.current+1 < len(cycle.prompts) {
		cycle.current++
		return nil
	}
	e.finalizeCycle()
	return nil
}

// SkipFollowups ends the follow-up cycle, keeping follow-ups answered so far.
func (e *Engine) SkipFollowups() error {
	if e.state.phase != AwaitingFollowupAnswer {
		return &TransitionError{Op: "skip follow-ups", Phase: e.state.phase}
	}
	e.finalizeCycle()
	return nil
}

// CancelFollowups abandons the follow-up cycle and the draft main answer,
// returning to the same main question.
func (e *Engine) CancelFollowups() error {
	if e.state.phase != AwaitingFollowupAnswer {
		return &TransitionError{Op: "cancel follow-ups", Phase: e.state.phase}
	}
	e.state.cycle = nil
	e.state.phase = AwaitingMainAnswer
	return nil
}

// PreviousFollowup steps back to the previous follow-up of the cycle and
// drops the answer recorded for it, if any.
func (e *Engine) PreviousFollowup() error {
	if e.state.phase != AwaitingFollowupAnswer {
		return &TransitionError{Op: "go to previous follow-up", Phase: e.state.phase}
	}
	cycle := e.state.cycle
	if cycle.current == 0 {
		return &TransitionError{Op: "go to previous follow-up", Phase: e.state.phase, Reason: "already at the first follow-up"}
	}
	if e.recording {
		return &TransitionError{Op: "go to previous follow-up", Phase: e.state.phase, Reason: "audio recording in progress"}
	}

	cycle.current--
	if n := len(cycle.answered); n > 0 && cycle.answered[n-1] == cycle.current {
		cycle.recorded = cycle.recorded[:n-1]
		cycle.answered = cycle.answered[:n-1]
	}
	return nil
}

// ReopenLastQuestion leaves Complete for the last question and discards its
// answer so it can be edited.
func (e *Engine) ReopenLastQuestion() error {
	if e.state.phase != Complete {
		return &TransitionError{Op: "reopen last question", Phase: e.state.phase}
	}
	if e.recording {
		return &TransitionError{Op: "reopen last question", Phase: e.state.phase, Reason: "audio recording in progress"}
	}

	e.state.index = e.bank.Len() - 1
	e.dropAnswer(e.state.index)
	e.state.phase = AwaitingMainAnswer
	return nil
}

// GoToPreviousQuestion steps back one question and discards its answer,
// including recorded follow-ups, so it can be answered again.
func (e *Engine) GoToPreviousQuestion() error {
	if e.state.phase != AwaitingMainAnswer {
		return &TransitionError{Op: "go to previous question", Phase: e.state.phase}
	}
	if e.state.index == 0 {
		return &TransitionError{Op: "go to previous question", Phase: e.state.phase, Reason: "already at the first question"}
	}
	if e.recording {
		return &TransitionError{Op: "go to previous question", Phase: e.state.phase, Reason: "audio recording in progress"}
	}

	e.state.index--
	e.dropAnswer(e.state.index)
	return nil
}

func (e *Engine) dropAnswer(index int) {
	for i := len(e.state.answers) - 1; i >= 0; i-- {
		if e.state.answers[i].QuestionIndex == index {
			e.state.answers = append(e.state.answers[:i], e.state.answers[i+1:]...)
			return
		}
	}
}

// SkipCurrentQuestion moves past the current question without answering it.
func (e *Engine) SkipCurrentQuestion() error {
	if e.state.phase != AwaitingMainAnswer {
		return &TransitionError{Op: "skip question", Phase: e.state.phase}
	}
	e.advance()
	return nil
}

// Prompt describes what should be asked next.
type Prompt struct {
	Phase         Phase  `json:"phase"`
	QuestionIndex int    `json:"question_index"`
	QuestionCount int    `json:"question_count"`
	Category      string `json:"category,omitempty"`
	Question      string `json:"question,omitempty"`
	Followup      string `json:"followup,omitempty"`
	FollowupIndex int    `json:"followup_index,omitempty"`
	FollowupCount int    `json:"followup_count,omitempty"`
}

// Prompt returns the question or follow-up awaiting an answer.
func (e *Engine) Prompt() Prompt {
	p := Prompt{
		Phase:         e.state.phase,
		QuestionIndex: e.state.index,
		QuestionCount: e.bank.Len(),
	}
	if q, ok := e.bank.At(e.state.index); ok {
		p.Category = q.Category
		p.Question = q.Text
	}
	if followup, pos, count, ok := e.state.PendingFollowup(); ok {
		p.Followup = followup
		p.FollowupIndex = pos
		p.FollowupCount = count
	}
	return p
}

func (e *Engine) requestFollowups(ctx context.Context, question Question, answer string) []string {
	if e.generator == nil || e.followupCount == 0 {
		return nil
	}

	generated, err := e.generator.GenerateFollowups(ctx, question.Text, answer, e.followupCount)
	if err != nil {
		e.logger.Warn("follow-up generation failed, continuing without follow-ups",
			zap.Int("question", question.Index),
			zap.Error(err))
		return nil
	}

	prompts := make([]string, 0, len(generated))
	for _, p := range generated {
		if p = strings.TrimSpace(p); p != "" {
			prompts = append(prompts, p)
		}
		if len(prompts) == e.followupCount {
			break
		}
	}
	return prompts
}

func (e *Engine) finalizeCycle() {
	cycle := e.state.cycle
	question, _ := e.bank.At(e.state.index)
	e.finalize(Answer{
		QuestionIndex: question.Index,
		Question:      question.Text,
		Category:      question.Category,
		Text:          cycle.mainAnswer,
		Followups:     cycle.recorded,
	})
}

func (e *Engine) finalize(answer Answer) {
	e.state.answers = append(e.state.answers, answer)
	e.state.cycle = nil
	e.advance()
}

func (e *Engine) advance() {
	e.state.index++
	if e.state.index >= e.bank.Len() {
		e.state.index = e.bank.Len()
		e.state.phase = Complete
		return
	}
	e.state.phase = AwaitingMainAnswer
}

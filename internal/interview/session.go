package interview

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Phase is the engine state of a session.
type Phase int

const (
	AwaitingMainAnswer Phase = iota
	AwaitingFollowupAnswer
	Complete
)

func (p Phase) String() string {
	switch p {
	case AwaitingMainAnswer:
		return "awaiting_main_answer"
	case AwaitingFollowupAnswer:
		return "awaiting_followup_answer"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name written by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{AwaitingMainAnswer, AwaitingFollowupAnswer, Complete} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// FollowupAnswer is one answered follow-up question.
type FollowupAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Answer is a finalized main answer with its follow-ups.
type Answer struct {
	QuestionIndex int              `json:"question_index"`
	Question      string           `json:"question"`
	Category      string           `json:"category"`
	Text          string           `json:"answer"`
	Followups     []FollowupAnswer `json:"followups"`
}

func (a Answer) clone() Answer {
	out := a
	out.Followups = make([]FollowupAnswer, len(a.Followups))
	copy(out.Followups, a.Followups)
	return out
}

// followupCycle exists only while the session is in AwaitingFollowupAnswer.
// answered[i] is the prompt position that recorded[i] answers.
type followupCycle struct {
	prompts    []string
	current    int
	mainAnswer string
	recorded   []FollowupAnswer
	answered   []int
}

// SessionState is the resumable progress of one interview.
// Fields are mutated only by Engine operations.
type SessionState struct {
	subject   string
	createdAt time.Time
	total     int
	answers   []Answer
	index     int
	phase     Phase
	cycle     *followupCycle
	location  string
}

// NewSession starts a fresh session for subject.
func NewSession(subject string, bank *QuestionBank, now time.Time) (*SessionState, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, fmt.Errorf("subject name: %w", ErrEmptyInput)
	}

	return &SessionState{
		subject:   subject,
		createdAt: now,
		total:     bank.Len(),
		answers:   []Answer{},
		phase:     AwaitingMainAnswer,
	}, nil
}

// ResumeParams carries persisted progress used to rebuild a session.
type ResumeParams struct {
	Subject      string
	CreatedAt    time.Time
	Answers      []Answer
	CurrentIndex int
	Location     string
}

// Resume rebuilds a session from persisted progress. Answers are ordered by
// question index and the current index is never behind the last answered question.
func Resume(params ResumeParams, bank *QuestionBank) (*SessionState, error) {
	subject := strings.TrimSpace(params.Subject)
	if subject == "" {
		return nil, fmt.Errorf("subject name: %w", ErrEmptyInput)
	}

	answers := make([]Answer, 0, len(params.Answers))
	seen := make(map[int]bool, len(params.Answers))
	for _, a := range params.Answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= bank.Len() {
			return nil, fmt.Errorf("answer references question %d outside bank of %d", a.QuestionIndex, bank.Len())
		}
		if seen[a.QuestionIndex] {
			return nil, fmt.Errorf("duplicate answer for question %d", a.QuestionIndex)
		}
		seen[a.QuestionIndex] = true
		answers = append(answers, a.clone())
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].QuestionIndex < answers[j].QuestionIndex
	})

	index := params.CurrentIndex
	if n := len(answers); n > 0 && index <= answers[n-1].QuestionIndex {
		index = answers[n-1].QuestionIndex + 1
	}
	if index < 0 {
		index = 0
	}
	if index > bank.Len() {
		index = bank.Len()
	}

	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	s := &SessionState{
		subject:   subject,
		createdAt: createdAt,
		total:     bank.Len(),
		answers:   answers,
		index:     index,
		phase:     AwaitingMainAnswer,
		location:  params.Location,
	}
	if index == bank.Len() {
		s.phase = Complete
	}
	return s, nil
}

func (s *SessionState) Subject() string      { return s.subject }
func (s *SessionState) CreatedAt() time.Time { return s.createdAt }
func (s *SessionState) TotalQuestions() int  { return s.total }
func (s *SessionState) CurrentIndex() int    { return s.index }
func (s *SessionState) Phase() Phase         { return s.phase }
func (s *SessionState) Completed() bool      { return s.phase == Complete }
func (s *SessionState) Location() string     { return s.location }

// Answers returns a copy of the finalized answers in question order.
func (s *SessionState) Answers() []Answer {
	out := make([]Answer, len(s.answers))
	for i, a := range s.answers {
		out[i] = a.clone()
	}
	return out
}

// FollowupCount returns the number of follow-up answers across finalized answers.
func (s *SessionState) FollowupCount() int {
	n := 0
	for _, a := range s.answers {
		n += len(a.Followups)
	}
	return n
}

// PendingFollowup returns the follow-up currently awaiting an answer.
func (s *SessionState) PendingFollowup() (prompt string, position, count int, ok bool) {
	if s.cycle == nil {
		return "", 0, 0, false
	}
	return s.cycle.prompts[s.cycle.current], s.cycle.current, len(s.cycle.prompts), true
}

// DraftAnswer returns the main answer held during a follow-up cycle.
func (s *SessionState) DraftAnswer() (string, bool) {
	if s.cycle == nil {
		return "", false
	}
	return s.cycle.mainAnswer, true
}

// BindLocation records where the session is persisted. A bound session can
// only be re-bound to the same location.
func (s *SessionState) BindLocation(location string) error {
	if location == "" {
		return fmt.Errorf("location: %w", ErrEmptyInput)
	}
	if s.location != "" && s.location != location {
		return fmt.Errorf("session already stored at %s, refusing %s", s.location, location)
	}
	s.location = location
	return nil
}

// Validate checks the structural invariants of the session.
func (s *SessionState) Validate() error {
	if s.index < 0 || s.index > s.total {
		return fmt.Errorf("current question %d outside 0..%d", s.index, s.total)
	}
	if (s.cycle != nil) != (s.phase == AwaitingFollowupAnswer) {
		return fmt.Errorf("follow-up cycle does not match phase %s", s.phase)
	}
	if s.cycle != nil && (s.cycle.current < 0 || s.cycle.current >= len(s.cycle.prompts)) {
		return fmt.Errorf("follow-up %d outside 0..%d", s.cycle.current, len(s.cycle.prompts)-1)
	}
	if s.phase == Complete && s.index != s.total {
		return fmt.Errorf("complete session at question %d of %d", s.index, s.total)
	}
	if s.phase != Complete && s.index == s.total {
		return fmt.Errorf("session exhausted questions but is %s", s.phase)
	}
	prev := -1
	for _, a := range s.answers {
		if a.QuestionIndex <= prev {
			return fmt.Errorf("answers out of order at question %d", a.QuestionIndex)
		}
		if a.QuestionIndex >= s.index {
			return fmt.Errorf("answer for question %d ahead of current question %d", a.QuestionIndex, s.index)
		}
		prev = a.QuestionIndex
	}
	return nil
}

package interview

import (
	"fmt"
	"strings"
)

// Question is one core interview question.
type Question struct {
	Index    int    `json:"index"`
	Category string `json:"category"`
	Text     string `json:"question"`
}

// QuestionBank is the fixed, ordered set of core questions.
// It is built once at startup and never modified.
type QuestionBank struct {
	questions []Question
}

// NewQuestionBank builds a bank from the given questions, assigning indices in order.
func NewQuestionBank(questions []Question) (*QuestionBank, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}

	bank := &QuestionBank{questions: make([]Question, 0, len(questions))}
	for i, q := range questions {
		text := strings.TrimSpace(q.Text)
		category := strings.TrimSpace(q.Category)
		if text == "" {
			return nil, fmt.Errorf("question %d has no text", i+1)
		}
		if category == "" {
			return nil, fmt.Errorf("question %d has no category", i+1)
		}
		bank.questions = append(bank.questions, Question{
			Index:    i,
			Category: category,
			Text:     text,
		})
	}

	return bank, nil
}

// Len returns the number of questions.
func (b *QuestionBank) Len() int {
	return len(b.questions)
}

// At returns the question at index i.
func (b *QuestionBank) At(i int) (Question, bool) {
	if i < 0 || i >= len(b.questions) {
		return Question{}, false
	}
	return b.questions[i], true
}

// All returns a copy of the questions in order.
func (b *QuestionBank) All() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// IndexOf returns the index of the question with the given text, or -1.
func (b *QuestionBank) IndexOf(text string) int {
	text = strings.TrimSpace(text)
	for _, q := range b.questions {
		if q.Text == text {
			return q.Index
		}
	}
	return -1
}

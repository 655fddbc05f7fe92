package prompts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"family-vault/internal/interview"
)

var sampleAnswers = []interview.Answer{
	{
		QuestionIndex: 0,
		Question:      "Tell me about your siblings.",
		Category:      "Family Tree",
		Text:          "My brother Clint was the oldest.",
		Followups:     []interview.FollowupAnswer{{Question: "Where was Clint born?", Answer: "Dayton"}},
	},
	{QuestionIndex: 2, Question: "Where did you grow up?", Category: "Childhood", Text: "Cleveland"},
}

func TestTranscript(t *testing.T) {
	got := Transcript("Margaret", sampleAnswers)
	want := "Interview with Margaret\n\n" +
		"Question 1: Tell me about your siblings.\n" +
		"Answer: My brother Clint was the oldest.\n" +
		"  Follow-up 1: Where was Clint born?\n" +
		"  Answer: Dayton\n\n" +
		"Question 2: Where did you grow up?\n" +
		"Answer: Cleveland\n\n"
	assert.Equal(t, want, got)
}

func TestFollowupPrompt(t *testing.T) {
	p := Followup("Where did you grow up?", "Cleveland", 2)
	assert.Contains(t, p, `Original question: "Where did you grow up?"`)
	assert.Contains(t, p, `Parent's answer: "Cleveland"`)
	assert.Contains(t, p, "generate 2 thoughtful follow-up questions")
	assert.Contains(t, p, "one per line")
}

func TestExtractionPromptListsEveryKey(t *testing.T) {
	p := Extraction("Margaret", Transcript("Margaret", sampleAnswers))
	for _, key := range ExtractionKeys {
		assert.Contains(t, p, `"`+key+`"`)
	}
	assert.Contains(t, p, "Relationship to Margaret")
	assert.Contains(t, p, "Question 1: Tell me about your siblings.")
}

func TestSearchPrompt(t *testing.T) {
	ctx := SearchContext("Margaret", sampleAnswers, map[string]any{"places": []any{"Cleveland"}})
	assert.Contains(t, ctx, "=== Interview Responses ===")
	assert.Contains(t, ctx, "  Follow-up Q1: Where was Clint born?")
	assert.Contains(t, ctx, "=== Extracted Structured Data ===")

	p := Search("Margaret", ctx, "Where was Clint born?", time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, p, "Today's date: January 12, 2026")
	assert.Contains(t, p, `User's question: "Where was Clint born?"`)
	assert.Contains(t, p, NoInformationAnswer)
	assert.Contains(t, SearchSystem("Margaret"), "Margaret's story")
}

func TestSearchContextWithoutExtraction(t *testing.T) {
	ctx := SearchContext("Margaret", nil, nil)
	assert.Equal(t, "Interview with Margaret\n\n", ctx)
}

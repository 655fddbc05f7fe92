package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"family-vault/internal/interview"
)

// NoInformationAnswer is what the model is told to say when the interview
// does not cover a question.
const NoInformationAnswer = "I don't have information about that in this interview."

// SearchSystem sets the tone for answers about subject.
func SearchSystem(subject string) string {
	return fmt.Sprintf("You are an AI assistant helping families access their parent's preserved memories. "+
		"You answer questions concisely and directly based solely on interview data provided. "+
		"You never mention sources, citations, or where information came from. "+
		"You are warm and natural in your responses about %s's story.", subject)
}

// SearchContext renders one interview and its extracted data for a question.
func SearchContext(subject string, answers []interview.Answer, extracted map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interview with %s\n\n", subject)

	if len(answers) > 0 {
		b.WriteString("=== Interview Responses ===\n\n")
		for i, a := range answers {
			fmt.Fprintf(&b, "Q%d: %s\n", i+1, a.Question)
			fmt.Fprintf(&b, "A: %s\n", a.Text)
			for j, f := range a.Followups {
				fmt.Fprintf(&b, "  Follow-up Q%d: %s\n", j+1, f.Question)
				fmt.Fprintf(&b, "  Follow-up A: %s\n", f.Answer)
			}
			b.WriteString("\n")
		}
	}

	if len(extracted) > 0 {
		if data, err := json.MarshalIndent(extracted, "", "  "); err == nil {
			b.WriteString("\n=== Extracted Structured Data ===\n\n")
			b.Write(data)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Search asks a question about the interviews in context.
func Search(subject, context, question string, today time.Time) string {
	date := today.Format("January 02, 2006")
	return fmt.Sprintf(`You are helping a family access their parent's preserved memories and stories.

Today's date: %[1]s

Context - Interview data for %[2]s:
%[3]s

User's question: "%[4]s"

Instructions:
1. Search through the interview responses and extracted data above
2. Find information relevant to answering the question
3. Answer CONCISELY and DIRECTLY, just state the facts
4. If asked about age, CALCULATE it from birth year and today's date (%[1]s)
5. DO NOT mention where the information came from (no "In Q2" or "during the interview")
6. DO NOT include citations or explain the source
7. DO NOT use quotes or reference specific questions
8. Answer naturally and conversationally
9. If the information isn't in the interview, say "%[5]s"
10. Keep your answer to 1-3 sentences unless more detail is clearly needed

Examples:
Question: "What year was John born?"
GOOD: "John was born in 1967."

Question: "How old is John?"
GOOD: "John is 58 years old. He was born in 1967."

Provide your concise answer below:`, date, subject, context, question, NoInformationAnswer)
}

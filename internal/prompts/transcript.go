package prompts

import (
	"fmt"
	"strings"

	"family-vault/internal/interview"
)

// Transcript renders the answers of an interview as plain text for the model.
func Transcript(subject string, answers []interview.Answer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interview with %s\n\n", subject)

	for i, a := range answers {
		fmt.Fprintf(&b, "Question %d: %s\n", i+1, a.Question)
		fmt.Fprintf(&b, "Answer: %s\n", a.Text)
		for j, f := range a.Followups {
			fmt.Fprintf(&b, "  Follow-up %d: %s\n", j+1, f.Question)
			fmt.Fprintf(&b, "  Answer: %s\n", f.Answer)
		}
		b.WriteString("\n")
	}

	return b.String()
}

package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"family-vault/internal/interview"
	"family-vault/internal/session"
	"family-vault/internal/storage"
	"family-vault/internal/translation"
)

// FormatPrompt renders what the user should answer next.
func FormatPrompt(v session.View) string {
	p := v.Prompt
	switch p.Phase {
	case interview.Complete:
		return fmt.Sprintf("🎉 All %d questions are done!\n\nUse /finish to save the interview with %s, or /back to edit the last answer.", p.QuestionCount, v.Subject)
	case interview.AwaitingFollowupAnswer:
		followup := v.DisplayFollow
		if followup == "" {
			followup = p.Followup
		}
		return fmt.Sprintf("💬 *Follow-up %d/%d*\n\n%s\n\n_/pass to skip this one, /next to move on, /back to go back_",
			p.FollowupIndex+1, p.FollowupCount, followup)
	default:
		question := v.DisplayText
		if question == "" {
			question = p.Question
		}
		return fmt.Sprintf("❓ *Question %d/%d* · %s\n\n%s", p.QuestionIndex+1, p.QuestionCount, p.Category, question)
	}
}

func FormatStatus(v session.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Interview with %s*\n\n", v.Subject)
	if v.Completed {
		fmt.Fprintf(&b, "All %d questions answered\n", v.Prompt.QuestionCount)
	} else {
		fmt.Fprintf(&b, "Question %d of %d (%s)\n", v.Prompt.QuestionIndex+1, v.Prompt.QuestionCount, v.Prompt.Category)
	}
	fmt.Fprintf(&b, "Answers: %d\nFollow-ups: %d\nLanguage: %s\n", v.AnswerCount, v.FollowupCount, v.Language)
	if v.RecordID != "" {
		fmt.Fprintf(&b, "Saved as: `%s`\n", v.RecordID)
	} else {
		b.WriteString("Not saved yet\n")
	}
	return b.String()
}

func FormatEntries(entries []storage.Entry) string {
	if len(entries) == 0 {
		return "No saved interviews yet. Use /start <name> to record the first one."
	}
	var b strings.Builder
	b.WriteString("📚 *Saved interviews*\n\n")
	for _, e := range entries {
		status := "⏸ in progress"
		if e.Completed {
			status = "✅ complete"
		}
		fmt.Fprintf(&b, "*%s* - %s, %d answers\n`%s`\n\n", e.SubjectName, status, e.TotalAnswers, e.ID)
	}
	b.WriteString("Continue one with /resume <id>.")
	return b.String()
}

func FormatLanguages(languages []translation.Language) string {
	names := make([]string, len(languages))
	for i, l := range languages {
		names[i] = fmt.Sprintf("%s (%s)", l.Name, l.Code)
	}
	return "🌍 *Languages*\n\n" + strings.Join(names, "\n") + "\n\nUse /language <name or code>."
}

// SplitMessage breaks text into chunks of at most max bytes, preferring
// line boundaries.
func SplitMessage(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > max {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			cut := max
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if current.Len()+len(line) > max {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

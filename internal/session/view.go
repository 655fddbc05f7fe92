package session

import (
	"context"
	"strings"

	"family-vault/internal/interview"
	"family-vault/internal/storage"
	"family-vault/internal/translation"
)

// View is what a front end shows for a session.
type View struct {
	ID             string             `json:"id"`
	Subject        string             `json:"subject_name"`
	Language       string             `json:"language"`
	Prompt         interview.Prompt   `json:"prompt"`
	DisplayText    string             `json:"display_question,omitempty"`
	DisplayFollow  string             `json:"display_followup,omitempty"`
	DraftAnswer    string             `json:"draft_answer,omitempty"`
	Completed      bool               `json:"completed"`
	Recording      bool               `json:"recording"`
	AnswerCount    int                `json:"answer_count"`
	FollowupCount  int                `json:"followup_count"`
	Location       string             `json:"location,omitempty"`
	RecordID       string             `json:"record_id,omitempty"`
	Answers        []interview.Answer `json:"answers"`
	HasExtraction  bool               `json:"has_extraction"`
	CanGoBack      bool               `json:"can_go_back"`
}

// SaveResult reports where a session was written.
type SaveResult struct {
	View     View   `json:"session"`
	Location string `json:"location"`
	RecordID string `json:"record_id"`
}

// view renders e. Callers hold e.mu.
func (m *Manager) view(ctx context.Context, e *entry) View {
	state := e.engine.State()
	prompt := e.engine.Prompt()

	v := View{
		ID:            e.id,
		Subject:       state.Subject(),
		Language:      e.language,
		Prompt:        prompt,
		Completed:     state.Completed(),
		Recording:     e.engine.Recording(),
		AnswerCount:   len(state.Answers()),
		FollowupCount: state.FollowupCount(),
		Location:      state.Location(),
		Answers:       state.Answers(),
		HasExtraction: len(e.extracted) > 0,
		CanGoBack:     prompt.Phase == interview.AwaitingMainAnswer && state.CurrentIndex() > 0 && !e.engine.Recording(),
	}
	if v.Location != "" {
		v.RecordID = storage.IDOf(v.Location)
	}
	if draft, ok := state.DraftAnswer(); ok {
		v.DraftAnswer = draft
	}
	if !v.Completed {
		v.DisplayText = m.translate(ctx, e, prompt.Question)
		v.DisplayFollow = m.translate(ctx, e, prompt.Followup)
	}
	return v
}

// translate returns text in the session language, caching results per entry.
func (m *Manager) translate(ctx context.Context, e *entry, text string) string {
	if text == "" || e.language == translation.English || m.translator == nil {
		return text
	}

	key := e.language + "\x00" + text
	if cached, ok := e.translations[key]; ok {
		return cached
	}
	out := m.translator.Translate(ctx, text, e.language)
	if out != text {
		e.translations[key] = out
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

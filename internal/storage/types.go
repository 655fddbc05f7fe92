package storage

import (
	"time"

	"family-vault/internal/interview"
)

// AppVersion is written into every record's metadata.
const AppVersion = "1.0"

// Record is the persisted form of one interview.
type Record struct {
	SubjectName   string         `json:"subject_name"`
	CreatedAt     time.Time      `json:"created_at"`
	Answers       []AnswerRecord `json:"answers"`
	ExtractedData map[string]any `json:"extracted_data"`
	Metadata      Metadata       `json:"metadata"`
}

// AnswerRecord is one finalized answer. QuestionIndex is nil for records
// written before the index was stored.
type AnswerRecord struct {
	QuestionIndex *int                       `json:"question_index,omitempty"`
	Question      string                     `json:"question"`
	Category      string                     `json:"category"`
	Answer        string                     `json:"answer"`
	Followups     []interview.FollowupAnswer `json:"followups"`
}

type Metadata struct {
	Completed       bool      `json:"completed"`
	CurrentQuestion int       `json:"current_question"`
	MaxQuestions    int       `json:"max_questions"`
	SavedAt         time.Time `json:"saved_at"`
	TotalAnswers    int       `json:"total_answers"`
	TotalFollowups  int       `json:"total_followups"`
	AppVersion      string    `json:"app_version"`
}

// Entry summarizes a stored record for listings.
type Entry struct {
	ID             string    `json:"id"`
	Location       string    `json:"location"`
	SubjectName    string    `json:"subject_name"`
	Completed      bool      `json:"completed"`
	TotalAnswers   int       `json:"total_answers"`
	TotalFollowups int       `json:"total_followups"`
	SavedAt        time.Time `json:"saved_at"`
	ModifiedAt     time.Time `json:"modified_at"`
}

// legacyRecord is the layout written by the first version of the app.
type legacyRecord struct {
	ParentName    string `json:"parent_name"`
	InterviewDate string `json:"interview_date"`
	InterviewData struct {
		QuestionsAndAnswers []AnswerRecord `json:"questions_and_answers"`
	} `json:"interview_data"`
	ExtractedData map[string]any `json:"extracted_data"`
	Metadata      struct {
		Completed       bool   `json:"completed"`
		CurrentQuestion int    `json:"current_question"`
		MaxQuestions    int    `json:"max_questions"`
		SavedAt         string `json:"saved_at"`
		AppVersion      string `json:"app_version"`
	} `json:"metadata"`
}

// NewRecord captures the finalized progress of a session.
func NewRecord(state *interview.SessionState, extracted map[string]any, savedAt time.Time) *Record {
	answers := state.Answers()
	rec := &Record{
		SubjectName:   state.Subject(),
		CreatedAt:     state.CreatedAt(),
		Answers:       make([]AnswerRecord, len(answers)),
		ExtractedData: extracted,
		Metadata: Metadata{
			Completed:       state.Completed(),
			CurrentQuestion: state.CurrentIndex(),
			MaxQuestions:    state.TotalQuestions(),
			SavedAt:         savedAt,
			TotalAnswers:    len(answers),
			TotalFollowups:  state.FollowupCount(),
			AppVersion:      AppVersion,
		},
	}
	for i, a := range answers {
		index := a.QuestionIndex
		rec.Answers[i] = AnswerRecord{
			QuestionIndex: &index,
			Question:      a.Question,
			Category:      a.Category,
			Answer:        a.Text,
			Followups:     a.Followups,
		}
	}
	return rec
}

// InterviewAnswers converts stored answers back to engine answers. Answers
// without an index are matched to the bank by question text, then by position.
func (r *Record) InterviewAnswers(bank *interview.QuestionBank) []interview.Answer {
	out := make([]interview.Answer, len(r.Answers))
	for i, a := range r.Answers {
		index := i
		switch {
		case a.QuestionIndex != nil:
			index = *a.QuestionIndex
		case bank != nil && bank.IndexOf(a.Question) >= 0:
			index = bank.IndexOf(a.Question)
		}
		followups := a.Followups
		if followups == nil {
			followups = []interview.FollowupAnswer{}
		}
		out[i] = interview.Answer{
			QuestionIndex: index,
			Question:      a.Question,
			Category:      a.Category,
			Text:          a.Answer,
			Followups:     followups,
		}
	}
	return out
}

// ResumeParams builds the parameters needed to rebuild a session from r.
func (r *Record) ResumeParams(bank *interview.QuestionBank, location string) interview.ResumeParams {
	return interview.ResumeParams{
		Subject:      r.SubjectName,
		CreatedAt:    r.CreatedAt,
		Answers:      r.InterviewAnswers(bank),
		CurrentIndex: r.Metadata.CurrentQuestion,
		Location:     location,
	}
}

func (l *legacyRecord) upgrade() *Record {
	rec := &Record{
		SubjectName:   l.ParentName,
		CreatedAt:     parseLegacyTime(l.InterviewDate),
		Answers:       l.InterviewData.QuestionsAndAnswers,
		ExtractedData: l.ExtractedData,
		Metadata: Metadata{
			Completed:       l.Metadata.Completed,
			CurrentQuestion: l.Metadata.CurrentQuestion,
			MaxQuestions:    l.Metadata.MaxQuestions,
			SavedAt:         parseLegacyTime(l.Metadata.SavedAt),
			TotalAnswers:    len(l.InterviewData.QuestionsAndAnswers),
			AppVersion:      l.Metadata.AppVersion,
		},
	}
	for _, a := range rec.Answers {
		rec.Metadata.TotalFollowups += len(a.Followups)
	}
	return rec
}

// parseLegacyTime accepts the ISO timestamps written without a zone.
func parseLegacyTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

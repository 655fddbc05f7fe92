package config

import "family-vault/internal/interview"

// Config is the interview definition loaded from YAML.
type Config struct {
	InterviewConfig InterviewConfig `yaml:"interview_config"`
	CoreQuestions   []CoreQuestion  `yaml:"core_questions"`
}

// InterviewConfig holds the general interview settings.
type InterviewConfig struct {
	FollowupsPerAnswer int  `yaml:"followups_per_answer"`
	ExtractOnSave      bool `yaml:"extract_on_save"`
}

type CoreQuestion struct {
	Category string `yaml:"category"`
	Question string `yaml:"question"`
}

func (c *Config) GetFollowupsPerAnswer() int {
	return c.InterviewConfig.FollowupsPerAnswer
}

func (c *Config) GetTotalQuestions() int {
	return len(c.CoreQuestions)
}

// QuestionBank builds the immutable bank from the configured questions.
func (c *Config) QuestionBank() (*interview.QuestionBank, error) {
	questions := make([]interview.Question, len(c.CoreQuestions))
	for i, q := range c.CoreQuestions {
		questions[i] = interview.Question{Category: q.Category, Text: q.Question}
	}
	return interview.NewQuestionBank(questions)
}

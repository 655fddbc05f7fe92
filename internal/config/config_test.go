package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledInterview(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "interview.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.GetFollowupsPerAnswer())
	assert.True(t, cfg.InterviewConfig.ExtractOnSave)
	assert.Equal(t, 10, cfg.GetTotalQuestions())

	bank, err := cfg.QuestionBank()
	require.NoError(t, err)
	assert.Equal(t, 10, bank.Len())
	first, ok := bank.At(0)
	require.True(t, ok)
	assert.Equal(t, "Family Tree", first.Category)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
core_questions:
  - category: Childhood
    question: Where did you grow up?
`))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.InterviewConfig.FollowupsPerAnswer)
	assert.True(t, cfg.InterviewConfig.ExtractOnSave)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty bank":       "interview_config:\n  followups_per_answer: 2\n",
		"negative":         "interview_config:\n  followups_per_answer: -1\ncore_questions:\n  - {category: a, question: b}\n",
		"missing category": "core_questions:\n  - {category: '', question: b}\n",
		"missing text":     "core_questions:\n  - {category: a, question: '  '}\n",
		"duplicate":        "core_questions:\n  - {category: a, question: b}\n  - {category: c, question: b}\n",
		"bad yaml":         "core_questions: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadAppConfigFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STORAGE_DIR", "/tmp/profiles")

	cfg := LoadAppConfig()
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/tmp/profiles", cfg.Storage.Dir)
	assert.Equal(t, "whisper-1", cfg.OpenAI.TranscriptionModel)
	assert.NoError(t, cfg.Validate())
}

func TestAppConfigValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("APP_ENV", "staging")
	cfg := LoadAppConfig()
	assert.Error(t, cfg.Validate())

	t.Setenv("APP_ENV", "development")
	cfg = LoadAppConfig()
	cfg.OpenAI.APIKey = ""
	assert.ErrorContains(t, cfg.Validate(), "OPENAI_API_KEY")

	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.Temperature = 3
	assert.Error(t, cfg.Validate())
}

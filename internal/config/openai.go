package config

import (
	"fmt"
	"time"
)

type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	TranscriptionModel string
	SpeechModel        string
	MaxTokens          int
	Temperature        float64
	Timeout            time.Duration
}

// LoadOpenAIConfig reads the model settings from the environment.
func LoadOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		APIKey:             getEnv("OPENAI_API_KEY", ""),
		BaseURL:            getEnv("OPENAI_BASE_URL", ""),
		Model:              getEnv("OPENAI_MODEL", "gpt-4"),
		TranscriptionModel: getEnv("OPENAI_TRANSCRIPTION_MODEL", "whisper-1"),
		SpeechModel:        getEnv("OPENAI_SPEECH_MODEL", "tts-1"),
		MaxTokens:          getEnvAsInt("OPENAI_MAX_TOKENS", 2000),
		Temperature:        getEnvAsFloat("OPENAI_TEMPERATURE", 0.7),
		Timeout:            getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
	}
}

func (c *OpenAIConfig) ValidateConfig() error {
	if c.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be positive")
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("OPENAI_TEMPERATURE must be between 0 and 2")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("OPENAI_TIMEOUT must be positive")
	}

	return nil
}

// GetModelInfo summarizes the model settings for status output.
func (c *OpenAIConfig) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":               c.Model,
		"transcription_model": c.TranscriptionModel,
		"speech_model":        c.SpeechModel,
		"max_tokens":          c.MaxTokens,
		"temperature":         c.Temperature,
		"provider":            "OpenAI",
	}
}

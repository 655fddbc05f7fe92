package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the interview definition from a YAML file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	return Parse(data)
}

// Parse decodes and validates an interview definition.
func Parse(data []byte) (*Config, error) {
	config := Config{
		InterviewConfig: InterviewConfig{FollowupsPerAnswer: 2, ExtractOnSave: true},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid interview config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.InterviewConfig.FollowupsPerAnswer < 0 {
		return fmt.Errorf("followups_per_answer cannot be negative")
	}

	if len(config.CoreQuestions) == 0 {
		return fmt.Errorf("core_questions must not be empty")
	}

	seen := make(map[string]int, len(config.CoreQuestions))
	for i, q := range config.CoreQuestions {
		if strings.TrimSpace(q.Category) == "" {
			return fmt.Errorf("question %d must have a category", i+1)
		}

		text := strings.TrimSpace(q.Question)
		if text == "" {
			return fmt.Errorf("question %d must have text", i+1)
		}

		if prev, ok := seen[text]; ok {
			return fmt.Errorf("question %d duplicates question %d", i+1, prev+1)
		}
		seen[text] = i
	}

	return nil
}

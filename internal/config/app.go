package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type AppConfig struct {
	Environment string `validate:"required,oneof=development production test"`
	OpenAI      OpenAIConfig
	Telegram    TelegramConfig
	Server      ServerConfig
	Storage     StorageConfig
	Interview   string `validate:"required"`
}

type TelegramConfig struct {
	Token string
	Debug bool
}

type ServerConfig struct {
	Port            int           `validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	AllowedOrigins  []string
	RateLimit       int `validate:"min=1"`
}

type StorageConfig struct {
	Dir string `validate:"required"`
}

// LoadAppConfig reads the application settings from the environment.
func LoadAppConfig() *AppConfig {
	return &AppConfig{
		Environment: getEnv("APP_ENV", "development"),
		OpenAI:      *LoadOpenAIConfig(),
		Telegram: TelegramConfig{
			Token: getEnv("TELEGRAM_BOT_TOKEN", ""),
			Debug: getEnvAsBool("TELEGRAM_DEBUG", false),
		},
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimit:       getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
		},
		Storage: StorageConfig{
			Dir: getEnv("STORAGE_DIR", "data/parent_profiles"),
		},
		Interview: getEnv("INTERVIEW_CONFIG", "config/interview.yaml"),
	}
}

// Validate checks struct tags and the OpenAI settings.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid app config: %w", err)
	}
	return c.OpenAI.ValidateConfig()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

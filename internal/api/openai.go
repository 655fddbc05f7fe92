// Package api wraps the hosted model API used for follow-ups, extraction,
// search, translation, transcription and speech.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"family-vault/internal/config"
)

// ErrExternalService wraps every failure of the hosted model API, including
// calls rejected by the open circuit breaker.
var ErrExternalService = errors.New("external service failure")

// ChatRequest is a single-turn chat completion.
type ChatRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer runs chat completions.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// AudioTranscriber turns recorded audio into text. With translate set the
// text is returned in English.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string, translate bool) (string, error)
}

// SpeechRequest asks for text to be read aloud.
type SpeechRequest struct {
	Text  string
	Voice string
	Speed float64
}

// SpeechGenerator renders text as WAV audio.
type SpeechGenerator interface {
	Speech(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// CallRecorder receives the outcome of every API call.
type CallRecorder interface {
	IncrementAPICall(operation string, success bool)
}

type OpenAIClient struct {
	cli     *openai.Client
	cfg     config.OpenAIConfig
	breaker *gobreaker.CircuitBreaker
	metrics CallRecorder
	logger  *zap.Logger
}

type nopRecorder struct{}

func (nopRecorder) IncrementAPICall(string, bool) {}

func NewOpenAIClient(cfg config.OpenAIConfig, metrics CallRecorder, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	logger = logger.Named("openai")
	return &OpenAIClient{
		cli:     openai.NewClientWithConfig(clientConfig),
		cfg:     cfg,
		breaker: newBreaker(logger),
		metrics: metrics,
		logger:  logger,
	}
}

func newBreaker(logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A cancelled caller says nothing about the API's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Complete sends a chat completion and returns the trimmed reply.
func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	out, err := c.call(ctx, "chat", func(ctx context.Context) (interface{}, error) {
		resp, err := c.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: float32(req.Temperature),
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no choices returned")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// Transcribe sends audio to the speech-to-text endpoint.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio io.Reader, filename string, translate bool) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}
	req := openai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: filename,
		Reader:   audio,
	}

	operation := "transcription"
	if translate {
		operation = "audio_translation"
	}

	out, err := c.call(ctx, operation, func(ctx context.Context) (interface{}, error) {
		var (
			resp openai.AudioResponse
			err  error
		)
		if translate {
			resp, err = c.cli.CreateTranslation(ctx, req)
		} else {
			resp, err = c.cli.CreateTranscription(ctx, req)
		}
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(resp.Text), nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// Speech renders text with the requested voice as WAV.
func (c *OpenAIClient) Speech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	out, err := c.call(ctx, "speech", func(ctx context.Context) (interface{}, error) {
		resp, err := c.cli.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(c.cfg.SpeechModel),
			Input:          req.Text,
			Voice:          openai.SpeechVoice(req.Voice),
			ResponseFormat: openai.SpeechResponseFormatWav,
			Speed:          req.Speed,
		})
		if err != nil {
			return nil, err
		}
		defer resp.Close()
		return io.ReadAll(resp)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *OpenAIClient) call(ctx context.Context, operation string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	c.metrics.IncrementAPICall(operation, err == nil)
	if err != nil {
		c.logger.Warn("api call failed",
			zap.String("operation", operation),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrExternalService, operation, err)
	}

	c.logger.Debug("api call finished",
		zap.String("operation", operation),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// CleanJSONResponse strips markdown code fences around a JSON reply.
func CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```JSON")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

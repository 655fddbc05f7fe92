// Package translation translates interview prompts for non-English speakers.
package translation

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"family-vault/internal/api"
	"family-vault/internal/prompts"
)

const (
	English = "English"

	translationTemperature = 0.3
	translationMaxTokens   = 500
)

// SupportedLanguages maps language names to ISO 639-1 codes.
var SupportedLanguages = map[string]string{
	"English":              "en",
	"Spanish":              "es",
	"French":               "fr",
	"German":               "de",
	"Italian":              "it",
	"Portuguese":           "pt",
	"Chinese (Simplified)": "zh",
	"Japanese":             "ja",
	"Korean":               "ko",
	"Arabic":               "ar",
	"Hindi":                "hi",
	"Russian":              "ru",
	"Vietnamese":           "vi",
	"Polish":               "pl",
	"Dutch":                "nl",
	"Greek":                "el",
	"Hebrew":               "he",
	"Turkish":              "tr",
	"Swedish":              "sv",
	"Norwegian":            "no",
	"Danish":               "da",
	"Finnish":              "fi",
}

type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Languages returns the supported languages, English first then by name.
func Languages() []Language {
	out := make([]Language, 0, len(SupportedLanguages))
	for name, code := range SupportedLanguages {
		out = append(out, Language{Name: name, Code: code})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == English || out[j].Name == English {
			return out[i].Name == English
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Normalize resolves a language name or code, case-insensitively, to its
// canonical name.
func Normalize(language string) (string, bool) {
	language = strings.TrimSpace(language)
	for name, code := range SupportedLanguages {
		if strings.EqualFold(name, language) || strings.EqualFold(code, language) {
			return name, true
		}
	}
	return "", false
}

type Translator struct {
	client api.Completer
	logger *zap.Logger
}

func New(client api.Completer, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{client: client, logger: logger.Named("translation")}
}

// Translate returns text in language. English, blank text and any failure
// return text unchanged.
func (t *Translator) Translate(ctx context.Context, text, language string) string {
	if strings.TrimSpace(text) == "" || language == "" || language == English {
		return text
	}

	out, err := t.client.Complete(ctx, api.ChatRequest{
		System:      prompts.TranslationSystem(language),
		Prompt:      prompts.Translation(text, language),
		Temperature: translationTemperature,
		MaxTokens:   translationMaxTokens,
	})
	if err != nil || out == "" {
		t.logger.Warn("translation failed, using original text",
			zap.String("language", language),
			zap.Error(err))
		return text
	}
	return out
}

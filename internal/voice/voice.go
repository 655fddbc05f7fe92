// Package voice handles speech input and spoken playback of answers.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"family-vault/internal/api"
	"family-vault/internal/interview"
)

// DefaultProfile is used when no or an unknown profile is requested.
const DefaultProfile = "Warm Grandmother (Shimmer)"

type Profile struct {
	Name        string  `json:"name"`
	Voice       string  `json:"voice"`
	Description string  `json:"description"`
	Speed       float64 `json:"speed"`
}

// Profiles are the selectable speaking voices.
var Profiles = map[string]Profile{
	"Warm Grandmother (Shimmer)":    {Voice: "shimmer", Description: "Warm, friendly female voice, like a caring grandmother", Speed: 0.95},
	"Calm Grandfather (Onyx)":       {Voice: "onyx", Description: "Deep, calm male voice, like a wise grandfather", Speed: 0.95},
	"Upbeat & Friendly (Nova)":      {Voice: "nova", Description: "Energetic, cheerful female voice", Speed: 1.0},
	"Professional Narrator (Alloy)": {Voice: "alloy", Description: "Neutral, clear narrator voice", Speed: 1.0},
	"Gentle & Soothing (Echo)":      {Voice: "echo", Description: "Gentle, reassuring male voice", Speed: 0.95},
	"Warm Storyteller (Fable)":      {Voice: "fable", Description: "Expressive British storyteller", Speed: 1.0},
}

// VoiceProfiles lists the profiles with the default first.
func VoiceProfiles() []Profile {
	out := make([]Profile, 0, len(Profiles))
	for name, p := range Profiles {
		p.Name = name
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == DefaultProfile || out[j].Name == DefaultProfile {
			return out[i].Name == DefaultProfile
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// LookupProfile returns the named profile or the default one.
func LookupProfile(name string) Profile {
	p, ok := Profiles[name]
	if !ok {
		name = DefaultProfile
		p = Profiles[DefaultProfile]
	}
	p.Name = name
	return p
}

type Transcriber struct {
	client api.AudioTranscriber
	logger *zap.Logger
}

func NewTranscriber(client api.AudioTranscriber, logger *zap.Logger) *Transcriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcriber{client: client, logger: logger.Named("transcriber")}
}

// Transcribe returns the text spoken in audio, translated to English when
// translate is set. Failures and empty audio return "".
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string, translate bool) string {
	if len(audio) == 0 {
		return ""
	}

	text, err := t.client.Transcribe(ctx, bytes.NewReader(audio), filename, translate)
	if err != nil {
		t.logger.Warn("transcription failed",
			zap.String("filename", filename),
			zap.Int("bytes", len(audio)),
			zap.Error(err))
		return ""
	}
	return text
}

type Synthesizer struct {
	client api.SpeechGenerator
	logger *zap.Logger
}

func NewSynthesizer(client api.SpeechGenerator, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{client: client, logger: logger.Named("synthesizer")}
}

// Speak renders text in the voice of the named profile as WAV audio.
func (s *Synthesizer) Speak(ctx context.Context, text, profile string) ([]byte, Profile, error) {
	p := LookupProfile(profile)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, p, fmt.Errorf("speech text: %w", interview.ErrEmptyInput)
	}

	audio, err := s.client.Speech(ctx, api.SpeechRequest{Text: text, Voice: p.Voice, Speed: p.Speed})
	if err != nil {
		return nil, p, fmt.Errorf("synthesize speech: %w", err)
	}
	return audio, p, nil
}

// Package tts defines the synthesis-provider interface consumed by the
// variant generator, together with the request and catalogue types shared by
// all implementations.
package tts

import "context"

// Provider is an external text-to-speech service. Implementations must be
// safe for concurrent use; the variant generator issues parallel Synthesize
// calls for one chunk.
type Provider interface {
	// Synthesize converts the request text into a complete audio file
	// (MP3 bytes). Failures carry the provider's own error detail where
	// available; use [AsProviderError] to recover it.
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)

	// ListVoices returns the voices available to the configured credentials.
	ListVoices(ctx context.Context) ([]Voice, error)

	// ListModels returns the provider's text-to-speech capable models.
	ListModels(ctx context.Context) ([]Model, error)
}

// SynthesisRequest is one synthesis call. Settings are already normalised to
// the provider's expected ranges (0–1 fractions, not editor percentages).
type SynthesisRequest struct {
	Text     string
	VoiceID  string
	Settings SynthesisSettings
}

// SynthesisSettings mirrors the provider's voice_settings object.
type SynthesisSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	Speed           float64 `json:"speed,omitempty"`
	ModelID         string  `json:"-"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Voice is one entry of the provider's voice catalogue.
type Voice struct {
	ID       string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Model is one entry of the provider's model catalogue.
type Model struct {
	ID          string   `json:"model_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Languages   []string `json:"languages,omitempty"`
}

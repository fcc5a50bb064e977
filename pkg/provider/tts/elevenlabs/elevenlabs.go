// Package elevenlabs provides an ElevenLabs-backed synthesis provider using
// the one-shot text-to-speech REST endpoint. It implements the tts.Provider
// interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/narravox/narravox/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_multilingual_v2"

	// maxErrorBody bounds how much of an error response body is read when
	// extracting a failure message.
	maxErrorBody = 64 << 10
)

// Option is a functional option for configuring the ElevenLabs Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client implements tts.Provider backed by the ElevenLabs REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Compile-time interface check.
var _ tts.Provider = (*Client)(nil)

// New creates a new ElevenLabs Client. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ttsRequest is the JSON payload for POST /v1/text-to-speech/{voice}.
type ttsRequest struct {
	Text          string                `json:"text"`
	ModelID       string                `json:"model_id"`
	VoiceSettings tts.SynthesisSettings `json:"voice_settings"`
}

// Synthesize calls POST /v1/text-to-speech/{voiceID} and returns the MP3
// payload. Non-2xx responses and transport failures are reported as
// [tts.ProviderError] with the message extracted from the ElevenLabs error
// body when one is present.
func (c *Client) Synthesize(ctx context.Context, req tts.SynthesisRequest) ([]byte, error) {
	if req.VoiceID == "" {
		return nil, errors.New("elevenlabs: voice id must not be empty")
	}

	model := req.Settings.ModelID
	if model == "" {
		model = defaultModel
	}
	body, err := json.Marshal(ttsRequest{
		Text:          req.Text,
		ModelID:       model,
		VoiceSettings: req.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, req.VoiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &tts.ProviderError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &tts.ProviderError{
			StatusCode: resp.StatusCode,
			Detail:     extractErrorDetail(resp.Body),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &tts.ProviderError{Detail: fmt.Sprintf("read audio: %v", err)}
	}
	return audio, nil
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []voiceEntry `json:"voices"`
}

// voiceEntry is a single voice from the ElevenLabs API.
type voiceEntry struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available for the configured API key.
func (c *Client) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	var vr voicesResponse
	if err := c.getJSON(ctx, "/v1/voices", &vr); err != nil {
		return nil, err
	}

	voices := make([]tts.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, tts.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Category: v.Category,
			Labels:   v.Labels,
		})
	}
	return voices, nil
}

// ---- ListModels ----

// modelEntry is a single model from GET /v1/models.
type modelEntry struct {
	ModelID            string `json:"model_id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	CanDoTextToSpeech  bool   `json:"can_do_text_to_speech"`
	SupportedLanguages []struct {
		LanguageID string `json:"language_id"`
		Name       string `json:"name"`
	} `json:"languages"`
}

// ListModels returns ElevenLabs models filtered to those capable of
// text-to-speech.
func (c *Client) ListModels(ctx context.Context) ([]tts.Model, error) {
	var entries []modelEntry
	if err := c.getJSON(ctx, "/v1/models", &entries); err != nil {
		return nil, err
	}

	var models []tts.Model
	for _, m := range entries {
		if !m.CanDoTextToSpeech {
			continue
		}
		langs := make([]string, 0, len(m.SupportedLanguages))
		for _, l := range m.SupportedLanguages {
			langs = append(langs, l.Name)
		}
		models = append(models, tts.Model{
			ID:          m.ModelID,
			Name:        m.Name,
			Description: m.Description,
			Languages:   langs,
		})
	}
	return models, nil
}

// getJSON performs an authenticated GET against path and decodes the JSON
// response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: %s: %w", path, err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &tts.ProviderError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &tts.ProviderError{
			StatusCode: resp.StatusCode,
			Detail:     extractErrorDetail(resp.Body),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("elevenlabs: %s decode: %w", path, err)
	}
	return nil
}

// errorBody matches the shapes ElevenLabs uses for error responses:
// {"detail": {"message": "..."}} or {"error": "..."}.
type errorBody struct {
	Detail struct {
		Message string `json:"message"`
	} `json:"detail"`
	Error string `json:"error"`
}

// extractErrorDetail pulls a human-readable message out of an error response
// body, falling back to the raw text and then to a generic message.
func extractErrorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return "audio generation failed"
	}
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if eb.Detail.Message != "" {
			return eb.Detail.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return string(raw)
}

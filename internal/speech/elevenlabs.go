package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/zombor/receipt-assistant/internal/failure"
)

const elevenLabsName = "elevenlabs"

// ElevenLabs implements Synthesizer with the ElevenLabs REST API
type ElevenLabs struct {
	baseURL string
	apiKey  string
	voiceID string
	model   string
	client  *http.Client
	timeout time.Duration
}

// NewElevenLabs creates an ElevenLabs synthesizer
func NewElevenLabs(apiKey, voiceID, model string, timeout time.Duration) (*ElevenLabs, error) {
	return NewElevenLabsWithDeps("https://api.elevenlabs.io", apiKey, voiceID, model, timeout, &http.Client{})
}

// NewElevenLabsWithDeps creates an ElevenLabs synthesizer against baseURL for testing
func NewElevenLabsWithDeps(baseURL, apiKey, voiceID, model string, timeout time.Duration, client *http.Client) (*ElevenLabs, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	if voiceID == "" {
		voiceID = "JBFqnCBsd6RMkjVDRZzb"
	}
	if model == "" {
		model = "eleven_multilingual_v2"
	}
	return &ElevenLabs{
		baseURL: baseURL,
		apiKey:  apiKey,
		voiceID: voiceID,
		model:   model,
		client:  client,
		timeout: timeout,
	}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize returns MP3 speech for text
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID, model string) (*Audio, error) {
	if voiceID == "" {
		voiceID = e.voiceID
	}
	if model == "" {
		model = e.model
	}

	body, err := json.Marshal(ttsRequest{
		Text:          text,
		ModelID:       model,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.5},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	data, err := e.call(ctx, http.MethodPost, "/v1/text-to-speech/"+url.PathEscape(voiceID), body, "audio/mpeg")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, failure.NewProviderError(elevenLabsName, failure.CapabilitySynthesis, 0, errors.New("empty audio"))
	}
	return &Audio{Data: data, Format: FormatMP3}, nil
}

// ListVoices returns the voices on the account
func (e *ElevenLabs) ListVoices(ctx context.Context) ([]Voice, error) {
	data, err := e.call(ctx, http.MethodGet, "/v1/voices", nil, "application/json")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Voices []struct {
			VoiceID string            `json:"voice_id"`
			Name    string            `json:"name"`
			Labels  map[string]string `json:"labels"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, failure.NewProviderError(elevenLabsName, failure.CapabilitySynthesis, 0, fmt.Errorf("decoding voices: %w", err))
	}

	voices := make([]Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, Voice{ID: v.VoiceID, Name: v.Name, Language: v.Labels["language"]})
	}
	return voices, nil
}

func (e *ElevenLabs) call(ctx context.Context, method, path string, body []byte, accept string) ([]byte, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, failure.NewProviderError(elevenLabsName, failure.CapabilitySynthesis, 0, fmt.Errorf("calling elevenlabs API: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.NewProviderError(elevenLabsName, failure.CapabilitySynthesis, resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, failure.NewProviderError(elevenLabsName, failure.CapabilitySynthesis, resp.StatusCode,
			fmt.Errorf("elevenlabs API error: %s", bytes.TrimSpace(data)))
	}
	return data, nil
}

// Close is a no-op for the HTTP client
func (e *ElevenLabs) Close() error {
	return nil
}

package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/gemini"
)

const transcribePrompt = "Transcribe this audio exactly as spoken. Return only the transcript, with no commentary."

// generateFunc is the single-turn content call used by GeminiTranscriber
type generateFunc func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// GeminiTranscriber implements Transcriber by sending the clip as an inline blob
type GeminiTranscriber struct {
	client   *genai.Client
	generate generateFunc
	timeout  time.Duration
}

// NewGeminiTranscriber creates a Gemini-backed Transcriber
func NewGeminiTranscriber(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiTranscriber, error) {
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	t := NewGeminiTranscriberWithDeps(model.GenerateContent, timeout)
	t.client = client
	return t, nil
}

// NewGeminiTranscriberWithDeps creates a GeminiTranscriber with a custom generate call for testing
func NewGeminiTranscriberWithDeps(generate generateFunc, timeout time.Duration) *GeminiTranscriber {
	return &GeminiTranscriber{generate: generate, timeout: timeout}
}

// SupportedFormats lists the audio formats Gemini accepts inline
func (g *GeminiTranscriber) SupportedFormats() []Format {
	return []Format{FormatWAV, FormatMP3, FormatOGG, FormatFLAC, FormatAAC, FormatM4A}
}

// Transcribe returns the spoken text of audio
func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, format Format) (*Transcription, error) {
	if !Supports(g, format) {
		return nil, &failure.UnsupportedInputError{MediaType: format.MIMEType()}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.generate(ctx,
		genai.Blob{MIMEType: format.MIMEType(), Data: audio},
		genai.Text(transcribePrompt),
	)
	if err != nil {
		return nil, failure.NewProviderError(gemini.Name, failure.CapabilityTranscription, gemini.StatusCode(err),
			fmt.Errorf("generating content: %w", err))
	}

	text, err := gemini.ResponseText(resp)
	if err != nil {
		return nil, failure.NewProviderError(gemini.Name, failure.CapabilityTranscription, 0, err)
	}
	if text == "" {
		return nil, failure.NewProviderError(gemini.Name, failure.CapabilityTranscription, 0, errors.New("empty transcript"))
	}
	return &Transcription{Text: text}, nil
}

// Close closes the Gemini client
func (g *GeminiTranscriber) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

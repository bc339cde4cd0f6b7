package scanning

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/openaicompat"
)

// chatCompleter is the part of openaicompat.Client used here
type chatCompleter interface {
	ChatCompletion(ctx context.Context, req *openaicompat.ChatRequest) (*openaicompat.ChatResponse, error)
}

// Groq implements the Analyzer interface with a Groq-hosted vision model
type Groq struct {
	client  chatCompleter
	model   string
	timeout time.Duration
}

// NewGroq creates a Groq analyzer on a shared client
func NewGroq(client chatCompleter, modelName string, timeout time.Duration) *Groq {
	if modelName == "" {
		modelName = "meta-llama/llama-4-scout-17b-16e-instruct"
	}
	return &Groq{client: client, model: modelName, timeout: timeout}
}

// SupportedFormats lists accepted MIME content types
func (g *Groq) SupportedFormats() []string {
	return SupportedFormats()
}

// Analyze reads the text of a receipt image
func (g *Groq) Analyze(ctx context.Context, image []byte, contentType, prompt string) (*Analysis, error) {
	pngData, err := normalizeImage(image, contentType)
	if err != nil {
		return nil, err
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.ChatCompletion(ctx, &openaicompat.ChatRequest{
		Model: g.model,
		Messages: []openaicompat.Message{{
			Role: "user",
			Parts: []openaicompat.Part{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &openaicompat.ImageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData),
				}},
			},
		}},
	})
	if err != nil {
		return nil, failure.NewProviderError("groq", failure.CapabilityVision, openaicompat.StatusCode(err), err)
	}

	text := cleanResponse(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, failure.NewProviderError("groq", failure.CapabilityVision, 0, errors.New("empty analysis"))
	}
	return &Analysis{Text: text}, nil
}

// Close is a no-op; the HTTP client is shared
func (g *Groq) Close() error {
	return nil
}

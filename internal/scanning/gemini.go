package scanning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/gemini"
)

// generateFunc is the single-turn content call used by Gemini
type generateFunc func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// Gemini implements the Analyzer interface using Google Gemini
type Gemini struct {
	client   *genai.Client
	generate generateFunc
	timeout  time.Duration
}

// NewGemini creates a new Gemini Analyzer instance
func NewGemini(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*Gemini, error) {
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	g := NewGeminiWithDeps(client.GenerativeModel(modelName).GenerateContent, timeout)
	g.client = client
	return g, nil
}

// NewGeminiWithDeps creates a Gemini analyzer with a custom generate call for testing
func NewGeminiWithDeps(generate generateFunc, timeout time.Duration) *Gemini {
	return &Gemini{generate: generate, timeout: timeout}
}

// SupportedFormats lists accepted MIME content types
func (g *Gemini) SupportedFormats() []string {
	return SupportedFormats()
}

// Analyze reads the text of a receipt image
func (g *Gemini) Analyze(ctx context.Context, image []byte, contentType, prompt string) (*Analysis, error) {
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

	// genai.ImageData wants the format suffix ("png"), not the MIME type
	resp, err := g.generate(ctx, genai.ImageData("png", pngData), genai.Text(prompt))
	if err != nil {
		return nil, failure.NewProviderError(gemini.Name, failure.CapabilityVision, gemini.StatusCode(err),
			fmt.Errorf("generating content: %w", err))
	}

	text, err := gemini.ResponseText(resp)
	if err != nil {
		return nil, failure.NewProviderError(gemini.Name, failure.CapabilityVision, 0, err)
	}
	text = cleanResponse(text)
	if text == "" {
		return nil, failure.NewProviderError(gemini.Name, failure.CapabilityVision, 0, errors.New("empty analysis"))
	}
	return &Analysis{Text: text}, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

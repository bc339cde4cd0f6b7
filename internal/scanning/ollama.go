package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zombor/receipt-assistant/internal/failure"
)

// Ollama implements the Analyzer interface using Ollama
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	timeout time.Duration
}

// NewOllama creates a new Ollama Analyzer instance
// Recommended models for receipt reading (in order of recommendation):
//   - llava:1.6 (best balance of accuracy and speed)
//   - qwen2-vl:7b (good OCR capabilities)
//   - llava-phi3 (smaller, faster, but less accurate)
func NewOllama(baseURL, modelName string, timeout time.Duration) *Ollama {
	return NewOllamaWithClient(baseURL, modelName, timeout, &http.Client{})
}

// NewOllamaWithClient creates an Ollama analyzer with a custom HTTP client
func NewOllamaWithClient(baseURL, modelName string, timeout time.Duration, client *http.Client) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}
	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client:  client,
		timeout: timeout,
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// SupportedFormats lists accepted MIME content types
func (o *Ollama) SupportedFormats() []string {
	return SupportedFormats()
}

// Analyze reads the text of a receipt image
func (o *Ollama) Analyze(ctx context.Context, image []byte, contentType, prompt string) (*Analysis, error) {
	pngData, err := normalizeImage(image, contentType)
	if err != nil {
		return nil, err
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	// Ollama attaches images to the message that refers to them.
	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading receipts. You must carefully read all text in images and report it accurately.",
			},
			{
				Role:    "user",
				Content: prompt,
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, failure.NewProviderError("ollama", failure.CapabilityVision, 0, fmt.Errorf("calling ollama API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, failure.NewProviderError("ollama", failure.CapabilityVision, resp.StatusCode,
			fmt.Errorf("ollama API error: %s", string(body)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, failure.NewProviderError("ollama", failure.CapabilityVision, 0, fmt.Errorf("decoding response: %w", err))
	}

	text := cleanResponse(chatResp.Message.Content)
	if text == "" {
		return nil, failure.NewProviderError("ollama", failure.CapabilityVision, 0, errors.New("empty analysis"))
	}
	return &Analysis{Text: text}, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}

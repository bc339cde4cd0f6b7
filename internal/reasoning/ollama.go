package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zombor/receipt-assistant/internal/failure"
)

// Ollama implements Reasoner using Ollama's /api/chat with tools
type Ollama struct {
	baseURL   string
	modelName string
	client    *http.Client
	timeout   time.Duration
	ids       IDGenerator
}

// NewOllama creates a new Ollama reasoner. The model must support tools
// (e.g. llama3.1, qwen2.5).
func NewOllama(baseURL, modelName string, timeout time.Duration) *Ollama {
	return NewOllamaWithDeps(baseURL, modelName, timeout, &http.Client{}, NewIDGenerator())
}

// NewOllamaWithDeps creates an Ollama reasoner with custom dependencies for testing
func NewOllamaWithDeps(baseURL, modelName string, timeout time.Duration, client *http.Client, ids IDGenerator) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llama3.1"
	}
	return &Ollama{
		baseURL:   baseURL,
		modelName: modelName,
		client:    client,
		timeout:   timeout,
		ids:       ids,
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Complete runs one completion round
func (o *Ollama) Complete(ctx context.Context, req *Request) (*Response, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	reqBody := ollamaChatRequest{
		Model:  o.modelName,
		Stream: false,
	}
	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		options["num_predict"] = *req.MaxTokens
	}
	if len(options) > 0 {
		reqBody.Options = options
	}

	names := map[string]string{}
	for _, m := range req.Messages {
		msg := ollamaMessage{Role: string(m.Role), Content: m.Content}
		for _, call := range m.ToolCalls {
			var tc ollamaToolCall
			tc.Function.Name = call.Name
			tc.Function.Arguments = call.Arguments
			msg.ToolCalls = append(msg.ToolCalls, tc)
			names[call.ID] = call.Name
		}
		if m.Role == RoleTool {
			msg.ToolName = m.Name
			if msg.ToolName == "" {
				msg.ToolName = names[m.ToolCallID]
			}
		}
		reqBody.Messages = append(reqBody.Messages, msg)
	}
	if req.ToolChoice != ToolChoiceNone {
		for _, t := range req.Tools {
			var tool ollamaTool
			tool.Type = "function"
			tool.Function.Name = t.Name
			tool.Function.Description = t.Description
			tool.Function.Parameters = t.Parameters
			reqBody.Tools = append(reqBody.Tools, tool)
		}
	}

	chatResp, status, err := o.post(ctx, reqBody)
	if err != nil {
		return nil, failure.NewProviderError("ollama", failure.CapabilityReasoning, status, err)
	}

	out := &Response{
		Content:      chatResp.Message.Content,
		FinishReason: chatResp.DoneReason,
		Model:        chatResp.Model,
		Usage: &Usage{
			PromptTokens:     chatResp.PromptEvalCount,
			CompletionTokens: chatResp.EvalCount,
			TotalTokens:      chatResp.PromptEvalCount + chatResp.EvalCount,
		},
	}
	for _, call := range chatResp.Message.ToolCalls {
		args := call.Function.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: call.Function.Name, Arguments: args})
	}
	out.ToolCalls = EnsureIDs(out.ToolCalls, o.ids)
	return out, nil
}

func (o *Ollama) post(ctx context.Context, reqBody ollamaChatRequest) (*ollamaChatResponse, int, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, 0, fmt.Errorf("decoding response: %w", err)
	}
	return &chatResp, resp.StatusCode, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}

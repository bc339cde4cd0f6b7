package reasoning

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/openaicompat"
)

// chatCompleter is the part of openaicompat.Client used here
type chatCompleter interface {
	ChatCompletion(ctx context.Context, req *openaicompat.ChatRequest) (*openaicompat.ChatResponse, error)
}

// Groq implements Reasoner over Groq's OpenAI-compatible API
type Groq struct {
	client    chatCompleter
	modelName string
	timeout   time.Duration
	ids       IDGenerator
}

// NewGroq creates a Groq reasoner on a shared client
func NewGroq(client chatCompleter, modelName string, timeout time.Duration) *Groq {
	return NewGroqWithDeps(client, modelName, timeout, NewIDGenerator())
}

// NewGroqWithDeps creates a Groq reasoner with custom dependencies for testing
func NewGroqWithDeps(client chatCompleter, modelName string, timeout time.Duration, ids IDGenerator) *Groq {
	if modelName == "" {
		modelName = "llama-3.3-70b-versatile"
	}
	return &Groq{
		client:    client,
		modelName: modelName,
		timeout:   timeout,
		ids:       ids,
	}
}

// Complete runs one completion round
func (g *Groq) Complete(ctx context.Context, req *Request) (*Response, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	chatReq := &openaicompat.ChatRequest{
		Model:       g.modelName,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, t := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openaicompat.Tool{
			Type: "function",
			Function: openaicompat.FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if len(chatReq.Tools) > 0 && req.ToolChoice != "" {
		chatReq.ToolChoice = string(req.ToolChoice)
	}

	resp, err := g.client.ChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, failure.NewProviderError("groq", failure.CapabilityReasoning, openaicompat.StatusCode(err), err)
	}

	choice := resp.Choices[0]
	out := &Response{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Model:        resp.Model,
	}
	if out.Model == "" {
		out.Model = g.modelName
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: argumentsJSON(call.Function.Arguments),
		})
	}
	out.ToolCalls = EnsureIDs(out.ToolCalls, g.ids)
	if resp.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// Close is a no-op; the HTTP client is shared
func (g *Groq) Close() error {
	return nil
}

func toOpenAIMessages(messages []Message) []openaicompat.Message {
	out := make([]openaicompat.Message, 0, len(messages))
	for _, m := range messages {
		msg := openaicompat.Message{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, call := range m.ToolCalls {
			args := string(call.Arguments)
			if args == "" {
				args = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, openaicompat.ToolCall{
				ID:   call.ID,
				Type: "function",
				Function: openaicompat.FunctionCall{
					Name:      call.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

// argumentsJSON keeps valid JSON as is and quotes anything else so that
// the validator, not the transport, reports malformed arguments.
func argumentsJSON(args string) json.RawMessage {
	if args == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	quoted, _ := json.Marshal(args)
	return quoted
}

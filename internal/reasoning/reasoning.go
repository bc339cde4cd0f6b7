// Package reasoning defines the chat-with-tools port and its vendor variants.
package reasoning

import (
	"context"
	"encoding/json"
)

// Role of a message in an exchange
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolChoice constrains whether the model may call tools
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// ToolCall is a function invocation requested by the model
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry of a chat exchange. A tool message must carry the
// ToolCallID of a call made by the preceding assistant message.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Tool declares a local function the model may call
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object
	Parameters json.RawMessage
}

// Request is one completion call
type Request struct {
	Messages    []Message
	Tools       []Tool
	ToolChoice  ToolChoice
	Temperature *float64
	MaxTokens   *int
}

// Usage reports token accounting when the vendor provides it
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the model's answer. No tool calls means Content is final.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Model        string
	Usage        *Usage
}

// Reasoner completes chat exchanges, optionally with tool calling.
// Failures are *failure.ProviderError.
type Reasoner interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Close() error
}

// Float returns a pointer to v, for Request.Temperature
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for Request.MaxTokens
func Int(v int) *int {
	return &v
}

package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/gemini"
)

// sendFunc sends the last turn of a chat whose earlier turns are history
type sendFunc func(ctx context.Context, model *genai.GenerativeModel, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error)

// Gemini implements Reasoner with Gemini function calling
type Gemini struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
	newModel  func(name string) *genai.GenerativeModel
	send      sendFunc
	ids       IDGenerator
}

// NewGemini creates a Gemini reasoner
func NewGemini(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*Gemini, error) {
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	return NewGeminiWithDeps(client, modelName, timeout, client.GenerativeModel, sendChat, NewIDGenerator()), nil
}

// NewGeminiWithDeps creates a Gemini reasoner with custom dependencies for testing
func NewGeminiWithDeps(client *genai.Client, modelName string, timeout time.Duration, newModel func(string) *genai.GenerativeModel, send sendFunc, ids IDGenerator) *Gemini {
	return &Gemini{
		client:    client,
		modelName: modelName,
		timeout:   timeout,
		newModel:  newModel,
		send:      send,
		ids:       ids,
	}
}

func sendChat(ctx context.Context, model *genai.GenerativeModel, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	cs := model.StartChat()
	cs.History = history
	return cs.SendMessage(ctx, parts...)
}

// Complete runs one completion round
func (g *Gemini) Complete(ctx context.Context, req *Request) (*Response, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// A fresh model per call keeps concurrent sessions from sharing settings.
	model := g.newModel(g.modelName)
	if req.Temperature != nil {
		model.SetTemperature(float32(*req.Temperature))
	}
	if req.MaxTokens != nil {
		model.SetMaxOutputTokens(int32(*req.MaxTokens))
	}

	if req.ToolChoice != ToolChoiceNone && len(req.Tools) > 0 {
		tool, err := toGenaiTool(req.Tools)
		if err != nil {
			return nil, failure.NewProviderError(gemini.Name, failure.CapabilityReasoning, 0, err)
		}
		model.Tools = []*genai.Tool{tool}
	}

	system, contents, err := toContents(req.Messages)
	if err != nil {
		return nil, failure.NewProviderError(gemini.Name, failure.CapabilityReasoning, 0, err)
	}
	if system != nil {
		model.SystemInstruction = system
	}

	last := contents[len(contents)-1]
	resp, err := g.send(ctx, model, contents[:len(contents)-1], last.Parts)
	if err != nil {
		return nil, failure.NewProviderError(gemini.Name, failure.CapabilityReasoning, gemini.StatusCode(err),
			fmt.Errorf("generating content: %w", err))
	}

	out, err := g.fromResponse(resp)
	if err != nil {
		return nil, failure.NewProviderError(gemini.Name, failure.CapabilityReasoning, 0, err)
	}
	return out, nil
}

func (g *Gemini) fromResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no response from gemini")
	}
	candidate := resp.Candidates[0]

	out := &Response{
		Model:        g.modelName,
		FinishReason: candidate.FinishReason.String(),
	}
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Content += string(p)
		case genai.FunctionCall:
			args, err := json.Marshal(p.Args)
			if err != nil {
				return nil, fmt.Errorf("encoding arguments of %s: %w", p.Name, err)
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: p.Name, Arguments: args})
		}
	}
	out.ToolCalls = EnsureIDs(out.ToolCalls, g.ids)
	return out, nil
}

func toGenaiTool(tools []Tool) (*genai.Tool, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		params, err := toGenaiSchema(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}, nil
}

// toContents maps an exchange onto Gemini turns. System messages become the
// system instruction; tool results are user turns carrying function
// responses, merged when several follow one assistant turn.
func toContents(messages []Message) (*genai.Content, []*genai.Content, error) {
	var (
		system   *genai.Content
		contents []*genai.Content
		names    = map[string]string{}
	)

	appendParts := func(role string, parts ...genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, genai.Text(m.Content))
		case RoleUser:
			appendParts("user", genai.Text(m.Content))
		case RoleAssistant:
			var parts []genai.Part
			if m.Content != "" {
				parts = append(parts, genai.Text(m.Content))
			}
			for _, call := range m.ToolCalls {
				args := map[string]any{}
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &args); err != nil {
						return nil, nil, fmt.Errorf("decoding arguments of %s: %w", call.Name, err)
					}
				}
				names[call.ID] = call.Name
				parts = append(parts, genai.FunctionCall{Name: call.Name, Args: args})
			}
			if len(parts) > 0 {
				appendParts("model", parts...)
			}
		case RoleTool:
			name := m.Name
			if name == "" {
				name = names[m.ToolCallID]
			}
			appendParts("user", genai.FunctionResponse{Name: name, Response: toolResponse(m.Content)})
		default:
			return nil, nil, fmt.Errorf("unknown role %q", m.Role)
		}
	}

	if len(contents) == 0 {
		return nil, nil, errors.New("no messages to send")
	}
	if contents[len(contents)-1].Role != "user" {
		return nil, nil, errors.New("last message must come from the user or a tool")
	}
	return system, contents, nil
}

// toolResponse wraps a tool result as the object Gemini expects.
func toolResponse(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		return obj
	}
	return map[string]any{"result": content}
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

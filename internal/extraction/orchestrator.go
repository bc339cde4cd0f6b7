// Package extraction turns one piece of unstructured input into stored
// receipts by running a bounded tool-calling loop against the reasoning port.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/receipt-assistant/internal/receipt"
	"github.com/zombor/receipt-assistant/internal/reasoning"
	"github.com/zombor/receipt-assistant/internal/scanning"
	"github.com/zombor/receipt-assistant/internal/speech"
)

// DefaultMaxRounds caps completion calls per extraction
const DefaultMaxRounds = 3

// Attachment is media that came with the user's message
type Attachment struct {
	Data        []byte
	ContentType string
}

// Input is one user turn. Text may accompany an attachment as a caption.
type Input struct {
	Text  string
	Image *Attachment
	Audio *Attachment
}

// Result is the outcome of an extraction
type Result struct {
	// Reply is the text to show the user
	Reply string
	// Receipts holds what was stored this turn, in save order
	Receipts []*receipt.Receipt
	// Rounds is the number of completion calls made
	Rounds int
}

// Config tunes the loop
type Config struct {
	MaxRounds    int
	Temperature  *float64
	MaxTokens    *int
	VisionPrompt string
}

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.VisionPrompt == "" {
		c.VisionPrompt = scanning.DefaultPrompt
	}
	return c
}

// Orchestrator runs extractions. It holds no per-turn state and is safe for
// concurrent use when its ports are.
type Orchestrator struct {
	reasoner    reasoning.Reasoner
	store       receipt.DB
	analyzer    scanning.Analyzer
	transcriber speech.Transcriber
	cfg         Config
	ids         reasoning.IDGenerator
}

// New creates an Orchestrator. analyzer and transcriber may be nil, in which
// case image or audio attachments are never offered to the model.
func New(reasoner reasoning.Reasoner, store receipt.DB, analyzer scanning.Analyzer, transcriber speech.Transcriber, cfg Config) *Orchestrator {
	return NewWithIDs(reasoner, store, analyzer, transcriber, cfg, reasoning.NewIDGenerator())
}

// NewWithIDs creates an Orchestrator with a custom tool-call id source for testing
func NewWithIDs(reasoner reasoning.Reasoner, store receipt.DB, analyzer scanning.Analyzer, transcriber speech.Transcriber, cfg Config, ids reasoning.IDGenerator) *Orchestrator {
	return &Orchestrator{
		reasoner:    reasoner,
		store:       store,
		analyzer:    analyzer,
		transcriber: transcriber,
		cfg:         cfg.withDefaults(),
		ids:         ids,
	}
}

// Extract runs the loop for one input. Provider, validation and persistence
// failures end the loop and are returned unformatted; the caller decides how
// to word them.
func (o *Orchestrator) Extract(ctx context.Context, in Input) (*Result, error) {
	tools := o.toolsFor(in)
	defs := make([]reasoning.Tool, len(tools))
	handlers := make(map[string]handler, len(tools))
	for i, t := range tools {
		defs[i] = t.def
		handlers[t.def.Name] = t.run
	}

	messages := []reasoning.Message{
		{Role: reasoning.RoleSystem, Content: SystemPrompt},
		{Role: reasoning.RoleUser, Content: userMessage(in)},
	}
	state := &turn{input: in}
	result := &Result{}

	for round := 1; round <= o.cfg.MaxRounds; round++ {
		result.Rounds = round
		resp, err := o.reasoner.Complete(ctx, &reasoning.Request{
			Messages:    messages,
			Tools:       defs,
			ToolChoice:  reasoning.ToolChoiceAuto,
			Temperature: o.cfg.Temperature,
			MaxTokens:   o.cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}

		if len(resp.ToolCalls) == 0 {
			result.Reply = resp.Content
			return result, nil
		}

		// Reasoners outside the reasoning package may still omit ids.
		calls := make([]reasoning.ToolCall, len(resp.ToolCalls))
		copy(calls, resp.ToolCalls)
		calls = reasoning.EnsureIDs(calls, o.ids)
		messages = append(messages, reasoning.Message{
			Role:      reasoning.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: calls,
		})

		for _, call := range calls {
			content, err := o.dispatch(ctx, state, handlers, call)
			if err != nil {
				return nil, fmt.Errorf("round %d: %s: %w", round, call.Name, err)
			}
			messages = append(messages, reasoning.Message{
				Role:       reasoning.RoleTool,
				Content:    content,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}

		if len(state.saved) > 0 {
			result.Receipts = state.saved
			result.Reply = confirmation(state.saved)
			return result, nil
		}
	}

	slog.Warn("Extraction hit the round cap", "rounds", o.cfg.MaxRounds)
	result.Reply = FallbackReply
	return result, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, t *turn, handlers map[string]handler, call reasoning.ToolCall) (string, error) {
	run, ok := handlers[call.Name]
	if !ok {
		slog.Warn("Model requested an unknown tool", "tool", call.Name, "call_id", call.ID)
		return unknownToolResult, nil
	}

	slog.Debug("Running tool", "tool", call.Name, "call_id", call.ID)
	out, err := run(ctx, t, call.Arguments)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding tool result: %w", err)
	}
	return string(data), nil
}

// confirmation is built from the stored receipts, never from model prose.
func confirmation(saved []*receipt.Receipt) string {
	parts := make([]string, len(saved))
	for i, r := range saved {
		parts[i] = receipt.Summary(r)
	}
	return strings.Join(parts, "\n\n")
}

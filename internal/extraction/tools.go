package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/receipt"
	"github.com/zombor/receipt-assistant/internal/reasoning"
	"github.com/zombor/receipt-assistant/internal/scanning"
	"github.com/zombor/receipt-assistant/internal/speech"
)

// Tool names offered to the reasoning engine
const (
	ToolSaveReceipt   = "save_data_to_db"
	ToolSpending      = "get_spending_for_item"
	ToolReadImage     = "extract_data_from_image"
	ToolTranscribe    = "transcribe_audio"
	unknownToolResult = `{"error":"unknown function"}`
)

var spendingParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"item_name": {"type": "string", "description": "The name of the item to query for spending, e.g. 'soda', 'milk'."},
		"days": {"type": "integer", "description": "Only count purchases from the last N days. Omit for all time."}
	},
	"required": ["item_name"]
}`)

var imageParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"prompt": {"type": "string", "description": "Optional instructions for reading the image."}
	}
}`)

var emptyParameters = json.RawMessage(`{"type": "object", "properties": {}}`)

// turn is the state of one extraction shared by the tool handlers
type turn struct {
	input Input
	saved []*receipt.Receipt
}

// handler runs one tool call and returns the value reported back to the
// model. A returned error aborts the extraction.
type handler func(ctx context.Context, t *turn, args json.RawMessage) (any, error)

type tool struct {
	def reasoning.Tool
	run handler
}

// toolsFor lists the tools usable for in. Media tools are only offered when
// the matching attachment and capability are present.
func (o *Orchestrator) toolsFor(in Input) []tool {
	tools := []tool{
		{
			def: reasoning.Tool{
				Name:        ToolSaveReceipt,
				Description: "Takes structured JSON data of receipt items and saves it to the database.",
				Parameters:  receipt.Schema(),
			},
			run: o.saveReceipt,
		},
		{
			def: reasoning.Tool{
				Name:        ToolSpending,
				Description: "Get the total amount of money spent on a specific item, optionally within the last N days.",
				Parameters:  spendingParameters,
			},
			run: o.querySpending,
		},
	}
	if in.Image != nil && o.analyzer != nil {
		tools = append(tools, tool{
			def: reasoning.Tool{
				Name:        ToolReadImage,
				Description: "Reads the text of the receipt image the user attached.",
				Parameters:  imageParameters,
			},
			run: o.readImage,
		})
	}
	if in.Audio != nil && o.transcriber != nil {
		tools = append(tools, tool{
			def: reasoning.Tool{
				Name:        ToolTranscribe,
				Description: "Transcribes the voice note the user attached.",
				Parameters:  emptyParameters,
			},
			run: o.transcribeAudio,
		})
	}
	return tools
}

func (o *Orchestrator) saveReceipt(ctx context.Context, t *turn, args json.RawMessage) (any, error) {
	r, err := receipt.Parse(args)
	if err != nil {
		return nil, err
	}

	if err := o.store.SaveReceipt(ctx, r); err != nil {
		var pe *failure.PersistenceError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &failure.PersistenceError{Op: "save receipt", Err: err}
	}

	slog.Info("Saved receipt", "receipt_id", r.ReceiptID, "items", len(r.Items), "grand_total", r.GrandTotal())
	t.saved = append(t.saved, r)
	return map[string]any{
		"success":     true,
		"receipt_id":  r.ReceiptID,
		"items_saved": len(r.Items),
	}, nil
}

type spendingArgs struct {
	ItemName string `json:"item_name"`
	Days     int    `json:"days"`
}

func (o *Orchestrator) querySpending(ctx context.Context, _ *turn, args json.RawMessage) (any, error) {
	var a spendingArgs
	if err := json.Unmarshal(args, &a); err != nil || a.ItemName == "" {
		return map[string]any{"error": "item_name is required"}, nil
	}

	total, err := o.store.QuerySpending(ctx, a.ItemName, a.Days)
	if err != nil {
		return nil, &failure.PersistenceError{Op: "query spending", Err: err}
	}
	return map[string]any{
		"item_name":   a.ItemName,
		"days":        a.Days,
		"total_spent": total,
	}, nil
}

func (o *Orchestrator) readImage(ctx context.Context, t *turn, args json.RawMessage) (any, error) {
	var a struct {
		Prompt string `json:"prompt"`
	}
	_ = json.Unmarshal(args, &a)

	prompt := o.cfg.VisionPrompt
	if a.Prompt != "" {
		prompt = prompt + "\n\n" + a.Prompt
	}

	img := t.input.Image
	if !scanning.IsSupported(img.ContentType) {
		return nil, &failure.UnsupportedInputError{MediaType: img.ContentType}
	}
	analysis, err := o.analyzer.Analyze(ctx, img.Data, img.ContentType, prompt)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return map[string]any{"text": analysis.Text}, nil
}

func (o *Orchestrator) transcribeAudio(ctx context.Context, t *turn, _ json.RawMessage) (any, error) {
	audio := t.input.Audio
	format, ok := speech.FormatFromMIME(audio.ContentType)
	if !ok || !speech.Supports(o.transcriber, format) {
		return nil, &failure.UnsupportedInputError{MediaType: audio.ContentType}
	}
	transcription, err := o.transcriber.Transcribe(ctx, audio.Data, format)
	if err != nil {
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}
	out := map[string]any{"text": transcription.Text}
	if transcription.Language != "" {
		out["language"] = transcription.Language
	}
	return out, nil
}

package mcpserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zombor/receipt-assistant/internal/receipt"
)

// RecordInput is the input schema for record_purchase.
type RecordInput struct {
	Text string `json:"text" jsonschema:"a description of the purchase, e.g. 2 bottles of milk for $5 each"`
}

// RecordOutput is the output schema for record_purchase.
type RecordOutput struct {
	Reply      string  `json:"reply"`
	Saved      bool    `json:"saved"`
	ReceiptIDs []int64 `json:"receipt_ids,omitempty"`
	GrandTotal float64 `json:"grand_total,omitempty"`
}

// SpendingInput is the input schema for query_spending.
type SpendingInput struct {
	ItemName string `json:"item_name" jsonschema:"substring of the item name, matched case-insensitively"`
	Days     int    `json:"days,omitempty" jsonschema:"only count the last N days; omit for all time"`
}

// SpendingOutput is the output schema for query_spending.
type SpendingOutput struct {
	ItemName   string  `json:"item_name"`
	Days       int     `json:"days"`
	TotalSpent float64 `json:"total_spent"`
}

// ListInput is the input schema for list_items.
type ListInput struct {
	ReceiptID *int64 `json:"receipt_id,omitempty" jsonschema:"only list items of this receipt"`
}

// ListOutput is the output schema for list_items.
type ListOutput struct {
	Items []receipt.Item `json:"items"`
	Count int            `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "record_purchase",
		Description: "Record a purchase described in natural language",
	}, s.handleRecord)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_spending",
		Description: "Total amount spent on items whose name contains item_name",
	}, s.handleSpending)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_items",
		Description: "List recorded items in the order they were saved",
	}, s.handleList)
}

func (s *Server) handleRecord(ctx context.Context, _ *mcp.CallToolRequest, input RecordInput) (*mcp.CallToolResult, RecordOutput, error) {
	if input.Text == "" {
		return nil, RecordOutput{}, errors.New("text is required")
	}

	reply := s.assistant.HandleText(ctx, input.Text)
	out := RecordOutput{Reply: reply.Text, Saved: len(reply.Receipts) > 0}
	for _, r := range reply.Receipts {
		out.ReceiptIDs = append(out.ReceiptIDs, r.ReceiptID)
		out.GrandTotal += r.GrandTotal()
	}
	return nil, out, nil
}

func (s *Server) handleSpending(ctx context.Context, _ *mcp.CallToolRequest, input SpendingInput) (*mcp.CallToolResult, SpendingOutput, error) {
	if input.ItemName == "" {
		return nil, SpendingOutput{}, errors.New("item_name is required")
	}

	total, err := s.store.QuerySpending(ctx, input.ItemName, input.Days)
	if err != nil {
		return nil, SpendingOutput{}, err
	}
	return nil, SpendingOutput{ItemName: input.ItemName, Days: input.Days, TotalSpent: total}, nil
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	items, err := s.store.GetItems(ctx, input.ReceiptID)
	if err != nil {
		return nil, ListOutput{}, err
	}
	return nil, ListOutput{Items: items, Count: len(items)}, nil
}

// Package mcpserver exposes the assistant as MCP tools so desktop agents can
// record purchases and ask about spending.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zombor/receipt-assistant/internal/assistant"
	"github.com/zombor/receipt-assistant/internal/receipt"
)

// TextHandler records purchases described in text
type TextHandler interface {
	HandleText(ctx context.Context, text string) assistant.Reply
}

// Server is the MCP server for the receipt assistant.
type Server struct {
	assistant TextHandler
	store     receipt.DB
	server    *mcp.Server
}

// NewServer creates an MCP server over the assistant and its store.
func NewServer(a TextHandler, store receipt.DB, version string) *Server {
	impl := &mcp.Implementation{
		Name:    "receipt-assistant",
		Version: version,
	}

	s := &Server{
		assistant: a,
		store:     store,
		server:    mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

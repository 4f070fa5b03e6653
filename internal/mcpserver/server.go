// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes read-only ledger tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ledger/internal/apperr"
	"github.com/starford/ledger/internal/ledger"
	"github.com/starford/ledger/internal/models"
)

const searchLimit = 20

// Server wraps the MCP server with ledger tools.
type Server struct {
	mcp *server.MCPServer
	svc *ledger.Service
}

// New creates a new MCP server with all ledger tools registered.
func New(svc *ledger.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ledger",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_store",
		mcp.WithDescription("Show a record store's capacity and current record count."),
		mcp.WithString("store", mcp.Required(), mcp.Description("Store ID")),
	), s.getStore)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read one record (author, data, timestamp) from a store."),
		mcp.WithString("store", mcp.Required(), mcp.Description("Store ID")),
		mcp.WithString("index", mcp.Required(), mcp.Description("Zero-based record index (decimal)")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List records of a store, optionally only those written by one author."),
		mcp.WithString("store", mcp.Required(), mcp.Description("Store ID")),
		mcp.WithString("author", mcp.Description("Optional author identity (64 hex characters)")),
		mcp.WithString("limit", mcp.Description("Optional page size (decimal)")),
		mcp.WithString("offset", mcp.Description("Optional page offset (decimal)")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Full-text search through record data across all stores."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("get_record_format",
		mcp.WithDescription("Describes how records, authors and store capacity work in the ledger."),
	), s.getRecordFormat)

	s.mcp.AddResource(
		mcp.NewResource(recordFormatURI, "Record Format",
			mcp.WithResourceDescription("Record semantics and limits of the ledger."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(store string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("store not found: %s", store))
	case errors.Is(err, apperr.ErrInvalidRecordIndex):
		return mcp.NewToolResultError("record index out of range")
	}
	return mcp.NewToolResultError(err.Error())
}

// optionalInt reads an optional decimal argument.
func optionalInt(req mcp.CallToolRequest, name string) (int, error) {
	v, err := req.RequireString(name)
	if err != nil || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (s *Server) getStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("store")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.svc.GetStore(ctx, id)
	if err != nil {
		return errorResult(id, err), nil
	}
	return jsonResult(info), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("store")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idx, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return mcp.NewToolResultError("index must be a non-negative integer"), nil
	}
	rec, err := s.svc.GetRecord(ctx, id, idx)
	if err != nil {
		return errorResult(id, err), nil
	}
	return jsonResult(rec), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("store")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var author models.Identity
	if a, aErr := req.RequireString("author"); aErr == nil && a != "" {
		if author, err = models.ParseIdentity(a); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	limit, err := optionalInt(req, "limit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	offset, err := optionalInt(req, "offset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	recs, total, err := s.svc.ListRecords(ctx, id, author, limit, offset)
	if err != nil {
		return errorResult(id, err), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("no records found"), nil
	}
	return jsonResult(map[string]any{"records": recs, "total": total}), nil
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, searchLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getRecordFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormat), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      recordFormatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormat,
		},
	}, nil
}

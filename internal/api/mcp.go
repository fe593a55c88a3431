package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/tenderscope/internal/tender"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline       Pipeline
	Version        string
	MaxSearchLimit int
}

// NewMCPServer creates an MCP server exposing search, health, validation
// and listing over the tender dataset.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	if deps.MaxSearchLimit <= 0 {
		deps.MaxSearchLimit = 100
	}

	s := server.NewMCPServer(
		Name,
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("tenderscope: semantic search and data-quality monitoring over ingested procurement tenders."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_tenders",
			mcp.WithDescription("Rank ingested tenders by semantic similarity to a free-text query."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchTenders(deps),
	)

	s.AddTool(
		mcp.NewTool("pipeline_health",
			mcp.WithDescription("Report record counts, quality score and status of the ingestion pipeline."),
		),
		mcpPipelineHealth(deps),
	)

	s.AddTool(
		mcp.NewTool("run_validation",
			mcp.WithDescription("Run every data-quality check over the current dataset and return the findings."),
		),
		mcpRunValidation(deps),
	)

	s.AddTool(
		mcp.NewTool("list_tenders",
			mcp.WithDescription("List the most recently updated tenders."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of tenders (default 50)")),
		),
		mcpListTenders(deps),
	)

	return s
}

func mcpSearchTenders(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", defaultSearchLimit)
		if limit > deps.MaxSearchLimit {
			limit = deps.MaxSearchLimit
		}

		results, err := deps.Pipeline.Search(ctx, query, limit)
		if err != nil {
			return mcpFailure("search failed", err), nil
		}
		return mcpJSON(toHits(results))
	}
}

func mcpPipelineHealth(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := deps.Pipeline.Health(ctx)
		if err != nil {
			return mcpFailure("health failed", err), nil
		}
		return mcpJSON(snap)
	}
}

func mcpRunValidation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rep, err := deps.Pipeline.Validate(ctx)
		if err != nil {
			return mcpFailure("validation failed", err), nil
		}
		return mcpJSON(rep)
	}
}

func mcpListTenders(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", defaultTendersLimit)
		ts, err := deps.Pipeline.Tenders(ctx, limit)
		if err != nil {
			return mcpFailure("listing failed", err), nil
		}
		if ts == nil {
			ts = []tender.Tender{}
		}
		return mcpJSON(ts)
	}
}

// mcpFailure reports caller errors verbatim and hides internal ones.
func mcpFailure(prefix string, err error) *mcp.CallToolResult {
	if errors.Is(err, tender.ErrInvalidArgument) || errors.Is(err, tender.ErrIngestionInProgress) {
		return mcpError(fmt.Sprintf("%s: %v", prefix, err))
	}
	if errors.Is(err, tender.ErrEmbeddingDimensionMismatch) {
		return mcpError(prefix + ": the embedding model does not match the indexed data")
	}
	return mcpError(prefix + ": internal error")
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/logbook/internal/logbook"
	"github.com/kalambet/logbook/internal/query"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *logbook.Service
	Version string
}

// mcpFilterArgs maps tool argument names to filter fields.
var mcpFilterArgs = []struct {
	arg   string
	field query.Field
	desc  string
}{
	{"date", query.FieldDate, "Only entries on this date (YYYY-MM-DD)"},
	{"category", query.FieldCategory, "Only entries with this category"},
	{"gender", query.FieldGender, "Only entries with this gender tag"},
	{"explicitness", query.FieldExplicitness, "Only entries with this explicitness tag"},
	{"moisture", query.FieldMoisture, "Only entries with this moisture tag"},
	{"person", query.FieldPerson, "Only entries with this person name"},
}

// NewMCPServer creates an MCP server with all logbook tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"logbook",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("logbook: a local, timestamped personal log with filtering and statistics."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_entry",
			mcp.WithDescription("Record a new log entry."),
			mcp.WithString("occurred_at", mcp.Description("When it happened (RFC 3339 or YYYY-MM-DDTHH:MM local time). Defaults to now.")),
			mcp.WithString("category", mcp.Description("Category label")),
			mcp.WithString("gender", mcp.Description("Gender tag")),
			mcp.WithString("explicitness", mcp.Description("Explicitness tag")),
			mcp.WithString("moisture", mcp.Description("Moisture tag")),
			mcp.WithString("person", mcp.Description("Optional person name")),
		),
		mcpAddEntry(deps),
	)

	listOpts := []mcp.ToolOption{
		mcp.WithDescription("List log entries, newest first, optionally filtered by exact field values."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 20, max 200)")),
	}
	for _, f := range mcpFilterArgs {
		listOpts = append(listOpts, mcp.WithString(f.arg, mcp.Description(f.desc)))
	}
	s.AddTool(mcp.NewTool("list_entries", listOpts...), mcpListEntries(deps))

	s.AddTool(
		mcp.NewTool("delete_entry",
			mcp.WithDescription("Delete a log entry by id. Deleting a missing id succeeds."),
			mcp.WithNumber("id", mcp.Description("Entry id"), mcp.Required()),
		),
		mcpDeleteEntry(deps),
	)

	s.AddTool(
		mcp.NewTool("stats",
			mcp.WithDescription("Return counts per day, weekday, category, tag and person, plus the latest entry."),
		),
		mcpStats(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"logbook://summary",
			"Logbook Summary",
			mcp.WithResourceDescription("Aggregated statistics over all entries as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSummary(deps),
	)

	return s
}

func mcpAddEntry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in, err := deps.Service.Input(logbook.EntryInput{
			OccurredAt:      req.GetString("occurred_at", ""),
			Category:        req.GetString("category", ""),
			GenderTag:       req.GetString("gender", ""),
			ExplicitnessTag: req.GetString("explicitness", ""),
			MoistureTag:     req.GetString("moisture", ""),
			PersonName:      req.GetString("person", ""),
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		rec, err := deps.Service.Add(ctx, in)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add entry: %v", err)), nil
		}

		e := logbook.EntryFrom(rec, deps.Service.Location())
		return mcpText(fmt.Sprintf("Added entry %d on %s at %s", e.ID, e.DateKey, e.Time)), nil
	}
}

func mcpListEntries(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 200 {
			limit = 200
		}

		preds := query.Predicates{}
		for _, f := range mcpFilterArgs {
			if v := req.GetString(f.arg, ""); v != "" {
				preds[f.field] = v
			}
		}
		if err := query.ValidateDate(preds[query.FieldDate]); err != nil {
			return mcpError(err.Error()), nil
		}

		records, err := deps.Service.History(ctx, preds)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list entries: %v", err)), nil
		}
		if len(records) > limit {
			records = records[:limit]
		}

		b, err := json.Marshal(logbook.Entries(records, deps.Service.Location()))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal entries: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpDeleteEntry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		if err := deps.Service.Delete(ctx, int64(id)); err != nil {
			return mcpError(fmt.Sprintf("failed to delete entry: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Deleted entry %d", id)), nil
	}
}

func mcpStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := summaryJSON(ctx, deps)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSummary(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := summaryJSON(ctx, deps)
		if err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func summaryJSON(ctx context.Context, deps MCPDeps) ([]byte, error) {
	sum, err := deps.Service.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}
	return b, nil
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

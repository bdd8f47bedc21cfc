// trawl-mcp serves the published dataset over stdio MCP so an agent
// can query scrape results without touching the files directly. It is
// read-only: two tools, the latest run summary and a substring product
// search. No network, no browser.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/trawlkit/trawl/models"
	"github.com/trawlkit/trawl/store"
)

const defaultSearchLimit = 20

func main() {
	dataDir := os.Getenv("TRAWL_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	catalogue := store.NewCatalogue(dataDir)

	s := server.NewMCPServer(
		"trawl",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	latestRunTool := mcp.NewTool("latest_run",
		mcp.WithDescription("Return the metadata of the most recent published scrape run: timestamp, total items, pages scraped, query used, and why the traversal stopped."),
	)
	s.AddTool(latestRunTool, handleLatestRun(catalogue))

	searchTool := mcp.NewTool("search_products",
		mcp.WithDescription("Search the published product dataset by substring match on name, brand, and category. Returns matching records as JSON."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Substring to match, case-insensitive"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records to return (default: 20)"),
		),
	)
	s.AddTool(searchTool, handleSearchProducts(catalogue))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleLatestRun(catalogue *store.Catalogue) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sum, err := catalogue.ReadSummary(ctx)
		if err != nil {
			return mcp.NewToolResultError("no run has been published yet"), nil
		}
		out, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode summary: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

func handleSearchProducts(catalogue *store.Catalogue) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		limit := request.GetInt("limit", defaultSearchLimit)
		if limit < 1 {
			limit = defaultSearchLimit
		}

		records, err := catalogue.ReadDataset(ctx)
		if err != nil {
			return mcp.NewToolResultError("no dataset has been published yet"), nil
		}

		matches := searchRecords(records, query, limit)
		out, err := json.MarshalIndent(matches, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

// searchRecords filters by case-insensitive substring on the text
// fields a shopper would search by.
func searchRecords(records []models.Record, query string, limit int) []models.Record {
	needle := strings.ToLower(strings.TrimSpace(query))
	matches := make([]models.Record, 0, limit)
	for _, rec := range records {
		if len(matches) >= limit {
			break
		}
		haystack := strings.ToLower(rec.Name + " " + rec.Brand + " " + rec.Category)
		if strings.Contains(haystack, needle) {
			matches = append(matches, rec)
		}
	}
	return matches
}

package builtin

import (
	"context"
	"fmt"

	"github.com/virattt/dexter-sub002/internal/tools"
)

// WebSearchArgs is the parameter contract for the web-search tool.
type WebSearchArgs struct {
	Query      string `json:"query" jsonschema:"required,description=Search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results to return"`
}

type webSearchTool struct{}

// NewWebSearchTool returns the web-search tool stub. Like the finance
// tools, this is a pure-function contract; the actual search-provider
// integration is an external collaborator per spec §1.
func NewWebSearchTool() tools.Tool { return webSearchTool{} }

func (webSearchTool) Name() string          { return "web_search" }
func (webSearchTool) Description() string   { return "Search the web and return a short list of results." }
func (webSearchTool) Capabilities() []string { return []string{} }
func (webSearchTool) JSONSchema() map[string]any { return schemaFor(WebSearchArgs{}) }

func (webSearchTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	var a WebSearchArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	if a.Query == "" {
		return "", fmt.Errorf("web_search: query is required")
	}
	return fmt.Sprintf("no results for %q (external search provider not configured)", a.Query), nil
}

// FetchArgs is the parameter contract for the URL-fetch tool.
type FetchArgs struct {
	URL string `json:"url" jsonschema:"required,description=URL to fetch"`
}

type fetchTool struct{}

// NewFetchTool returns the URL-fetch tool stub.
func NewFetchTool() tools.Tool { return fetchTool{} }

func (fetchTool) Name() string          { return "fetch_url" }
func (fetchTool) Description() string   { return "Fetch and return the text content of a URL." }
func (fetchTool) Capabilities() []string { return nil }
func (fetchTool) JSONSchema() map[string]any { return schemaFor(FetchArgs{}) }

func (fetchTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	var a FetchArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", fmt.Errorf("fetch_url: %w", err)
	}
	if a.URL == "" {
		return "", fmt.Errorf("fetch_url: url is required")
	}
	return fmt.Sprintf("fetch of %s not performed (sandboxed filesystem/network helpers are an external collaborator)", a.URL), nil
}

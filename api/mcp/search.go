package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/meridianlabs/mnemo/pkg/memory"
)

var (
	memorySearchToolName    = "memory_search"
	memorySearchDescription = "Search durable memory for facts relevant to a query. Searches the semantic (long-term, verified) tier by default; set tier to \"episodic\" for recent, unverified facts. Use this to recall persistent knowledge from past conversations."
)

// MemorySearchInput represents the input arguments for the memory_search tool.
type MemorySearchInput struct {
	Query string `json:"query" jsonschema:"the search query text to find relevant facts"`
	Tier  string `json:"tier,omitempty" jsonschema:"memory tier to search: semantic (default) or episodic"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// MemorySearchOutput represents the structured output of the search tool.
type MemorySearchOutput struct {
	Query   string         `json:"query"`
	Tier    string         `json:"tier"`
	Results []memory.Match `json:"results"`
	Count   int            `json:"count"`
}

// handleMemorySearch processes a memory search request.
func (s *Server) handleMemorySearch(ctx context.Context, _ *mcp.CallToolRequest, input MemorySearchInput) (*mcp.CallToolResult, MemorySearchOutput, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = 5
	}

	tierName := input.Tier
	if tierName == "" {
		tierName = "semantic"
	}

	var tier *memory.Tier
	switch tierName {
	case "semantic":
		tier = s.config.Semantic
	case "episodic":
		tier = s.config.Episodic
	}
	if tier == nil {
		return toolError(fmt.Sprintf("tier %q is not available", tierName)), MemorySearchOutput{}, nil
	}

	matches, err := tier.Search(ctx, input.Query, topK, nil)
	if err != nil {
		return toolError(fmt.Sprintf("Memory search failed: %v", err)), MemorySearchOutput{}, nil
	}
	if matches == nil {
		matches = []memory.Match{}
	}

	output := MemorySearchOutput{
		Query:   input.Query,
		Tier:    tierName,
		Results: matches,
		Count:   len(matches),
	}
	return toolResult(output)
}

// toolError wraps a message in an error tool result.
func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}

// toolResult serializes the structured output as JSON for the text field.
// Per MCP spec: tools returning structured content should also return
// serialized JSON in a TextContent block for backwards compatibility.
func toolResult[T any](output T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		var zero T
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

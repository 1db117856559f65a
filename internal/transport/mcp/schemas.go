package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
)

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Rank indexed documents for a natural language or keyword query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return",
					"default":     request.DefaultLimit,
					"minimum":     1,
					"maximum":     request.MaxLimit,
				},
				"alpha": map[string]any{
					"type":        "number",
					"description": "Semantic weight for hybrid search (0 = keyword only, 1 = semantic only)",
					"default":     request.DefaultAlpha,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"search_type": map[string]any{
					"type":        "string",
					"description": "Search strategy",
					"enum":        []string{"hybrid", "semantic", "keyword"},
					"default":     "hybrid",
				},
			},
			Required: []string{"query"},
		},
	}
}

// addDocumentTool returns the tool definition for add_document
func addDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_document",
		Description: "Embed and index a new document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Document id (letters, digits, '_' and '-'); generated when omitted",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "Document title",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Document text",
				},
				"metadata": map[string]any{
					"type":        "object",
					"description": "Flat map of string, number or boolean values",
				},
			},
			Required: []string{"content"},
		},
	}
}

// deleteDocumentTool returns the tool definition for delete_document
func deleteDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document from the store and both indices",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Document id",
				},
			},
			Required: []string{"id"},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Refit the vocabulary and rebuild both indices from the document store",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
}

// indexStatsTool returns the tool definition for index_stats
func indexStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_stats",
		Description: "Report corpus size, vocabulary size, embedding dimension and search counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
}

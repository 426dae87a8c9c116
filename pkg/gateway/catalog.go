package gateway

// Tool names as advertised to clients.
const (
	ToolSearch        = "notion_search"
	ToolGetPage       = "notion_get_page"
	ToolQueryDatabase = "notion_query_database"
)

// Tool is one catalog entry.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Catalog returns the fixed tool catalog. Every authenticated caller sees the
// full catalog; permissions gate invocation, not discovery.
func Catalog() []Tool {
	return []Tool{
		{
			Name:        ToolSearch,
			Description: "Search for pages in the Notion workspace. Only pages the caller is permitted to access are returned.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query text",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolGetPage,
			Description: "Retrieve a Notion page's metadata and content blocks by page ID.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"page_id": map[string]any{
						"type":        "string",
						"description": "The ID of the page to retrieve",
					},
				},
				"required": []string{"page_id"},
			},
		},
		{
			Name:        ToolQueryDatabase,
			Description: "Query a Notion database by database ID with an optional filter.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"database_id": map[string]any{
						"type":        "string",
						"description": "The ID of the database to query",
					},
					"filter": map[string]any{
						"type":        "object",
						"description": "Optional Notion API filter object, passed through as-is",
					},
				},
				"required": []string{"database_id"},
			},
		},
	}
}

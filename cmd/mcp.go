package cmd

import (
	"context"
	"fmt"
	"strings"

	"coderag/internal/index"
	"coderag/internal/rag"
	"coderag/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing codebase search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root, err := projectRoot(nil)
	if err != nil {
		return err
	}
	st, err := openStore(root, false)
	if err != nil {
		return err
	}
	defer st.Close()

	emb, err := newEmbedder(ctx)
	if err != nil {
		return err
	}
	retriever := rag.NewRetriever(st, emb, cfg.SearchCacheSize)
	coord := newCoordinator(root, st, emb)

	s := newMCPServer(retriever, coord, st)
	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func newMCPServer(retriever *rag.Retriever, coord *index.Coordinator, st store.Store) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("coderag", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.AddTool(searchCodebaseTool(), makeSearchHandler(retriever))
	s.AddTool(indexStatusTool(), makeStatusHandler(coord))
	s.AddTool(listIndexedFilesTool(), makeListFilesHandler(st))
	return s
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodebaseTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Semantically search the indexed codebase by vector similarity. Returns relevant code chunks with file paths and line numbers."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query describing the code to find"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 10)"),
		),
	)
}

func indexStatusTool() mcp.Tool {
	return mcp.NewTool("index_status",
		mcp.WithDescription("Report how many chunks and files are indexed and which embedding model produced them."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listIndexedFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("List all files in the index with their language and chunk count."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("language",
			mcp.Description("Optional language filter (e.g. 'go', 'python'). Case-insensitive."),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(retriever *rag.Retriever) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", 10)
		if k <= 0 {
			k = 10
		}

		results, err := retriever.Search(ctx, query, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeStatusHandler(coord *index.Coordinator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, err := coord.Status(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
		}
		model := s.EmbeddingModel
		if model == "" {
			model = "(none)"
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"## Index status\n\n**Chunks:** %d  \n**Files:** %d  \n**Ledger entries:** %d  \n**Embedding model:** %s\n",
			s.Chunks, len(s.Files), s.LedgerEntries, model)), nil
	}
}

func makeListFilesHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		langFilter := strings.ToLower(req.GetString("language", ""))

		files, err := st.ListFiles(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}

		var filtered []store.FileSummary
		for _, f := range files {
			if langFilter == "" || registry.LanguageName(f.Path) == langFilter {
				filtered = append(filtered, f)
			}
		}

		var sb strings.Builder
		if langFilter != "" {
			fmt.Fprintf(&sb, "## Indexed files (%d, language: %s)\n\n", len(filtered), langFilter)
		} else {
			fmt.Fprintf(&sb, "## Indexed files (%d)\n\n", len(filtered))
		}

		for _, f := range filtered {
			fmt.Fprintf(&sb, "- **%s** (%s, %d chunks)\n", f.Path, registry.LanguageName(f.Path), f.Chunks)
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, results []store.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(results))

	for i, r := range results {
		c := r.Chunk
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, c.FilePath)
		fmt.Fprintf(&sb, "**Kind:** %s  \n**Name:** %s  \n**Lines:** %d-%d  \n**Distance:** %.4f\n\n",
			c.Kind, c.Name, c.StartLine, c.EndLine, r.Distance)
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", fenceLanguage(c.FilePath), c.Content)
	}

	return sb.String()
}

package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/commands"
	"github.com/fyrsmithlabs/docmanager/internal/documents"
)

const (
	defaultSearchResults = 10
	maxSearchResults     = 100
	defaultToolResults   = 5
	topSourceCount       = 15
)

// instrument wraps a tool handler with invocation metrics.
func instrument[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		done := s.metrics.Track(ctx, name)
		res, out, err := h(ctx, req, in)
		done(err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		}
		return res, out, err
	}
}

func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() error {
	for _, cmd := range s.commands.Commands() {
		if err := s.registerCommandTool(cmd); err != nil {
			return err
		}
	}
	if err := s.registerDocumentTools(); err != nil {
		return err
	}
	return s.registerSearchTools()
}

// ===== COMMAND TOOLS =====

type commandInput struct {
	Argument string `json:"argument,omitempty" jsonschema:"Command argument"`
}

type commandOutput struct {
	Output string `json:"output" jsonschema:"Command output shown to the user verbatim"`
}

func (s *Server) registerCommandTool(cmd commands.Command) error {
	meta := &ToolMetadata{
		Name:        cmd.Name,
		Description: cmd.Description,
		Category:    CategoryCommand,
		Destructive: cmd.Name == commands.RemoveDocument || cmd.Name == commands.ClearAllDocuments,
		Keywords:    []string{cmd.Argument, "documents", "rabbit hole"},
	}
	if err := s.toolRegistry.Register(meta); err != nil {
		return err
	}

	run := cmd.Run
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        cmd.Name,
		Description: fmt.Sprintf("%s Argument: %s.", cmd.Description, cmd.Argument),
	}, instrument(s, cmd.Name, func(ctx context.Context, _ *mcp.CallToolRequest, args commandInput) (*mcp.CallToolResult, commandOutput, error) {
		out := run(ctx, s.caller, args.Argument)
		return textResult("%s", out), commandOutput{Output: out}, nil
	}))
	return nil
}

// ===== DOCUMENT TOOLS =====

type documentSearchInput struct {
	Query string `json:"query" jsonschema:"Text to search for in chunk content and source names"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 10)"`
}

type searchHit struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Score      float32 `json:"score"`
	UploadDate string  `json:"upload_date"`
	Preview    string  `json:"preview"`
}

type documentSearchOutput struct {
	Query   string      `json:"query" jsonschema:"Search query used"`
	Results []searchHit `json:"results" jsonschema:"Matching chunks, best first"`
	Count   int         `json:"count" jsonschema:"Number of chunks returned"`
}

type documentListInput struct {
	Filter string `json:"filter,omitempty" jsonschema:"Case-insensitive substring of the source name"`
}

type documentSummary struct {
	Source          string `json:"source"`
	Chunks          int    `json:"chunks"`
	TotalCharacters int    `json:"total_characters"`
	UploadDate      string `json:"upload_date"`
}

type documentListOutput struct {
	Documents []documentSummary `json:"documents" jsonschema:"Documents, most recent upload first"`
	Count     int               `json:"count" jsonschema:"Number of documents"`
}

type documentStatsInput struct{}

type sourceSummary struct {
	Source     string `json:"source"`
	Chunks     int    `json:"chunks"`
	Characters int    `json:"characters"`
}

type documentStatsOutput struct {
	TotalDocuments    int                        `json:"total_documents"`
	TotalChunks       int                        `json:"total_chunks"`
	TotalCharacters   int                        `json:"total_characters"`
	AverageChunkSize  int                        `json:"average_chunk_size"`
	EstimatedMemoryMB float64                    `json:"estimated_memory_mb"`
	Distribution      documents.SizeDistribution `json:"chunk_size_distribution"`
	FirstUpdate       string                     `json:"first_update"`
	LastUpdate        string                     `json:"last_update"`
	TopSources        []sourceSummary            `json:"top_sources" jsonschema:"Sources with the most chunks"`
}

func (s *Server) registerDocumentTools() error {
	for _, meta := range []*ToolMetadata{
		{Name: "document_search", Description: "Search document chunks by meaning, falling back to substring matching", Category: CategoryDocuments, Keywords: []string{"find", "query"}},
		{Name: "document_list", Description: "List uploaded documents grouped by source", Category: CategoryDocuments, Keywords: []string{"sources", "uploads"}},
		{Name: "document_stats", Description: "Collection statistics as structured data", Category: CategoryDocuments, Keywords: []string{"statistics", "memory", "size"}},
	} {
		if err := s.toolRegistry.Register(meta); err != nil {
			return err
		}
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_search",
		Description: "Search document chunks by meaning, falling back to substring matching",
	}, instrument(s, "document_search", func(ctx context.Context, _ *mcp.CallToolRequest, args documentSearchInput) (*mcp.CallToolResult, documentSearchOutput, error) {
		limit := args.Limit
		if limit <= 0 {
			limit = defaultSearchResults
		}
		if limit > maxSearchResults {
			limit = maxSearchResults
		}
		results, err := s.docs.Search(ctx, args.Query, documents.SearchOptions{K: limit})
		if err != nil {
			return nil, documentSearchOutput{}, fmt.Errorf("document search failed: %w", err)
		}

		now := time.Now()
		out := documentSearchOutput{Query: args.Query, Results: make([]searchHit, 0, len(results))}
		for _, r := range results {
			rec := documents.Normalize(r.Point, now)
			out.Results = append(out.Results, searchHit{
				ID:         rec.ID,
				Source:     rec.Source,
				Score:      r.Score,
				UploadDate: rec.UploadDate,
				Preview:    rec.ContentPreview,
			})
		}
		out.Count = len(out.Results)
		return textResult("Found %d chunks for query: %s", out.Count, args.Query), out, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_list",
		Description: "List uploaded documents grouped by source",
	}, instrument(s, "document_list", func(ctx context.Context, _ *mcp.CallToolRequest, args documentListInput) (*mcp.CallToolResult, documentListOutput, error) {
		docs, err := s.docs.List(ctx, args.Filter)
		if err != nil {
			return nil, documentListOutput{}, fmt.Errorf("document list failed: %w", err)
		}
		out := documentListOutput{Documents: make([]documentSummary, 0, len(docs)), Count: len(docs)}
		for _, d := range docs {
			out.Documents = append(out.Documents, documentSummary{
				Source:          d.Source,
				Chunks:          d.ChunkCount(),
				TotalCharacters: d.TotalCharacters,
				UploadDate:      d.UploadDate,
			})
		}
		return textResult("Found %d documents", out.Count), out, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_stats",
		Description: "Collection statistics as structured data",
	}, instrument(s, "document_stats", func(ctx context.Context, _ *mcp.CallToolRequest, _ documentStatsInput) (*mcp.CallToolResult, documentStatsOutput, error) {
		st, err := s.docs.Stats(ctx)
		if err != nil {
			return nil, documentStatsOutput{}, fmt.Errorf("document stats failed: %w", err)
		}
		out := documentStatsOutput{
			TotalDocuments:    st.TotalDocuments,
			TotalChunks:       st.TotalChunks,
			TotalCharacters:   st.TotalCharacters,
			AverageChunkSize:  st.AverageChunkSize,
			EstimatedMemoryMB: st.EstimatedMemoryMB,
			Distribution:      st.ChunkSizeDistribution,
			FirstUpdate:       st.FirstUpdate,
			LastUpdate:        st.LastUpdate,
			TopSources:        []sourceSummary{},
		}
		for _, src := range st.TopSources(topSourceCount) {
			out.TopSources = append(out.TopSources, sourceSummary{
				Source:     src.Source,
				Chunks:     src.Chunks,
				Characters: src.Characters,
			})
		}
		return textResult("%d documents, %d chunks", out.TotalDocuments, out.TotalChunks), out, nil
	}))
	return nil
}

// ===== TOOL SEARCH =====

type toolSearchInput struct {
	Query    string `json:"query" jsonschema:"Regex pattern or search query matched against tool names, descriptions and keywords"`
	Category string `json:"category,omitempty" jsonschema:"Filter results to a category (command, documents, search)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 5)"`
}

type toolMatch struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Destructive bool   `json:"destructive"`
	Score       int    `json:"score"`
}

type toolSearchOutput struct {
	Query      string      `json:"query"`
	Results    []toolMatch `json:"results"`
	Count      int         `json:"count"`
	TotalTools int         `json:"total_tools"`
}

func (s *Server) registerSearchTools() error {
	if err := s.toolRegistry.Register(&ToolMetadata{
		Name:        "tool_search",
		Description: "Find document manager tools by name, description or keyword",
		Category:    CategorySearch,
		Keywords:    []string{"discover", "help"},
	}); err != nil {
		return err
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "tool_search",
		Description: "Find document manager tools by name, description or keyword",
	}, instrument(s, "tool_search", func(_ context.Context, _ *mcp.CallToolRequest, args toolSearchInput) (*mcp.CallToolResult, toolSearchOutput, error) {
		if args.Query == "" {
			return nil, toolSearchOutput{}, fmt.Errorf("invalid query: must not be empty")
		}
		limit := args.Limit
		if limit <= 0 {
			limit = defaultToolResults
		}

		out := toolSearchOutput{Query: args.Query, Results: []toolMatch{}, TotalTools: s.toolRegistry.Count()}
		for _, r := range s.toolRegistry.Search(args.Query) {
			if args.Category != "" && string(r.Tool.Category) != args.Category {
				continue
			}
			out.Results = append(out.Results, toolMatch{
				Name:        r.Tool.Name,
				Description: r.Tool.Description,
				Category:    string(r.Tool.Category),
				Destructive: r.Tool.Destructive,
				Score:       r.Score,
			})
			if len(out.Results) == limit {
				break
			}
		}
		out.Count = len(out.Results)
		return textResult("Found %d tools matching %q", out.Count, args.Query), out, nil
	}))
	return nil
}

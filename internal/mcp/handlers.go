package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/markdave123-py/CodeInsight/internal/agent"
)

type SearchInput struct {
	Query string `json:"query" jsonschema:"what to look for in the uploaded code"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of passages to return, default 5"`
}

type Passage struct {
	FileName   string  `json:"file_name"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

type SearchOutput struct {
	Passages []Passage `json:"passages"`
	Message  string    `json:"message,omitempty"`
}

type ListInput struct{}

type DocumentInfo struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type ListOutput struct {
	Documents []DocumentInfo `json:"documents"`
}

func makeSearchHandler(s agent.Searcher, collection string) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
		if in.Query == "" {
			return nil, SearchOutput{}, fmt.Errorf("query is required")
		}
		topK := in.TopK
		if topK <= 0 {
			topK = 5
		}

		hits, err := s.Search(ctx, collection, in.Query, topK)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
		}
		out := SearchOutput{Passages: make([]Passage, 0, len(hits))}
		for _, h := range hits {
			out.Passages = append(out.Passages, Passage{FileName: h.FileName, DocumentID: h.DocumentID, Score: h.Score, Text: h.Text})
		}
		if len(out.Passages) == 0 {
			out.Message = "No relevant passages found. Try broader search terms."
		}
		return nil, out, nil
	}
}

func makeListHandler(docs DocumentLister, collection string) func(
	context.Context, *mcp.CallToolRequest, ListInput,
) (*mcp.CallToolResult, ListOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListInput) (*mcp.CallToolResult, ListOutput, error) {
		list := docs.List(ctx, collection)
		out := ListOutput{Documents: make([]DocumentInfo, 0, len(list))}
		for _, d := range list {
			out.Documents = append(out.Documents, DocumentInfo{ID: d.ID, FileName: d.FileName, Status: d.Status, CreatedAt: d.CreatedAt})
		}
		return nil, out, nil
	}
}

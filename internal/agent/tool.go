package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

const (
	RetrievalToolName = "rag_search"
	defaultTopK       = 5
	maxTopK           = 20
)

// Searcher finds the chunks of a collection closest to a query.
type Searcher interface {
	Search(ctx context.Context, collection, query string, topK int) ([]models.ScoredChunk, error)
}

// RetrievalTool searches one user's collection.
type RetrievalTool struct {
	searcher   Searcher
	collection string
	log        *slog.Logger
}

func NewRetrievalTool(s Searcher, collection string, logger *slog.Logger) *RetrievalTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalTool{searcher: s, collection: collection, log: logger}
}

func (t *RetrievalTool) Collection() string { return t.collection }

func (t *RetrievalTool) Spec() core.ToolSpec {
	return core.ToolSpec{
		Name:        RetrievalToolName,
		Description: "Search the user's uploaded code and documents. Use this to find relevant snippets before answering questions about the codebase.",
		Params: []core.ToolParam{
			{Name: "query", Type: "string", Description: "What to look for, in natural language or identifiers", Required: true},
			{Name: "top_k", Type: "integer", Description: "Number of passages to retrieve (default: 5)"},
		},
	}
}

// Run executes a search and formats the hits as numbered passages.
func (t *RetrievalTool) Run(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%s: query is required", RetrievalToolName)
	}
	topK := intArg(args["top_k"], defaultTopK)
	if topK > maxTopK {
		topK = maxTopK
	}

	hits, err := t.searcher.Search(ctx, t.collection, query, topK)
	if err != nil {
		return "", fmt.Errorf("retrieve passages: %w", err)
	}
	t.log.Debug("rag_search", "collection", t.collection, "query", query, "hits", len(hits))

	return FormatPassages(hits), nil
}

// FormatPassages renders search hits for the model.
func FormatPassages(hits []models.ScoredChunk) string {
	if len(hits) == 0 {
		return "No relevant passages found in the knowledge base."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d relevant passages:\n\n", len(hits))
	for i, h := range hits {
		name := h.FileName
		if name == "" {
			name = h.DocumentID
		}
		fmt.Fprintf(&sb, "--- [%d] %s (score: %.3f) ---\n", i+1, name, h.Score)
		sb.WriteString(h.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func intArg(v any, def int) int {
	switch n := v.(type) {
	case int:
		if n > 0 {
			return n
		}
	case int64:
		if n > 0 {
			return int(n)
		}
	case float64:
		if n >= 1 {
			return int(n)
		}
	case string:
		if k, err := strconv.Atoi(n); err == nil && k > 0 {
			return k
		}
	}
	return def
}

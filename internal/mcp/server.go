// Package mcp exposes one user's collection to MCP clients.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/markdave123-py/CodeInsight/internal/agent"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

// DocumentLister lists the documents of a collection.
type DocumentLister interface {
	List(ctx context.Context, collection string) []models.Document
}

type Config struct {
	Collection string
	Searcher   agent.Searcher
	Documents  DocumentLister
	Version    string
}

// Server wraps the MCP server with its collection binding.
type Server struct {
	server *mcp.Server
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	server := mcp.NewServer(&mcp.Implementation{Name: "codeinsight", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        agent.RetrievalToolName,
		Description: "Search the user's uploaded code and documents. Returns the most relevant passages with their file names.",
	}, makeSearchHandler(cfg.Searcher, cfg.Collection))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the files indexed in the user's knowledge base with their status.",
	}, makeListHandler(cfg.Documents, cfg.Collection))

	return &Server{server: server}
}

// Run serves over stdio until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/markdave123-py/CodeInsight/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the user's knowledge base to MCP clients over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		collection, err := s.collection(ctx)
		if err != nil {
			return err
		}
		return mcp.NewServer(mcp.Config{
			Collection: collection,
			Searcher:   s.app.RAG,
			Documents:  s.app.Documents,
		}).Run(ctx)
	},
}

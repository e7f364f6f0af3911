package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/CodeInsight/internal/models"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List or delete indexed documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in the knowledge base",
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
		printDocuments(cmd.OutOrStdout(), s.app.Documents.List(ctx, collection))
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a document and its vectors",
	Args:  cobra.ExactArgs(1),
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
		docs, err := s.app.Documents.Delete(ctx, collection, args[0])
		if err != nil {
			return err
		}
		green.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		printDocuments(cmd.OutOrStdout(), docs)
		return nil
	},
}

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Create the user's knowledge base if needed and print its name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		name, err := s.collection(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

func init() {
	docsCmd.AddCommand(docsListCmd, docsDeleteCmd)
}

func printDocuments(w io.Writer, docs []models.Document) {
	if len(docs) == 0 {
		dim.Fprintln(w, "No documents yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tCREATED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.FileName, d.Status, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

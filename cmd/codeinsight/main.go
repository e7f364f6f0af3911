// Command codeinsight manages a user's knowledge base from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/markdave123-py/CodeInsight/internal/app"
	"github.com/markdave123-py/CodeInsight/internal/config"
	"github.com/markdave123-py/CodeInsight/internal/core"
)

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	User    string
	Quiet   bool
	NoColor bool
}

var globals GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "codeinsight",
	Short: "CodeInsight knowledge base tool",
	Long: `Upload code and documents into your CodeInsight knowledge base, manage
indexed files, and serve retrieval to MCP clients.

Configuration is read from the environment (and .env), the same as the API server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		color.NoColor = color.NoColor || globals.NoColor
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globals.User, "user", "u", "", "user id or email that owns the knowledge base")
	rootCmd.PersistentFlags().BoolVarP(&globals.Quiet, "quiet", "q", false, "hide progress output")
	rootCmd.PersistentFlags().BoolVar(&globals.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(ingestCmd, watchCmd, docsCmd, collectionCmd, mcpCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session is an initialised platform bound to one user.
type session struct {
	app    *app.App
	userID string
}

func openSession(ctx context.Context) (*session, error) {
	if globals.User == "" {
		return nil, errors.New("--user is required")
	}
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(os.Stderr)

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	userID, err := resolveUser(ctx, a, globals.User)
	if err != nil {
		a.Close()
		return nil, err
	}
	return &session{app: a, userID: userID}, nil
}

func resolveUser(ctx context.Context, a *app.App, ref string) (string, error) {
	if !strings.Contains(ref, "@") {
		return ref, nil
	}
	u, err := a.DBClient.GetUserByEmail(ctx, ref)
	if errors.Is(err, core.ErrUserNotFound) {
		return "", fmt.Errorf("no user with email %s", ref)
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *session) collection(ctx context.Context) (string, error) {
	return s.app.Collections.GetOrCreate(ctx, s.userID)
}

func (s *session) Close() { s.app.Close() }

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/CodeInsight/internal/core"
	"github.com/markdave123-py/CodeInsight/internal/metrics"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

const DefaultSystemPrompt = `You are an expert Coding Assistant named CodeInsight.

Your mission is to help developers analyze, understand, refactor, and debug their codebases.
You have access to the user's uploaded files through the rag_search tool.

CORE TASKS:
1. Always use rag_search to find relevant code snippets before answering questions about the codebase.
2. Provide clear, accurate, and concise explanations of code logic.
3. Suggest high-quality refactorings following SOLID, DRY and Clean Code practice.
4. Identify potential bugs, security vulnerabilities, or performance bottlenecks.
5. Help with architectural decisions and library recommendations.

OUTPUT STYLE:
- Use Markdown for formatting.
- Always use fenced code blocks with a language tag for code snippets.
- Be professional, technical, and helpful.
- If you cannot find the answer in the provided code, say so and offer general advice.`

// Suggestions are the starter prompts shown on an empty conversation.
var Suggestions = []Suggestion{
	{Label: "Explain this logic", Sub: "Understand complex files", Prompt: "Can you explain the main logic of the files I uploaded?"},
	{Label: "Refactor code", Sub: "Improve code quality", Prompt: "How can I refactor the code I uploaded to be more efficient?"},
	{Label: "Find bugs", Sub: "Identify vulnerabilities", Prompt: "Check my uploaded code for potential bugs or security issues."},
	{Label: "Generate tests", Sub: "Improve code coverage", Prompt: "Can you generate some unit tests for my uploaded components?"},
}

type Suggestion struct {
	Label  string `json:"label"`
	Sub    string `json:"sub"`
	Prompt string `json:"prompt"`
}

type Config struct {
	System       string
	MaxToolSteps int
}

// Agent drives the model through tool calls until it produces an answer.
type Agent struct {
	model core.ChatModel
	cfg   Config
	log   *slog.Logger
}

func New(model core.ChatModel, cfg Config, logger *slog.Logger) *Agent {
	if cfg.System == "" {
		cfg.System = DefaultSystemPrompt
	}
	if cfg.MaxToolSteps <= 0 {
		cfg.MaxToolSteps = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{model: model, cfg: cfg, log: logger.With("component", "agent", "model", model.ModelName())}
}

// run streams one assistant reply for history into gen. It does not finish gen.
func (a *Agent) run(ctx context.Context, gen *Generation, history []models.ChatMessage, tool *RetrievalTool) error {
	turns := toTurns(history)
	tools := []core.ToolSpec{tool.Spec()}

	for step := 0; ; step++ {
		req := core.ChatRequest{System: a.cfg.System, Turns: turns}
		// The last round goes without tools so the model has to answer.
		if step < a.cfg.MaxToolSteps {
			req.Tools = tools
		}

		var (
			text  strings.Builder
			calls []core.ToolCall
		)
		err := a.model.StreamChat(ctx, req, func(c core.ChatChunk) error {
			if c.ToolCall != nil {
				if c.ToolCall.ID == "" {
					c.ToolCall.ID = uuid.NewString()
				}
				calls = append(calls, *c.ToolCall)
				return nil
			}
			text.WriteString(c.Text)
			gen.appendText(c.Text)
			return nil
		})
		if err != nil {
			return fmt.Errorf("model: %w", err)
		}
		if len(calls) == 0 {
			return nil
		}
		if step >= a.cfg.MaxToolSteps {
			return errors.New("model kept calling tools past the step limit")
		}

		results := make([]core.ToolResult, 0, len(calls))
		for _, c := range calls {
			gen.toolCall(models.ToolInvocation{ID: c.ID, ToolName: c.Name, Args: c.Args})
			metrics.ToolCall()

			out := a.callTool(ctx, tool, c)
			gen.toolResult(c.ID, out)
			results = append(results, core.ToolResult{CallID: c.ID, Name: c.Name, Content: out})
		}
		turns = append(turns,
			core.ChatTurn{Role: core.TurnAssistant, Text: text.String(), ToolCalls: calls},
			core.ChatTurn{Role: core.TurnTool, ToolResults: results},
		)
	}
}

// callTool runs the tool; failures are reported back to the model as text.
func (a *Agent) callTool(ctx context.Context, tool *RetrievalTool, c core.ToolCall) string {
	if c.Name != RetrievalToolName {
		return fmt.Sprintf("error: unknown tool %q", c.Name)
	}
	out, err := tool.Run(ctx, c.Args)
	if err != nil {
		a.log.Warn("tool failed", "tool", c.Name, "error", err)
		return "error: " + err.Error()
	}
	return out
}

func toTurns(history []models.ChatMessage) []core.ChatTurn {
	turns := make([]core.ChatTurn, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := core.TurnUser
		if m.Role == models.RoleAssistant {
			role = core.TurnAssistant
		}
		turns = append(turns, core.ChatTurn{Role: role, Text: m.Content})
	}
	return turns
}

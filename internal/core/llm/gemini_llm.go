package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/markdave123-py/CodeInsight/internal/core"
)

type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) ModelName() string { return g.modelName }

// StreamChat sends the conversation and yields text deltas and function calls as they arrive.
func (g *GeminiLLM) StreamChat(ctx context.Context, req core.ChatRequest, yield func(core.ChatChunk) error) error {
	if len(req.Turns) == 0 {
		return errors.New("gemini chat: no turns")
	}

	m := g.client.GenerativeModel(g.modelName)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if len(req.Tools) > 0 {
		m.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	history := make([]*genai.Content, 0, len(req.Turns)-1)
	for _, t := range req.Turns[:len(req.Turns)-1] {
		if c := toContent(t); c != nil {
			history = append(history, c)
		}
	}
	last := toContent(req.Turns[len(req.Turns)-1])
	if last == nil {
		return errors.New("gemini chat: last turn is empty")
	}

	cs := m.StartChat()
	cs.History = history

	it := cs.SendMessageStream(ctx, last.Parts...)
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, p := range resp.Candidates[0].Content.Parts {
			var chunk core.ChatChunk
			switch v := p.(type) {
			case genai.Text:
				if v == "" {
					continue
				}
				chunk.Text = string(v)
			case genai.FunctionCall:
				chunk.ToolCall = &core.ToolCall{ID: uuid.NewString(), Name: v.Name, Args: v.Args}
			default:
				continue
			}
			if err := yield(chunk); err != nil {
				return err
			}
		}
	}
}

// toContent maps a provider-neutral turn to Gemini content; roles are "user" and "model".
func toContent(t core.ChatTurn) *genai.Content {
	var parts []genai.Part
	role := "user"

	switch t.Role {
	case core.TurnAssistant:
		role = "model"
		if t.Text != "" {
			parts = append(parts, genai.Text(t.Text))
		}
		for _, c := range t.ToolCalls {
			parts = append(parts, genai.FunctionCall{Name: c.Name, Args: c.Args})
		}
	case core.TurnTool:
		for _, r := range t.ToolResults {
			parts = append(parts, genai.FunctionResponse{
				Name:     r.Name,
				Response: map[string]any{"content": r.Content},
			})
		}
	default:
		if t.Text != "" {
			parts = append(parts, genai.Text(t.Text))
		}
	}

	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Role: role, Parts: parts}
}

func toDeclarations(tools []core.ToolSpec) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range t.Params {
			typ := genai.TypeString
			if p.Type == "integer" {
				typ = genai.TypeInteger
			}
			schema.Properties[p.Name] = &genai.Schema{Type: typ, Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return out
}

var _ core.ChatModel = (*GeminiLLM)(nil)

package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/CodeInsight/internal/core"
)

func TestToContentRoles(t *testing.T) {
	user := toContent(core.ChatTurn{Role: core.TurnUser, Text: "what does main do?"})
	require.NotNil(t, user)
	assert.Equal(t, "user", user.Role)
	assert.Equal(t, []genai.Part{genai.Text("what does main do?")}, user.Parts)

	asst := toContent(core.ChatTurn{
		Role:      core.TurnAssistant,
		ToolCalls: []core.ToolCall{{ID: "1", Name: "rag_search", Args: map[string]any{"query": "main"}}},
	})
	require.NotNil(t, asst)
	assert.Equal(t, "model", asst.Role)
	require.Len(t, asst.Parts, 1)
	assert.Equal(t, genai.FunctionCall{Name: "rag_search", Args: map[string]any{"query": "main"}}, asst.Parts[0])

	tool := toContent(core.ChatTurn{
		Role:        core.TurnTool,
		ToolResults: []core.ToolResult{{CallID: "1", Name: "rag_search", Content: "passages"}},
	})
	require.NotNil(t, tool)
	assert.Equal(t, "user", tool.Role)
	assert.Equal(t, genai.FunctionResponse{Name: "rag_search", Response: map[string]any{"content": "passages"}}, tool.Parts[0])

	assert.Nil(t, toContent(core.ChatTurn{Role: core.TurnUser}))
}

func TestToDeclarations(t *testing.T) {
	decls := toDeclarations([]core.ToolSpec{{
		Name:        "rag_search",
		Description: "search",
		Params: []core.ToolParam{
			{Name: "query", Type: "string", Required: true},
			{Name: "top_k", Type: "integer"},
		},
	}})
	require.Len(t, decls, 1)
	p := decls[0].Parameters
	assert.Equal(t, genai.TypeObject, p.Type)
	assert.Equal(t, genai.TypeString, p.Properties["query"].Type)
	assert.Equal(t, genai.TypeInteger, p.Properties["top_k"].Type)
	assert.Equal(t, []string{"query"}, p.Required)
}

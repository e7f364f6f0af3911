package core

import "context"

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Turn roles understood by ChatModel implementations.
const (
	TurnUser      = "user"
	TurnAssistant = "assistant"
	TurnTool      = "tool"
)

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// ChatTurn is one entry of the conversation sent to the model.
type ChatTurn struct {
	Role        string
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolParam describes one argument of a tool.
type ToolParam struct {
	Name        string
	Type        string // string | integer
	Description string
	Required    bool
}

// ToolSpec is the provider-neutral declaration of a callable tool.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

type ChatRequest struct {
	System string
	Turns  []ChatTurn
	Tools  []ToolSpec
}

// ChatChunk is one streamed piece of model output: text or a tool call.
type ChatChunk struct {
	Text     string
	ToolCall *ToolCall
}

// ChatModel streams one model turn. yield is called in order for every chunk;
// a non-nil error from yield aborts the stream.
type ChatModel interface {
	StreamChat(ctx context.Context, req ChatRequest, yield func(ChatChunk) error) error
	ModelName() string
}

package llm

import (
	"context"
	"fmt"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"

	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

type Image struct {
	MediaType string
	Data      []byte
}

type Message struct {
	Role       string
	Content    string
	Images     []Image
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

type ToolCall struct {
	ID    string
	Name  string
	Input []byte
}

type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
}

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Required    []string
}

// Request is one chat model call. Temperature nil leaves the client default.
type Request struct {
	Messages     []Message
	Tools        []ToolDefinition
	SystemPrompt string
	Temperature  *float64
	JSONMode     bool
}

type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// APIError is a non-success HTTP reply from a model provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func ToolResultMessage(call ToolCall, result string) Message {
	return Message{Role: RoleTool, Content: result, ToolCallID: call.ID, ToolName: call.Name}
}

func Float(f float64) *float64 {
	return &f
}

const jsonModeInstruction = "Respond with a single valid JSON object and nothing else."

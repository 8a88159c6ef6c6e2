package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeChat(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
			"content":[{"type":"text","text":"checking"},{"type":"tool_use","id":"tu_1","name":"get_holidays","input":{"year":2024}}],
			"stop_reason":"tool_use","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	c := NewClaudeClient("key", "", 0, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := c.Chat(context.Background(), Request{
		SystemPrompt: "sys",
		JSONMode:     true,
		Messages:     []Message{UserMessage("q")},
		Tools:        []ToolDefinition{{Name: "get_holidays", Description: "lookup", Parameters: map[string]interface{}{}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "checking", resp.Content)
	assert.Equal(t, StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "tu_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"year":2024}`, string(resp.ToolCalls[0].Input))

	system := got["system"].([]interface{})
	assert.Contains(t, system[0].(map[string]interface{})["text"], jsonModeInstruction)
}

func TestToClaudeMessagesGroupsToolResults(t *testing.T) {
	calls := []ToolCall{{ID: "a", Name: "get_holidays"}, {ID: "b", Name: "get_holidays"}}
	params := toClaudeMessages([]Message{
		UserMessage("q"),
		{Role: RoleAssistant, ToolCalls: calls},
		ToolResultMessage(calls[0], "one"),
		ToolResultMessage(calls[1], "two"),
		AssistantMessage("done"),
	})

	require.Len(t, params, 4)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, params[1].Role)
	require.Len(t, params[1].Content, 2)
	assert.Equal(t, "{}", string(params[1].Content[0].OfToolUse.Input.(json.RawMessage)))

	assert.Equal(t, anthropic.MessageParamRoleUser, params[2].Role)
	require.Len(t, params[2].Content, 2)
	assert.Equal(t, "a", params[2].Content[0].OfToolResult.ToolUseID)
	assert.Equal(t, "b", params[2].Content[1].OfToolResult.ToolUseID)
}

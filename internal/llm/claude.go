package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type ClaudeClient struct {
	client      anthropic.Client
	model       string
	temperature float64
}

func NewClaudeClient(apiKey, model string, temperature float64, opts ...option.RequestOption) *ClaudeClient {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeClient{
		client:      anthropic.NewClient(opts...),
		model:       model,
		temperature: temperature,
	}
}

func (c *ClaudeClient) Name() string {
	return fmt.Sprintf("claude/%s", c.model)
}

func (c *ClaudeClient) Chat(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		Messages:  toClaudeMessages(req.Messages),
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = anthropic.Float(temperature)

	systemPrompt := req.SystemPrompt
	if req.JSONMode {
		if systemPrompt != "" {
			systemPrompt += "\n\n"
		}
		systemPrompt += jsonModeInstruction
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	if len(req.Tools) > 0 {
		toolUnions := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			toolUnions = append(toolUnions, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        tool.Name,
					Description: anthropic.String(tool.Description),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: tool.Parameters,
						Required:   tool.Required,
					},
				},
			})
		}
		params.Tools = toolUnions
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	response := &Response{StopReason: StopEndTurn}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			response.Content += block.Text
		case "tool_use":
			inputJSON, _ := json.Marshal(block.Input)
			response.ToolCalls = append(response.ToolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: inputJSON,
			})
		}
	}
	if resp.StopReason == anthropic.StopReasonToolUse || len(response.ToolCalls) > 0 {
		response.StopReason = StopToolUse
	}

	return response, nil
}

// toClaudeMessages folds consecutive tool results into a single user turn,
// since Claude expects every tool_result right after the assistant tool_use.
func toClaudeMessages(messages []Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: json.RawMessage(toolInput(tc.Input)),
					},
				})
			}
			params = append(params, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case RoleTool:
			block := anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)
			if n := len(params); n > 0 && isToolResultTurn(params[n-1]) {
				params[n-1].Content = append(params[n-1].Content, block)
				continue
			}
			params = append(params, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{block},
			})
		default:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Images)+1)
			for _, img := range msg.Images {
				mediaType := img.MediaType
				if mediaType == "" {
					mediaType = http.DetectContentType(img.Data)
				}
				blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(img.Data)))
			}
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			params = append(params, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: blocks,
			})
		}
	}

	return params
}

func isToolResultTurn(p anthropic.MessageParam) bool {
	if p.Role != anthropic.MessageParamRoleUser || len(p.Content) == 0 {
		return false
	}
	for _, block := range p.Content {
		if block.OfToolResult == nil {
			return false
		}
	}
	return true
}

func toolInput(input []byte) []byte {
	if len(input) == 0 {
		return []byte("{}")
	}
	return input
}

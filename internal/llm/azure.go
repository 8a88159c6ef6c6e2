package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/webclient"
)

type AzureOpenAIConfig struct {
	Endpoint    string
	APIKey      string
	Deployment  string
	APIVersion  string
	Model       string
	Temperature float64
}

type AzureOpenAIClient struct {
	cfg        AzureOpenAIConfig
	httpClient *http.Client
	retryDelay time.Duration
}

func NewAzureOpenAIClient(cfg AzureOpenAIConfig) *AzureOpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Deployment == "" {
		cfg.Deployment = cfg.Model
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-08-01-preview"
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	return &AzureOpenAIClient{
		cfg:        cfg,
		httpClient: webclient.NewDefault(4 * time.Minute),
		retryDelay: 2 * time.Second,
	}
}

func (c *AzureOpenAIClient) Name() string {
	return fmt.Sprintf("azure/%s", c.cfg.Deployment)
}

type azureChatRequest struct {
	Messages       []azureMessage       `json:"messages"`
	Tools          []azureTool          `json:"tools,omitempty"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat *azureResponseFormat `json:"response_format,omitempty"`
}

type azureResponseFormat struct {
	Type string `json:"type"`
}

// azureMessage.Content is either a string, a []azureContentPart or nil.
type azureMessage struct {
	Role       string          `json:"role"`
	Content    interface{}     `json:"content"`
	ToolCalls  []azureToolCall `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type azureContentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *azureImageURL `json:"image_url,omitempty"`
}

type azureImageURL struct {
	URL string `json:"url"`
}

type azureTool struct {
	Type     string            `json:"type"`
	Function azureToolFunction `json:"function"`
}

type azureToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type azureToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type azureChatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string         `json:"content"`
			ToolCalls []azureToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *AzureOpenAIClient) endpointURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.cfg.Endpoint, url.PathEscape(c.cfg.Deployment), url.QueryEscape(c.cfg.APIVersion))
}

func (c *AzureOpenAIClient) Chat(ctx context.Context, req Request) (*Response, error) {
	body := azureChatRequest{
		Messages:    toAzureMessages(req),
		Tools:       toAzureTools(req.Tools),
		Temperature: c.cfg.Temperature,
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}
	if req.JSONMode {
		body.ResponseFormat = &azureResponseFormat{Type: "json_object"}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, respBody, err := webclient.DoWithRetry(ctx, 3, c.retryDelay, func() (int, []byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(), bytes.NewReader(jsonBody))
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("api-key", c.cfg.APIKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return 0, nil, fmt.Errorf("azure openai request failed: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, b, &APIError{Provider: "azure openai", StatusCode: resp.StatusCode, Body: string(b)}
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Provider: "azure openai", StatusCode: status, Body: string(respBody)}
	}

	var azureResp azureChatResponse
	if err := json.Unmarshal(respBody, &azureResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(azureResp.Choices) == 0 {
		return nil, fmt.Errorf("azure openai returned no choices")
	}

	choice := azureResp.Choices[0]
	response := &Response{StopReason: StopEndTurn}
	if choice.Message.Content != nil {
		response.Content = *choice.Message.Content
	}
	for _, tc := range choice.Message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: []byte(tc.Function.Arguments),
		})
	}
	if len(response.ToolCalls) > 0 {
		response.StopReason = StopToolUse
	}

	return response, nil
}

func toAzureMessages(req Request) []azureMessage {
	messages := make([]azureMessage, 0, len(req.Messages)+1)

	if req.SystemPrompt != "" {
		messages = append(messages, azureMessage{Role: "system", Content: req.SystemPrompt})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleTool:
			messages = append(messages, azureMessage{
				Role:       "tool",
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case RoleAssistant:
			am := azureMessage{Role: "assistant"}
			if msg.Content != "" || len(msg.ToolCalls) == 0 {
				am.Content = msg.Content
			}
			for _, tc := range msg.ToolCalls {
				call := azureToolCall{ID: tc.ID, Type: "function"}
				call.Function.Name = tc.Name
				call.Function.Arguments = string(tc.Input)
				am.ToolCalls = append(am.ToolCalls, call)
			}
			messages = append(messages, am)
		default:
			if len(msg.Images) == 0 {
				messages = append(messages, azureMessage{Role: "user", Content: msg.Content})
				continue
			}
			parts := []azureContentPart{{Type: "text", Text: msg.Content}}
			for _, img := range msg.Images {
				parts = append(parts, azureContentPart{
					Type:     "image_url",
					ImageURL: &azureImageURL{URL: dataURL(img)},
				})
			}
			messages = append(messages, azureMessage{Role: "user", Content: parts})
		}
	}

	return messages
}

func toAzureTools(tools []ToolDefinition) []azureTool {
	azureTools := make([]azureTool, 0, len(tools))
	for _, tool := range tools {
		azureTools = append(azureTools, azureTool{
			Type: "function",
			Function: azureToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  objectSchema(tool),
			},
		})
	}
	return azureTools
}

func objectSchema(tool ToolDefinition) map[string]interface{} {
	params := map[string]interface{}{
		"type":       "object",
		"properties": tool.Parameters,
	}
	if len(tool.Required) > 0 {
		params["required"] = tool.Required
	}
	return params
}

func dataURL(img Image) string {
	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = http.DetectContentType(img.Data)
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(img.Data))
}

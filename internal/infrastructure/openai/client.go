package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/qj0r9j0vc2/chat-relay/internal/tools"
	"github.com/qj0r9j0vc2/chat-relay/internal/usecase/generation"
)

// Client implements generation.Backend over the OpenAI chat completions
// API. Any OpenAI-compatible endpoint works through the base URL override.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
}

// NewClient creates a chat completion backend. baseURL overrides the API
// endpoint; pass "" for the default. timeout bounds each API call at the
// HTTP client, independently of the caller's context.
func NewClient(apiKey, model, baseURL string, temperature float32, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
	}
}

// Complete sends the conversation to the API and maps the answer back.
func (c *Client) Complete(ctx context.Context, turns []generation.Turn, available []tools.Tool) (*generation.Result, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    toMessages(turns),
		Tools:       toTools(available),
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices returned")
	}

	msg := resp.Choices[0].Message
	result := &generation.Result{Text: msg.Content}

	for _, call := range msg.ToolCalls {
		args := make(map[string]any)
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("parsing tool arguments for %s: %w", call.Function.Name, err)
			}
		}
		result.ToolCalls = append(result.ToolCalls, generation.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	return result, nil
}

func toMessages(turns []generation.Turn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		msg := openai.ChatCompletionMessage{Content: turn.Content}
		switch turn.Role {
		case generation.RoleSystem:
			msg.Role = openai.ChatMessageRoleSystem
		case generation.RoleAssistant:
			msg.Role = openai.ChatMessageRoleAssistant
			for _, call := range turn.ToolCalls {
				args, _ := json.Marshal(call.Arguments)
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
		case generation.RoleTool:
			msg.Role = openai.ChatMessageRoleTool
			msg.ToolCallID = turn.ToolCallID
		default:
			msg.Role = openai.ChatMessageRoleUser
		}
		out = append(out, msg)
	}
	return out
}

func toTools(available []tools.Tool) []openai.Tool {
	if len(available) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(available))
	for _, t := range available {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  json.RawMessage(t.ParameterSchema()),
			},
		})
	}
	return out
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/manthysbr/hostelscout/internal/adapters/resilient"
	"github.com/manthysbr/hostelscout/internal/core/domain"
)

// OpenAIProvider implements the completion service using an OpenAI-compatible API
// Works with: OpenAI, Azure OpenAI, Together AI, local Ollama /v1, etc.
type OpenAIProvider struct {
	transport *resilient.Transport
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

// NewOpenAIProvider creates a new OpenAI-compatible provider
func NewOpenAIProvider(transport *resilient.Transport, baseURL, apiKey, model string, maxTokens int) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIProvider{
		transport: transport,
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Name implements ports.CompletionService
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete generates a chat completion with function tools attached
func (p *OpenAIProvider) Complete(ctx context.Context, req domain.CompletionRequest, opts domain.CallOptions) (*domain.CompletionResponse, error) {
	url := fmt.Sprintf("%s/chat/completions", p.baseURL)

	payload, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	start := time.Now()
	resp, err := p.transport.Send(ctx, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
		return httpReq, nil
	}, opts)
	observeCall(p.Name(), p.model, resp, err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to call API: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, p.transport.UpstreamError(resp)
	}
	defer resp.Body.Close()

	var result openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w: %w", domain.ErrMalformedPayload, err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response: %w", domain.ErrMalformedPayload)
	}

	choice := result.Choices[0]
	out := &domain.CompletionResponse{StopReason: choice.FinishReason}
	// some local servers report "stop" alongside tool calls
	if choice.FinishReason == "tool_calls" || len(choice.Message.ToolCalls) > 0 {
		out.StopReason = domain.StopReasonToolUse
	}
	if choice.Message.Content != "" {
		out.Blocks = append(out.Blocks, domain.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		out.Blocks = append(out.Blocks, domain.ContentBlock{
			Type:  domain.BlockToolUse,
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: args,
		})
	}
	return out, nil
}

func (p *OpenAIProvider) buildRequest(req domain.CompletionRequest) openAIRequest {
	body := openAIRequest{Model: p.model}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	} else if p.maxTokens > 0 {
		body.MaxTokens = p.maxTokens
	}
	if req.System != "" {
		body.Messages = append(body.Messages, openAIMessage{Role: "system", Content: req.System})
	}

	for _, turn := range req.Turns {
		switch turn.Role {
		case domain.RoleAssistant:
			msg := openAIMessage{Role: "assistant"}
			var text strings.Builder
			for _, b := range turn.Blocks {
				switch b.Type {
				case domain.BlockText:
					text.WriteString(b.Text)
				case domain.BlockToolUse:
					args := string(b.Input)
					if args == "" {
						args = "{}"
					}
					msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
						ID:       b.ID,
						Type:     "function",
						Function: openAIFunctionCall{Name: b.Name, Arguments: args},
					})
				}
			}
			msg.Content = text.String()
			body.Messages = append(body.Messages, msg)
		default:
			// tool messages must directly follow the assistant tool_calls
			var text []string
			for _, b := range turn.Blocks {
				switch b.Type {
				case domain.BlockToolResult:
					body.Messages = append(body.Messages, openAIMessage{
						Role:       "tool",
						ToolCallID: b.ToolUseID,
						Content:    b.Content,
					})
				case domain.BlockText:
					text = append(text, b.Text)
				}
			}
			if len(text) > 0 {
				body.Messages = append(body.Messages, openAIMessage{Role: "user", Content: strings.Join(text, "\n\n")})
			}
		}
	}

	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Schema(),
			},
		})
	}
	return body
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	Tools     []openAITool    `json:"tools,omitempty"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

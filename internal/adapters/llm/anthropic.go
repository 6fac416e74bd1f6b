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

const (
	defaultAnthropicURL       = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 4096
	anthropicVersion          = "2023-06-01"
)

// AnthropicProvider implements the completion service using the Messages API
type AnthropicProvider struct {
	transport *resilient.Transport
	apiURL    string
	apiKey    string
	model     string
	maxTokens int
}

// NewAnthropicProvider creates a Messages API client. apiURL is the full endpoint.
func NewAnthropicProvider(transport *resilient.Transport, apiURL, apiKey, model string, maxTokens int) *AnthropicProvider {
	if apiURL == "" {
		apiURL = defaultAnthropicURL
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		transport: transport,
		apiURL:    apiURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Name implements ports.CompletionService
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete sends one non-streaming Messages request
func (p *AnthropicProvider) Complete(ctx context.Context, req domain.CompletionRequest, opts domain.CallOptions) (*domain.CompletionResponse, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, domain.ErrMissingAPIKey
	}

	body, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	start := time.Now()
	resp, err := p.transport.Send(ctx, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", p.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		return httpReq, nil
	}, opts)
	observeCall(p.Name(), p.model, resp, err, start)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, p.transport.UpstreamError(resp)
	}
	defer resp.Body.Close()

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w: %w", domain.ErrMalformedPayload, err)
	}

	out := &domain.CompletionResponse{StopReason: result.StopReason}
	for _, raw := range result.Content {
		var c anthropicContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("anthropic: decode content block: %w: %w", domain.ErrMalformedPayload, err)
		}
		out.Blocks = append(out.Blocks, domain.ContentBlock{
			Type:  domain.BlockType(c.Type),
			Text:  c.Text,
			ID:    c.ID,
			Name:  c.Name,
			Input: c.Input,
			Raw:   raw,
		})
	}
	return out, nil
}

func (p *AnthropicProvider) buildRequest(req domain.CompletionRequest) (anthropicRequest, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	body := anthropicRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    req.System,
	}

	for _, turn := range req.Turns {
		msg := anthropicMessage{Role: string(turn.Role)}
		for _, b := range turn.Blocks {
			if len(b.Raw) > 0 {
				msg.Content = append(msg.Content, b.Raw)
				continue
			}
			raw, err := json.Marshal(contentFromBlock(b))
			if err != nil {
				return anthropicRequest{}, fmt.Errorf("anthropic: marshal content block: %w", err)
			}
			msg.Content = append(msg.Content, raw)
		}
		body.Messages = append(body.Messages, msg)
	}

	if len(req.Tools) > 0 {
		body.Tools = make([]anthropicTool, 0, len(req.Tools))
		for _, tool := range req.Tools {
			body.Tools = append(body.Tools, anthropicTool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.Schema(),
			})
		}
	}
	return body, nil
}

func contentFromBlock(b domain.ContentBlock) anthropicContent {
	c := anthropicContent{
		Type:      string(b.Type),
		Text:      b.Text,
		ID:        b.ID,
		Name:      b.Name,
		ToolUseID: b.ToolUseID,
		Content:   b.Content,
		IsError:   b.IsError,
	}
	if b.Type == domain.BlockToolUse {
		c.Input = b.Input
		if len(c.Input) == 0 {
			c.Input = json.RawMessage(`{}`)
		}
	}
	return c
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string            `json:"role"`
	Content []json.RawMessage `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string            `json:"id"`
	Content    []json.RawMessage `json:"content"`
	StopReason string            `json:"stop_reason"`
}

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/manthysbr/hostelscout/internal/adapters/resilient"
	"github.com/manthysbr/hostelscout/internal/core/domain"
)

const maxResponseBody = 16 << 20

// rpcRequest represents an MCP JSON-RPC request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse represents an MCP JSON-RPC response.
type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *domain.RPCError `json:"error,omitempty"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type listResult struct {
	Tools []domain.ToolDescriptor `json:"tools"`
}

// Client speaks JSON-RPC 2.0 to a remote MCP server over plain HTTP POST.
// Responses may arrive as application/json or as a text/event-stream.
type Client struct {
	transport *resilient.Transport
	url       string
	logger    *slog.Logger
}

// NewClient creates an MCP client for the given endpoint
func NewClient(transport *resilient.Transport, url string, logger *slog.Logger) *Client {
	return &Client{
		transport: transport,
		url:       url,
		logger:    logger,
	}
}

// ListTools implements ports.ToolService
func (c *Client) ListTools(ctx context.Context, opts domain.CallOptions) ([]domain.ToolDescriptor, error) {
	result, err := c.call(ctx, "tools/list", nil, uuid.NewString(), opts)
	if err != nil {
		return nil, err
	}
	var list listResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, fmt.Errorf("mcp: decode tools/list result: %w: %w", domain.ErrMalformedPayload, err)
	}
	tools := make([]domain.ToolDescriptor, 0, len(list.Tools))
	for _, t := range list.Tools {
		if t.Name == "" {
			continue
		}
		t.InputSchema = t.Schema()
		tools = append(tools, t)
	}
	return tools, nil
}

// CallTool implements ports.ToolService
func (c *Client) CallTool(ctx context.Context, inv domain.ToolInvocation, opts domain.CallOptions) (json.RawMessage, error) {
	id := inv.CorrelationID
	if id == "" {
		id = uuid.NewString()
	}
	params := callParams{Name: inv.ToolName, Arguments: inv.ArgumentsOrEmpty()}
	return c.call(ctx, "tools/call", params, id, opts)
}

func (c *Client) call(ctx context.Context, method string, params any, id string, opts domain.CallOptions) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", method, err)
	}

	resp, err := c.transport.Send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		return req, nil
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("mcp %s: %w", method, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.transport.UpstreamError(resp)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBody)
	var rpc *rpcResponse
	if isEventStream(resp.Header.Get("Content-Type")) {
		rpc, err = decodeEventStream(body)
	} else {
		rpc, err = decodeJSON(body)
	}
	if err != nil {
		return nil, fmt.Errorf("mcp %s: %w", method, err)
	}
	if rpc.Error != nil {
		c.logger.Warn("mcp returned json-rpc error", "method", method, "code", rpc.Error.Code, "message", rpc.Error.Message)
		return nil, rpc.Error
	}
	if len(rpc.Result) == 0 || string(rpc.Result) == "null" {
		return nil, fmt.Errorf("mcp %s: empty result: %w", method, domain.ErrMalformedPayload)
	}
	return rpc.Result, nil
}

func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "text/event-stream")
	}
	return mediaType == "text/event-stream"
}

func decodeJSON(r io.Reader) (*rpcResponse, error) {
	var rpc rpcResponse
	if err := json.NewDecoder(r).Decode(&rpc); err != nil {
		return nil, fmt.Errorf("decode response: %w: %w", domain.ErrMalformedPayload, err)
	}
	return &rpc, nil
}

// decodeEventStream returns the first event carrying a result or an error.
// Notifications sent ahead of the response are skipped.
func decodeEventStream(r io.Reader) (*rpcResponse, error) {
	reader := bufio.NewReader(r)
	for {
		data, err := readEvent(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("event stream ended without a response: %w", domain.ErrMalformedPayload)
			}
			return nil, fmt.Errorf("read event stream: %w", err)
		}
		var rpc rpcResponse
		if err := json.Unmarshal(data, &rpc); err != nil {
			return nil, fmt.Errorf("decode event: %w: %w", domain.ErrMalformedPayload, err)
		}
		if len(rpc.Result) > 0 || rpc.Error != nil {
			return &rpc, nil
		}
	}
}

func readEvent(reader *bufio.Reader) ([]byte, error) {
	var dataLines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(dataLines) > 0 {
				return []byte(strings.Join(dataLines, "\n")), nil
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		if errors.Is(err, io.EOF) {
			if len(dataLines) > 0 {
				return []byte(strings.Join(dataLines, "\n")), nil
			}
			return nil, io.EOF
		}
	}
}

package ports

import (
	"context"
	"encoding/json"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

// CompletionService abstracts the LLM provider (Anthropic, OpenAI-compatible, etc.)
type CompletionService interface {
	// Complete sends one completion request through the resilient transport.
	// Non-2xx answers come back as *domain.UpstreamError; exhausted network
	// retries wrap domain.ErrTransport.
	Complete(ctx context.Context, req domain.CompletionRequest, opts domain.CallOptions) (*domain.CompletionResponse, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// ToolService abstracts the remote MCP inventory service
type ToolService interface {
	// ListTools issues a tools/list call.
	ListTools(ctx context.Context, opts domain.CallOptions) ([]domain.ToolDescriptor, error)

	// CallTool issues a tools/call and returns the JSON-RPC result member.
	// A JSON-RPC error object comes back as *domain.RPCError.
	CallTool(ctx context.Context, inv domain.ToolInvocation, opts domain.CallOptions) (json.RawMessage, error)
}

// SearchLog abstracts the persistent audit log of finished searches (DuckDB)
type SearchLog interface {
	// Record persists one finished search.
	Record(ctx context.Context, entry domain.SearchLogEntry) error

	// Recent returns the newest entries first.
	Recent(ctx context.Context, limit int) ([]domain.SearchLogEntry, error)
}

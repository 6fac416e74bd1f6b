package domain

import (
	"encoding/json"
	"unicode/utf8"
)

// DefaultInputSchema is used for remote tools that declare no schema.
var DefaultInputSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// ToolDescriptor describes one remotely invocable inventory tool
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Schema returns the declared input schema or the empty object schema
func (t ToolDescriptor) Schema() json.RawMessage {
	if len(t.InputSchema) == 0 || string(t.InputSchema) == "null" {
		return DefaultInputSchema
	}
	return t.InputSchema
}

// ToolNames lists descriptor names in catalog order
func ToolNames(tools []ToolDescriptor) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}

// ToolInvocation is one tool_use block requested by the completion service.
// Name and CorrelationID are opaque strings passed through unchanged.
type ToolInvocation struct {
	ToolName      string          `json:"name"`
	Arguments     json.RawMessage `json:"arguments"`
	CorrelationID string          `json:"id"`
}

// ArgumentsOrEmpty never returns a nil document
func (i ToolInvocation) ArgumentsOrEmpty() json.RawMessage {
	if len(i.Arguments) == 0 || string(i.Arguments) == "null" {
		return json.RawMessage(`{}`)
	}
	return i.Arguments
}

// ToolResultStatus tags the ToolExecutionResult variant
type ToolResultStatus string

const (
	ToolResultOK      ToolResultStatus = "ok"
	ToolResultError   ToolResultStatus = "error"
	ToolResultSkipped ToolResultStatus = "skipped"
)

// ToolErrorKind classifies why a tool invocation produced no payload
type ToolErrorKind string

const (
	ToolErrorRateLimited      ToolErrorKind = "rate_limited"
	ToolErrorUpstream         ToolErrorKind = "upstream"
	ToolErrorTransport        ToolErrorKind = "transport"
	ToolErrorRPC              ToolErrorKind = "rpc"
	ToolErrorParse            ToolErrorKind = "parse"
	ToolErrorInvalidArguments ToolErrorKind = "invalid_arguments"
)

// ToolError is the error side of a ToolExecutionResult
type ToolError struct {
	Kind    ToolErrorKind `json:"kind"`
	Message string        `json:"message"`
}

// ToolExecutionResult is the outcome of one ToolInvocation.
// Exactly one of Payload (ok), Err (error) or neither (skipped) is meaningful.
type ToolExecutionResult struct {
	CorrelationID string           `json:"id"`
	ToolName      string           `json:"name"`
	Status        ToolResultStatus `json:"status"`
	Payload       json.RawMessage  `json:"payload,omitempty"`
	RecordCount   int              `json:"record_count"`
	Err           *ToolError       `json:"error,omitempty"`
}

// ToolSucceeded records a decoded JSON-RPC result and how many records it held
func ToolSucceeded(inv ToolInvocation, payload json.RawMessage, records int) ToolExecutionResult {
	return ToolExecutionResult{
		CorrelationID: inv.CorrelationID,
		ToolName:      inv.ToolName,
		Status:        ToolResultOK,
		Payload:       payload,
		RecordCount:   records,
	}
}

// ToolFailed records a failed invocation
func ToolFailed(inv ToolInvocation, kind ToolErrorKind, message string) ToolExecutionResult {
	return ToolExecutionResult{
		CorrelationID: inv.CorrelationID,
		ToolName:      inv.ToolName,
		Status:        ToolResultError,
		Err:           &ToolError{Kind: kind, Message: message},
	}
}

// ToolSkipped records an invocation left unexecuted after an earlier one produced results
func ToolSkipped(inv ToolInvocation) ToolExecutionResult {
	return ToolExecutionResult{
		CorrelationID: inv.CorrelationID,
		ToolName:      inv.ToolName,
		Status:        ToolResultSkipped,
	}
}

// IsError reports the error variant
func (r ToolExecutionResult) IsError() bool {
	return r.Status == ToolResultError
}

// HasRecords reports a structurally valid, non-empty result set
func (r ToolExecutionResult) HasRecords() bool {
	return r.Status == ToolResultOK && r.RecordCount > 0
}

// ContextText is what the completion service sees as the tool_result content
func (r ToolExecutionResult) ContextText(limit int) string {
	switch r.Status {
	case ToolResultOK:
		return truncateText(string(r.Payload), limit)
	case ToolResultError:
		return "Error (" + string(r.Err.Kind) + "): " + r.Err.Message
	default:
		return "Not executed: an earlier tool call already returned results."
	}
}

// truncateText cuts s to at most limit bytes without splitting a rune
func truncateText(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

package domain

import "strings"

// StopReasonToolUse signals that the model wants tools executed
const StopReasonToolUse = "tool_use"

// CompletionRequest is provider-neutral input to a completion service
type CompletionRequest struct {
	System    string
	Turns     []Turn
	Tools     []ToolDescriptor
	MaxTokens int
}

// CompletionResponse is provider-neutral output of a completion service
type CompletionResponse struct {
	StopReason string
	Blocks     []ContentBlock
}

// WantsTools reports a tool-use turn
func (r *CompletionResponse) WantsTools() bool {
	if r.StopReason == StopReasonToolUse {
		return true
	}
	// Some providers finish with a tool call but a different stop reason.
	return len(r.ToolInvocations()) > 0 && r.StopReason == ""
}

// ToolInvocations extracts every tool_use block in returned order
func (r *CompletionResponse) ToolInvocations() []ToolInvocation {
	var out []ToolInvocation
	for _, b := range r.Blocks {
		if b.Type != BlockToolUse {
			continue
		}
		out = append(out, ToolInvocation{
			ToolName:      b.Name,
			Arguments:     b.Input,
			CorrelationID: b.ID,
		})
	}
	return out
}

// Text concatenates the text blocks
func (r *CompletionResponse) Text() string {
	var sb strings.Builder
	for _, b := range r.Blocks {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

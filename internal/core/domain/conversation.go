package domain

import (
	"encoding/json"
)

// MessageRole defines who authored a turn
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// BlockType tags a ContentBlock
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a turn.
// Raw holds the block exactly as the completion service returned it, so the
// assistant's content can be replayed verbatim on the next call.
type ContentBlock struct {
	Type      BlockType       `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// TextBlock builds a plain text block
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolResultBlock feeds an execution result back to the completion service
func ToolResultBlock(r ToolExecutionResult, limit int) ContentBlock {
	return ContentBlock{
		Type:      BlockToolResult,
		ToolUseID: r.CorrelationID,
		Content:   r.ContextText(limit),
		IsError:   r.Status != ToolResultOK,
	}
}

// Turn is one message in the conversation
type Turn struct {
	Role   MessageRole    `json:"role"`
	Blocks []ContentBlock `json:"content"`
}

// Conversation is the ordered turn log of one orchestrator run. It is never
// shared across requests.
type Conversation struct {
	turns []Turn
}

// NewConversation starts a log with the user's query as the only turn
func NewConversation(query string) *Conversation {
	c := &Conversation{}
	c.AppendUser(TextBlock(query))
	return c
}

// AppendUser adds a user turn
func (c *Conversation) AppendUser(blocks ...ContentBlock) {
	c.turns = append(c.turns, Turn{Role: RoleUser, Blocks: blocks})
}

// AppendAssistant adds an assistant turn
func (c *Conversation) AppendAssistant(blocks []ContentBlock) {
	c.turns = append(c.turns, Turn{Role: RoleAssistant, Blocks: blocks})
}

// Turns returns a copy of the log
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len is the number of turns
func (c *Conversation) Len() int {
	return len(c.turns)
}

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SearchID correlates every log line and store row of one search
type SearchID string

// SearchMode selects the prompt template
type SearchMode string

const (
	SearchModeFreeText     SearchMode = "free_text"
	SearchModeProfileBased SearchMode = "profile_based"
)

// SearchRequest is one inbound search. It is never mutated after creation.
type SearchRequest struct {
	ID           SearchID
	Query        string
	ProfileBased bool
}

// NewSearchRequest stamps a fresh ID on the query
func NewSearchRequest(query string, profileBased bool) SearchRequest {
	return SearchRequest{
		ID:           SearchID(uuid.NewString()),
		Query:        query,
		ProfileBased: profileBased,
	}
}

// TrimmedQuery returns the query without surrounding whitespace
func (r SearchRequest) TrimmedQuery() string {
	return strings.TrimSpace(r.Query)
}

// Mode maps the profile flag to a prompt template
func (r SearchRequest) Mode() SearchMode {
	if r.ProfileBased {
		return SearchModeProfileBased
	}
	return SearchModeFreeText
}

// SearchLogEntry is the audit row written after every finished search
type SearchLogEntry struct {
	ID           SearchID    `json:"id"`
	Query        string      `json:"query"`
	ProfileBased bool        `json:"profile_based"`
	Outcome      OutcomeKind `json:"outcome"`
	Reason       string      `json:"reason,omitempty"`
	ResultCount  int         `json:"result_count"`
	ToolCalls    int         `json:"tool_calls"`
	Sorted       bool        `json:"sorted"`
	DurationMS   int64       `json:"duration_ms"`
	CreatedAt    time.Time   `json:"created_at"`
}

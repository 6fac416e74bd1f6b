package domain

import (
	"encoding/json"
	"time"
)

// OutcomeKind discriminates SearchOutcome
type OutcomeKind string

const (
	OutcomeFound       OutcomeKind = "found"
	OutcomeNotFound    OutcomeKind = "not_found"
	OutcomeRateLimited OutcomeKind = "rate_limited"
	OutcomeFailed      OutcomeKind = "failed"
)

// ErrorKind classifies a Failed outcome
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindUpstream   ErrorKind = "upstream"
	ErrorKindTransport  ErrorKind = "transport"
	ErrorKindConfig     ErrorKind = "config"
	ErrorKindInternal   ErrorKind = "internal"
)

// ReasonCode identifies the canned NotFound explanation
type ReasonCode string

const (
	ReasonLocation   ReasonCode = "location"
	ReasonFacilities ReasonCode = "facilities"
	ReasonBudget     ReasonCode = "budget"
	ReasonRoomType   ReasonCode = "room_type"
	ReasonGeneric    ReasonCode = "generic"
)

// NotFoundReason is the human-readable explanation for an empty result
type NotFoundReason struct {
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
}

// RateLimitMessage is shown to callers whenever a dependency answered 429
const RateLimitMessage = "Rate limit exceeded. Please wait a moment and try again."

// SearchOutcome is the single result of one SearchRequest.
// Only the fields belonging to Kind are set.
type SearchOutcome struct {
	Kind OutcomeKind

	// found
	Results    []HostelRecord
	RawPayload json.RawMessage
	Sorted     bool

	// not_found
	Reason NotFoundReason

	// rate_limited
	RetryAfter time.Duration

	// failed
	ErrorKind  ErrorKind
	StatusCode int

	// rate_limited and failed
	Message string
}

// Found builds the success outcome
func Found(results []HostelRecord, raw json.RawMessage, sorted bool) SearchOutcome {
	return SearchOutcome{Kind: OutcomeFound, Results: results, RawPayload: raw, Sorted: sorted}
}

// NotFound builds the empty-result outcome
func NotFound(reason NotFoundReason) SearchOutcome {
	return SearchOutcome{Kind: OutcomeNotFound, Reason: reason}
}

// RateLimited builds the back-off outcome
func RateLimited(retryAfter time.Duration) SearchOutcome {
	return SearchOutcome{Kind: OutcomeRateLimited, RetryAfter: retryAfter, Message: RateLimitMessage}
}

// Failed builds the error outcome
func Failed(kind ErrorKind, message string) SearchOutcome {
	return SearchOutcome{Kind: OutcomeFailed, ErrorKind: kind, Message: message}
}

// FailedUpstream keeps the upstream status code alongside the message
func FailedUpstream(status int, message string) SearchOutcome {
	o := Failed(ErrorKindUpstream, message)
	o.StatusCode = status
	return o
}

// Detail returns the reason code or error kind for logs and the search log store
func (o SearchOutcome) Detail() string {
	switch o.Kind {
	case OutcomeNotFound:
		return string(o.Reason.Code)
	case OutcomeFailed:
		return string(o.ErrorKind)
	default:
		return ""
	}
}

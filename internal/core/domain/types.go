package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrTransport marks a call that never produced an HTTP response after all attempts.
	ErrTransport = errors.New("transport failure")
	// ErrMissingAPIKey is returned by completion adapters configured without credentials.
	ErrMissingAPIKey = errors.New("completion service api key is not set")
	// ErrMalformedPayload marks JSON-RPC or tool result bodies that could not be decoded.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrEmptyQuery is the validation failure for blank search queries.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// CallOptions controls how the resilient transport treats one outbound call.
type CallOptions struct {
	// MaxAttempts bounds the total number of requests sent, retries included.
	MaxAttempts int
	// FinalStep calls are time-boxed: a 429 is returned to the caller immediately.
	FinalStep bool
}

// Attempts returns MaxAttempts, never less than one.
func (o CallOptions) Attempts() int {
	if o.MaxAttempts < 1 {
		return 1
	}
	return o.MaxAttempts
}

// UpstreamError is a non-2xx answer from the completion or inventory service.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// RateLimited reports whether the upstream answered 429.
func (e *UpstreamError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ServerError reports whether the upstream answered 5xx.
func (e *UpstreamError) ServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

// RPCError is a JSON-RPC error object returned inside a 2xx response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

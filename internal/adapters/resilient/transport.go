package resilient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

const (
	baseDelay = time.Second

	// rate limited without a Retry-After hint
	rateLimitBackoffCap = 10 * time.Second
	// upper bound for an upstream-provided Retry-After
	retryAfterCap = 30 * time.Second
	// 5xx and network failures
	failureBackoffCap = 5 * time.Second

	maxErrorBody = 4096
)

// RequestFunc builds a fresh request for every attempt so bodies can be resent.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Transport wraps an http.Client with bounded exponential-backoff retry.
// 429 and 5xx responses are retried, other statuses are returned as-is.
type Transport struct {
	client  *http.Client
	logger  *slog.Logger
	service string
	sleep   SleepFunc
	now     func() time.Time
}

// New creates a Transport for one upstream service
func New(client *http.Client, service string, logger *slog.Logger) *Transport {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Transport{
		client:  client,
		logger:  logger,
		service: service,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// WithSleep replaces the wait function. Tests use it to skip real backoff.
func (t *Transport) WithSleep(fn SleepFunc) *Transport {
	t.sleep = fn
	return t
}

// Service names the upstream in errors and metrics
func (t *Transport) Service() string {
	return t.service
}

// Send executes the request built by build, retrying per opts.
// The returned response may carry a 429 or 5xx status when attempts ran out
// (or immediately for a 429 on a FinalStep call); the caller owns its body.
// When no attempt produced a response the error wraps domain.ErrTransport.
func (t *Transport) Send(ctx context.Context, build RequestFunc, opts domain.CallOptions) (*http.Response, error) {
	attempts := opts.Attempts()
	var lastErr error

	for i := 0; i < attempts; i++ {
		last := i == attempts-1

		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, t.service, ctx.Err())
			}
			lastErr = err
			if last {
				break
			}
			delay := Backoff(i, failureBackoffCap)
			t.logger.Warn("upstream unreachable, retrying",
				"service", t.service, "attempt", i+1, "delay", delay, "error", err)
			retriesTotal.WithLabelValues(t.service, "network").Inc()
			if err := t.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, t.service, err)
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if opts.FinalStep || last {
				responsesTotal.WithLabelValues(t.service, "429").Inc()
				return resp, nil
			}
			delay := Backoff(i, rateLimitBackoffCap)
			if hint, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), t.now()); ok {
				delay = min(hint, retryAfterCap)
			}
			discard(resp)
			t.logger.Warn("upstream rate limited, retrying",
				"service", t.service, "attempt", i+1, "delay", delay)
			retriesTotal.WithLabelValues(t.service, "rate_limited").Inc()
			if err := t.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, t.service, err)
			}

		case resp.StatusCode >= 500:
			if last {
				responsesTotal.WithLabelValues(t.service, "5xx").Inc()
				return resp, nil
			}
			delay := Backoff(i, failureBackoffCap)
			discard(resp)
			t.logger.Warn("upstream server error, retrying",
				"service", t.service, "attempt", i+1, "status", resp.StatusCode, "delay", delay)
			retriesTotal.WithLabelValues(t.service, "server_error").Inc()
			if err := t.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, t.service, err)
			}

		default:
			responsesTotal.WithLabelValues(t.service, statusClass(resp.StatusCode)).Inc()
			return resp, nil
		}
	}

	responsesTotal.WithLabelValues(t.service, "network").Inc()
	return nil, fmt.Errorf("%w: %s unreachable after %d attempts: %w", domain.ErrTransport, t.service, attempts, lastErr)
}

// UpstreamError drains a non-2xx response into a typed error and closes the body
func (t *Transport) UpstreamError(resp *http.Response) *domain.UpstreamError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	upErr := &domain.UpstreamError{
		Service:    t.service,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
	if hint, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), t.now()); ok {
		upErr.RetryAfter = min(hint, retryAfterCap)
	}
	return upErr
}

// Backoff returns min(1s * 2^i, limit) for the zero-based retry index i
func Backoff(i int, limit time.Duration) time.Duration {
	if i < 0 {
		i = 0
	}
	if i > 30 {
		return limit
	}
	return min(baseDelay*time.Duration(1<<i), limit)
}

// ParseRetryAfter accepts delta-seconds or an HTTP date
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	d := at.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return strconv.Itoa(code)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

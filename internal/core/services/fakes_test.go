package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// MockToolService is a testify mock of ports.ToolService
type MockToolService struct {
	mock.Mock
}

func (m *MockToolService) ListTools(ctx context.Context, opts domain.CallOptions) ([]domain.ToolDescriptor, error) {
	args := m.Called(ctx, opts)
	tools, _ := args.Get(0).([]domain.ToolDescriptor)
	return tools, args.Error(1)
}

func (m *MockToolService) CallTool(ctx context.Context, inv domain.ToolInvocation, opts domain.CallOptions) (json.RawMessage, error) {
	args := m.Called(ctx, inv, opts)
	payload, _ := args.Get(0).(json.RawMessage)
	return payload, args.Error(1)
}

// MockCompletionService is a testify mock of ports.CompletionService
type MockCompletionService struct {
	mock.Mock
}

func (m *MockCompletionService) Complete(ctx context.Context, req domain.CompletionRequest, opts domain.CallOptions) (*domain.CompletionResponse, error) {
	args := m.Called(ctx, req, opts)
	resp, _ := args.Get(0).(*domain.CompletionResponse)
	return resp, args.Error(1)
}

func (m *MockCompletionService) Name() string {
	return "mock"
}

// MockSearchLog is a testify mock of ports.SearchLog
type MockSearchLog struct {
	mock.Mock
}

func (m *MockSearchLog) Record(ctx context.Context, entry domain.SearchLogEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockSearchLog) Recent(ctx context.Context, limit int) ([]domain.SearchLogEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]domain.SearchLogEntry)
	return entries, args.Error(1)
}

// fakeClock is a settable time source, safe for background readers
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

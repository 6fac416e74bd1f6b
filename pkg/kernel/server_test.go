package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, req domain.SearchRequest) domain.SearchOutcome {
	return m.Called(ctx, req).Get(0).(domain.SearchOutcome)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetTools(ctx context.Context) []domain.ToolDescriptor {
	tools, _ := m.Called(ctx).Get(0).([]domain.ToolDescriptor)
	return tools
}

type MockTools struct {
	mock.Mock
}

func (m *MockTools) ListTools(ctx context.Context, opts domain.CallOptions) ([]domain.ToolDescriptor, error) {
	args := m.Called(ctx, opts)
	tools, _ := args.Get(0).([]domain.ToolDescriptor)
	return tools, args.Error(1)
}

func (m *MockTools) CallTool(ctx context.Context, inv domain.ToolInvocation, opts domain.CallOptions) (json.RawMessage, error) {
	args := m.Called(ctx, inv, opts)
	payload, _ := args.Get(0).(json.RawMessage)
	return payload, args.Error(1)
}

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

type fixture struct {
	searcher  *MockSearcher
	catalog   *MockCatalog
	tools     *MockTools
	searchLog *MockSearchLog
	handler   http.Handler
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		searcher:  new(MockSearcher),
		catalog:   new(MockCatalog),
		tools:     new(MockTools),
		searchLog: new(MockSearchLog),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.handler = NewServer(logger, f.searcher, f.catalog, f.tools, f.searchLog, opts).Handler()
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestServer_SearchFound(t *testing.T) {
	f := newFixture(Options{})
	raw := json.RawMessage(`{"structuredContent":{"properties":[{"id":"1"}]}}`)
	f.searcher.On("Search", mock.Anything, mock.MatchedBy(func(r domain.SearchRequest) bool {
		return r.Query == "Hostels in Lisbon" && !r.ProfileBased && r.ID != ""
	})).Return(domain.Found([]domain.HostelRecord{{ID: "1", Name: "Yes Lisbon", OverallRating: 9.1}}, raw, true)).Once()

	w := f.do(http.MethodPost, "/", `{"query":"Hostels in Lisbon"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	resp := decode(t, w)
	assert.Equal(t, "Results found", resp["message"])
	assert.Equal(t, true, resp["sorted"])
	mcpResponse, _ := json.Marshal(resp["mcpResponse"])
	assert.JSONEq(t, string(raw), string(mcpResponse))
	hostels := resp["hostels"].([]interface{})
	require.Len(t, hostels, 1)
	assert.Equal(t, "Yes Lisbon", hostels[0].(map[string]interface{})["name"])
	f.searcher.AssertExpectations(t)
}

func TestServer_SearchNotFound(t *testing.T) {
	f := newFixture(Options{})
	f.searcher.On("Search", mock.Anything, mock.Anything).Return(domain.NotFound(domain.NotFoundReason{
		Code:    domain.ReasonLocation,
		Message: "No properties found in Tokyo for your search.",
	})).Once()

	w := f.do(http.MethodPost, "/v1/hostel-search", `{"query":"private ensuite room in Tokyo"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "No results found on Inv MCP", resp["message"])
	assert.Equal(t, "No properties found in Tokyo for your search.", resp["reason"])
	assert.Equal(t, "location", resp["reasonCode"])
	assert.Contains(t, resp, "mcpResponse")
	assert.Nil(t, resp["mcpResponse"])
}

func TestServer_SearchRateLimited(t *testing.T) {
	f := newFixture(Options{})
	f.searcher.On("Search", mock.Anything, mock.Anything).Return(domain.RateLimited(1500 * time.Millisecond)).Once()

	w := f.do(http.MethodPost, "/", `{"query":"Hostels in Rome"}`)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	resp := decode(t, w)
	assert.Equal(t, true, resp["rateLimited"])
	assert.Equal(t, domain.RateLimitMessage, resp["error"])
}

func TestServer_SearchFailures(t *testing.T) {
	tests := []struct {
		name    string
		outcome domain.SearchOutcome
		status  int
	}{
		{"validation", domain.Failed(domain.ErrorKindValidation, "query must not be empty"), http.StatusBadRequest},
		{"upstream", domain.FailedUpstream(503, "inventory returned status 503"), http.StatusInternalServerError},
		{"transport", domain.Failed(domain.ErrorKindTransport, "unreachable"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Options{})
			f.searcher.On("Search", mock.Anything, mock.Anything).Return(tt.outcome).Once()

			w := f.do(http.MethodPost, "/", `{"query":"   "}`)

			require.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.Equal(t, tt.outcome.Message, resp["error"])
			assert.Equal(t, []interface{}{}, resp["hostels"])
		})
	}
}

func TestServer_MalformedBody(t *testing.T) {
	f := newFixture(Options{})

	for _, body := range []string{"", "{not json", `{"query": 12}`} {
		w := f.do(http.MethodPost, "/", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, decode(t, w), "error")
	}
	f.searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestServer_ProfileSynthesizesQuery(t *testing.T) {
	f := newFixture(Options{})
	f.searcher.On("Search", mock.Anything, mock.MatchedBy(func(r domain.SearchRequest) bool {
		return r.ProfileBased &&
			strings.HasPrefix(r.Query, "I'm interested in surfing") &&
			strings.Contains(r.Query, "with prices between $20-50 per night")
	})).Return(domain.NotFound(domain.NotFoundReason{Code: domain.ReasonGeneric, Message: "nothing"})).Once()

	w := f.do(http.MethodPost, "/", `{"profile":{"interests":["surfing"],"hostelPreferences":{"bar":true},"budgetRange":{"min":20,"max":50}}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	f.searcher.AssertExpectations(t)
}

func TestServer_ListToolsAction(t *testing.T) {
	f := newFixture(Options{})
	f.tools.On("ListTools", mock.Anything, domain.CallOptions{MaxAttempts: 1}).
		Return([]domain.ToolDescriptor{{Name: "search_properties", InputSchema: domain.DefaultInputSchema}}, nil).Once()

	w := f.do(http.MethodPost, "/", `{"action":"list-tools"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])
	assert.Len(t, resp["tools"], 1)
	f.searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	f.catalog.AssertNotCalled(t, "GetTools", mock.Anything)
}

func TestServer_ListToolsActionFailure(t *testing.T) {
	f := newFixture(Options{})
	f.tools.On("ListTools", mock.Anything, mock.Anything).Return(nil, errors.New("inventory returned status 502")).Once()

	w := f.do(http.MethodPost, "/", `{"action":"list-tools"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "inventory returned status 502", resp["error"])
	assert.Equal(t, []interface{}{}, resp["tools"])
}

func TestServer_CachedTools(t *testing.T) {
	f := newFixture(Options{})
	f.catalog.On("GetTools", mock.Anything).Return([]domain.ToolDescriptor{{Name: "a"}, {Name: "b"}}).Once()

	w := f.do(http.MethodGet, "/v1/tools", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])
}

func TestServer_RecentSearches(t *testing.T) {
	f := newFixture(Options{})
	f.searchLog.On("Recent", mock.Anything, 5).Return([]domain.SearchLogEntry{
		{ID: "s1", Query: "Hostels in Rome", Outcome: domain.OutcomeFound, ResultCount: 3},
	}, nil).Once()

	w := f.do(http.MethodGet, "/v1/searches/recent?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = f.do(http.MethodGet, "/v1/searches/recent?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.searchLog.On("Recent", mock.Anything, defaultRecentLimit).Return(nil, errors.New("disk full")).Once()
	w = f.do(http.MethodGet, "/v1/searches/recent", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_OptionsShortCircuits(t *testing.T) {
	f := newFixture(Options{})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = f.do(http.MethodOptions, "/v1/hostel-search", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_RestrictedOrigins(t *testing.T) {
	f := newFixture(Options{AllowedOrigins: []string{"https://app.example"}})
	f.catalog.On("GetTools", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_HealthAndMetrics(t *testing.T) {
	f := newFixture(Options{})

	w := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hostelscout_searches_in_flight")
}

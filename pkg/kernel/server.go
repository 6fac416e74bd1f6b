package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cast"

	"github.com/manthysbr/hostelscout/internal/core/domain"
	"github.com/manthysbr/hostelscout/internal/core/ports"
	"github.com/manthysbr/hostelscout/internal/core/services"
)

const (
	maxBodyBytes       = 1 << 20
	defaultRecentLimit = 20
	listToolsTimeout   = 30 * time.Second

	messageFound    = "Results found"
	messageNotFound = "No results found on Inv MCP"
)

// corsAllowHeaders are the request headers browser clients send with searches
var corsAllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// Searcher runs one search to completion
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) domain.SearchOutcome
}

// ToolCatalog serves the cached tool list
type ToolCatalog interface {
	GetTools(ctx context.Context) []domain.ToolDescriptor
}

// Options configures the HTTP surface
type Options struct {
	AllowedOrigins []string
}

type Server struct {
	logger    *slog.Logger
	searcher  Searcher
	catalog   ToolCatalog
	tools     ports.ToolService
	searchLog ports.SearchLog // optional
	opts      Options
}

func NewServer(
	logger *slog.Logger,
	searcher Searcher,
	catalog ToolCatalog,
	tools ports.ToolService,
	searchLog ports.SearchLog,
	opts Options,
) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		logger:    logger,
		searcher:  searcher,
		catalog:   catalog,
		tools:     tools,
		searchLog: searchLog,
		opts:      opts,
	}
}

// Handler returns the http.Handler for the server, CORS included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", s.handleHostelSearch)
	mux.HandleFunc("POST /v1/hostel-search", s.handleHostelSearch)
	mux.HandleFunc("GET /v1/tools", s.handleListTools)
	mux.HandleFunc("GET /v1/searches/recent", s.handleRecentSearches)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:     s.opts.AllowedOrigins,
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     corsAllowHeaders,
		OptionsPassthrough: true,
	})

	return c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w)
		// Preflight short-circuits with an empty 200
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		mux.ServeHTTP(w, r)
	}))
}

// setCORSHeaders makes every response permissive when all origins are
// allowed, including requests that carry no Origin header.
func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	if !s.allowsAnyOrigin() {
		return
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", strings.Join(corsAllowHeaders, ", "))
}

func (s *Server) allowsAnyOrigin() bool {
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

type searchRequestBody struct {
	Action       string              `json:"action,omitempty"`
	Query        string              `json:"query,omitempty"`
	ProfileBased bool                `json:"profileBased,omitempty"`
	Profile      *domain.UserProfile `json:"profile,omitempty"`
}

type foundResponse struct {
	Message     string                `json:"message"`
	MCPResponse json.RawMessage       `json:"mcpResponse"`
	Hostels     []domain.HostelRecord `json:"hostels"`
	Sorted      bool                  `json:"sorted"`
}

type notFoundResponse struct {
	Message     string            `json:"message"`
	Reason      string            `json:"reason"`
	ReasonCode  domain.ReasonCode `json:"reasonCode"`
	MCPResponse json.RawMessage   `json:"mcpResponse"`
}

type rateLimitedResponse struct {
	Error       string `json:"error"`
	RateLimited bool   `json:"rateLimited"`
}

type errorResponse struct {
	Error   string                `json:"error"`
	Hostels []domain.HostelRecord `json:"hostels"`
}

type listToolsResponse struct {
	Success bool                    `json:"success"`
	Tools   []domain.ToolDescriptor `json:"tools"`
	Error   string                  `json:"error,omitempty"`
}

// handleHostelSearch runs a search or proxies a tools/list call.
// POST / and POST /v1/hostel-search
func (s *Server) handleHostelSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		s.logger.Warn("rejected search request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Hostels: []domain.HostelRecord{}})
		return
	}

	if body.Action == "list-tools" {
		s.proxyListTools(w, r)
		return
	}

	query, profileBased := body.Query, body.ProfileBased
	if strings.TrimSpace(query) == "" && body.Profile != nil {
		query = services.BuildProfileQuery(*body.Profile)
		profileBased = true
	}

	req := domain.NewSearchRequest(query, profileBased)
	s.logger.Info("hostel search request", "request_id", string(req.ID), "profile_based", profileBased)
	writeOutcome(w, s.searcher.Search(r.Context(), req))
}

// proxyListTools bypasses the catalog cache
func (s *Server) proxyListTools(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), listToolsTimeout)
	defer cancel()

	tools, err := s.tools.ListTools(ctx, domain.CallOptions{MaxAttempts: 1})
	if err != nil {
		s.logger.Error("list-tools failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, listToolsResponse{
			Success: false,
			Tools:   []domain.ToolDescriptor{},
			Error:   err.Error(),
		})
		return
	}
	if tools == nil {
		tools = []domain.ToolDescriptor{}
	}
	writeJSON(w, http.StatusOK, listToolsResponse{Success: true, Tools: tools})
}

func writeOutcome(w http.ResponseWriter, outcome domain.SearchOutcome) {
	switch outcome.Kind {
	case domain.OutcomeFound:
		hostels := outcome.Results
		if hostels == nil {
			hostels = []domain.HostelRecord{}
		}
		writeJSON(w, http.StatusOK, foundResponse{
			Message:     messageFound,
			MCPResponse: outcome.RawPayload,
			Hostels:     hostels,
			Sorted:      outcome.Sorted,
		})
	case domain.OutcomeNotFound:
		writeJSON(w, http.StatusOK, notFoundResponse{
			Message:    messageNotFound,
			Reason:     outcome.Reason.Message,
			ReasonCode: outcome.Reason.Code,
		})
	case domain.OutcomeRateLimited:
		if outcome.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(outcome.RetryAfter.Seconds()))))
		}
		writeJSON(w, http.StatusTooManyRequests, rateLimitedResponse{Error: outcome.Message, RateLimited: true})
	default:
		status := http.StatusInternalServerError
		if outcome.ErrorKind == domain.ErrorKindValidation {
			status = http.StatusBadRequest
		}
		msg := outcome.Message
		if msg == "" {
			msg = "Unknown error"
		}
		writeJSON(w, status, errorResponse{Error: msg, Hostels: []domain.HostelRecord{}})
	}
}

// handleListTools returns the cached tool catalog.
// GET /v1/tools
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := s.catalog.GetTools(r.Context())
	if tools == nil {
		tools = []domain.ToolDescriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": tools,
		"count": len(tools),
	})
}

// handleRecentSearches returns the latest search log entries.
// GET /v1/searches/recent?limit=n
func (s *Server) handleRecentSearches(w http.ResponseWriter, r *http.Request) {
	if s.searchLog == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"searches": []struct{}{}, "count": 0})
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := s.searchLog.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read search log", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read search log"})
		return
	}
	if entries == nil {
		entries = []domain.SearchLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"searches": entries,
		"count":    len(entries),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

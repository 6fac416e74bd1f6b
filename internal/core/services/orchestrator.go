package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/manthysbr/hostelscout/internal/core/domain"
	"github.com/manthysbr/hostelscout/internal/core/ports"
)

// toolResultLimit caps the raw payload text fed back for results without records
const toolResultLimit = 16000

type searchState string

const (
	stateInit                    searchState = "init"
	stateToolsFetched            searchState = "tools_fetched"
	stateAwaitingFirstCompletion searchState = "awaiting_first_completion"
	stateNoToolUse               searchState = "no_tool_use"
	stateToolUseRequested        searchState = "tool_use_requested"
	stateExecutingTools          searchState = "executing_tools"
	stateAwaitingSortCompletion  searchState = "awaiting_sort_completion"
	stateDone                    searchState = "done"
)

// OrchestratorConfig holds the per-call retry budgets
type OrchestratorConfig struct {
	CompletionAttempts int
	ToolCallAttempts   int
	MaxTokens          int
	SearchTimeout      time.Duration
}

// Orchestrator drives one search from query to SearchOutcome
type Orchestrator struct {
	logger     *slog.Logger
	catalog    *ToolCatalog
	completion ports.CompletionService
	tools      ports.ToolService
	searchLog  ports.SearchLog
	gate       *SearchGate
	cfg        OrchestratorConfig
	now        func() time.Time
}

func NewOrchestrator(
	logger *slog.Logger,
	catalog *ToolCatalog,
	completion ports.CompletionService,
	tools ports.ToolService,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.CompletionAttempts <= 0 {
		cfg.CompletionAttempts = 3
	}
	if cfg.ToolCallAttempts <= 0 {
		cfg.ToolCallAttempts = 2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Orchestrator{
		logger:     logger,
		catalog:    catalog,
		completion: completion,
		tools:      tools,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithSearchLog records every finished search in store
func (o *Orchestrator) WithSearchLog(store ports.SearchLog) *Orchestrator {
	o.searchLog = store
	return o
}

// WithGate bounds concurrent searches
func (o *Orchestrator) WithGate(gate *SearchGate) *Orchestrator {
	o.gate = gate
	return o
}

// WithClock overrides the time source used for the prompt date and durations
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// searchRun is the state of one search. It dies with the request.
type searchRun struct {
	req    domain.SearchRequest
	query  string
	logger *slog.Logger
	state  searchState

	toolCalls      int
	serverFailures int
	transportFails int
	lastStatus     int
	lastFailure    string
	rateLimited    bool
	retryAfter     time.Duration
}

func (r *searchRun) transition(to searchState) {
	r.logger.Debug("search state", "from", string(r.state), "to", string(to))
	r.state = to
}

// candidate is the first tool result that produced records
type candidate struct {
	toolUseID string
	payload   json.RawMessage
	hostels   []domain.HostelRecord
}

// Search runs the pipeline and always returns exactly one outcome
func (o *Orchestrator) Search(ctx context.Context, req domain.SearchRequest) domain.SearchOutcome {
	start := o.now()
	run := &searchRun{
		req:    req,
		query:  req.TrimmedQuery(),
		logger: o.logger.With("request_id", string(req.ID), "mode", string(req.Mode())),
		state:  stateInit,
	}

	if run.query == "" {
		outcome := domain.Failed(domain.ErrorKindValidation, domain.ErrEmptyQuery.Error())
		o.observe(run, outcome, start)
		return outcome
	}

	if o.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.SearchTimeout)
		defer cancel()
	}

	if o.gate != nil {
		release, err := o.gate.Acquire(ctx)
		if err != nil {
			outcome := domain.Failed(domain.ErrorKindInternal, "search cancelled while waiting for capacity")
			o.finish(ctx, run, outcome, start)
			return outcome
		}
		defer release()
	}

	outcome := o.run(ctx, run)
	o.finish(ctx, run, outcome, start)
	return outcome
}

func (o *Orchestrator) run(ctx context.Context, run *searchRun) domain.SearchOutcome {
	mode := run.req.Mode()

	tools := o.catalog.GetTools(ctx)
	run.transition(stateToolsFetched)
	run.logger.Info("searching", "query", run.query, "tools", len(tools))

	system := BuildPrompt(mode, o.now(), domain.ToolNames(tools))
	conv := domain.NewConversation(run.query)

	run.transition(stateAwaitingFirstCompletion)
	resp, err := o.completion.Complete(ctx, domain.CompletionRequest{
		System:    system,
		Turns:     conv.Turns(),
		Tools:     tools,
		MaxTokens: o.cfg.MaxTokens,
	}, domain.CallOptions{MaxAttempts: o.cfg.CompletionAttempts})
	if err != nil {
		run.logger.Error("completion failed", "provider", o.completion.Name(), "error", err)
		return completionFailure(err)
	}

	if !resp.WantsTools() {
		run.transition(stateNoToolUse)
		return domain.NotFound(ExplainNoResults(run.query))
	}

	run.transition(stateToolUseRequested)
	invocations := resp.ToolInvocations()
	run.transition(stateExecutingTools)
	results, found := o.executeTools(ctx, run, invocations)

	if found == nil {
		return noCandidateOutcome(run)
	}

	run.transition(stateAwaitingSortCompletion)
	conv.AppendAssistant(resp.Blocks)
	blocks := make([]domain.ContentBlock, 0, len(results)+1)
	for _, r := range results {
		block := domain.ToolResultBlock(r, toolResultLimit)
		if r.CorrelationID == found.toolUseID {
			// rank the normalized records, not a cut-off raw payload
			block.Content = domain.HostelDigest(found.hostels)
		}
		blocks = append(blocks, block)
	}
	blocks = append(blocks, domain.TextBlock(SortInstruction(mode)))
	conv.AppendUser(blocks...)

	sortResp, err := o.completion.Complete(ctx, domain.CompletionRequest{
		System:    system,
		Turns:     conv.Turns(),
		Tools:     tools,
		MaxTokens: o.cfg.MaxTokens,
	}, domain.CallOptions{MaxAttempts: o.cfg.CompletionAttempts, FinalStep: true})
	if err != nil {
		var upstream *domain.UpstreamError
		switch {
		case errors.As(err, &upstream) && upstream.RateLimited():
			sortPassesTotal.WithLabelValues("rate_limited").Inc()
			run.logger.Warn("sort pass rate limited, discarding results", "retry_after", upstream.RetryAfter)
			return domain.RateLimited(upstream.RetryAfter)
		case errors.Is(err, domain.ErrTransport):
			sortPassesTotal.WithLabelValues("failed").Inc()
			run.logger.Error("sort pass unreachable", "error", err)
			return domain.Failed(domain.ErrorKindTransport, err.Error())
		default:
			sortPassesTotal.WithLabelValues("fallback").Inc()
			run.logger.Warn("sort pass failed, returning unsorted results", "error", err)
			return domain.Found(found.hostels, found.payload, false)
		}
	}

	ids, ok := parseRanking(sortResp.Text())
	if !ok {
		sortPassesTotal.WithLabelValues("fallback").Inc()
		run.logger.Warn("sort pass returned no usable ranking, returning unsorted results")
		return domain.Found(found.hostels, found.payload, false)
	}
	sortPassesTotal.WithLabelValues("sorted").Inc()
	return domain.Found(applyRanking(found.hostels, ids), found.payload, true)
}

// executeTools runs invocations in order. Once one yields records, the rest
// are skipped but still get a result so every tool_use has a tool_result.
func (o *Orchestrator) executeTools(ctx context.Context, run *searchRun, invocations []domain.ToolInvocation) ([]domain.ToolExecutionResult, *candidate) {
	fields := ClassifyFields(run.query)
	results := make([]domain.ToolExecutionResult, 0, len(invocations))
	var found *candidate

	for _, inv := range invocations {
		if found != nil {
			results = append(results, domain.ToolSkipped(inv))
			toolCallsTotal.WithLabelValues(inv.ToolName, string(domain.ToolResultSkipped)).Inc()
			continue
		}

		result, hostels := o.executeTool(ctx, run, inv, fields)
		results = append(results, result)
		toolCallsTotal.WithLabelValues(inv.ToolName, string(result.Status)).Inc()

		if result.HasRecords() {
			found = &candidate{toolUseID: inv.CorrelationID, payload: result.Payload, hostels: hostels}
		}
	}
	return results, found
}

func (o *Orchestrator) executeTool(ctx context.Context, run *searchRun, inv domain.ToolInvocation, fields domain.FieldSet) (domain.ToolExecutionResult, []domain.HostelRecord) {
	logger := run.logger.With("tool", inv.ToolName, "tool_use_id", inv.CorrelationID)

	if err := o.catalog.ValidateArguments(inv.ToolName, inv.ArgumentsOrEmpty()); err != nil {
		logger.Warn("tool arguments rejected", "error", err)
		return domain.ToolFailed(inv, domain.ToolErrorInvalidArguments, err.Error()), nil
	}

	run.toolCalls++
	logger.Info("executing tool", "arguments", string(inv.ArgumentsOrEmpty()))
	payload, err := o.tools.CallTool(ctx, inv, domain.CallOptions{MaxAttempts: o.cfg.ToolCallAttempts, FinalStep: true})
	if err != nil {
		kind := run.recordToolFailure(err)
		logger.Error("tool call failed", "kind", string(kind), "error", err)
		return domain.ToolFailed(inv, kind, err.Error()), nil
	}

	records, err := ExtractRecords(payload)
	if err != nil {
		logger.Warn("tool result not usable", "error", err)
		return domain.ToolFailed(inv, domain.ToolErrorParse, err.Error()), nil
	}
	hostels := Normalize(records, fields)
	logger.Info("tool result received", "records", len(records), "hostels", len(hostels))
	return domain.ToolSucceeded(inv, payload, len(hostels)), hostels
}

// recordToolFailure classifies err and tracks it for the no-candidate outcome
func (r *searchRun) recordToolFailure(err error) domain.ToolErrorKind {
	var upstream *domain.UpstreamError
	var rpcErr *domain.RPCError
	r.lastFailure = err.Error()

	switch {
	case errors.As(err, &upstream):
		r.lastStatus = upstream.StatusCode
		if upstream.RateLimited() {
			r.rateLimited = true
			if upstream.RetryAfter > r.retryAfter {
				r.retryAfter = upstream.RetryAfter
			}
			return domain.ToolErrorRateLimited
		}
		if upstream.ServerError() {
			r.serverFailures++
		}
		return domain.ToolErrorUpstream
	case errors.As(err, &rpcErr):
		return domain.ToolErrorRPC
	case errors.Is(err, domain.ErrMalformedPayload):
		return domain.ToolErrorParse
	case errors.Is(err, domain.ErrTransport):
		r.transportFails++
		return domain.ToolErrorTransport
	default:
		return domain.ToolErrorUpstream
	}
}

// noCandidateOutcome decides between rate_limited, failed and not_found when
// no tool produced records
func noCandidateOutcome(run *searchRun) domain.SearchOutcome {
	if run.rateLimited {
		return domain.RateLimited(run.retryAfter)
	}
	if run.toolCalls > 0 && run.serverFailures+run.transportFails == run.toolCalls {
		if run.transportFails > 0 {
			return domain.Failed(domain.ErrorKindTransport, run.lastFailure)
		}
		return domain.FailedUpstream(run.lastStatus, run.lastFailure)
	}
	return domain.NotFound(ExplainNoResults(run.query))
}

func completionFailure(err error) domain.SearchOutcome {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrMissingAPIKey):
		return domain.Failed(domain.ErrorKindConfig, err.Error())
	case errors.As(err, &upstream):
		if upstream.RateLimited() {
			return domain.RateLimited(upstream.RetryAfter)
		}
		return domain.FailedUpstream(upstream.StatusCode, err.Error())
	case errors.Is(err, domain.ErrTransport):
		return domain.Failed(domain.ErrorKindTransport, err.Error())
	case errors.Is(err, domain.ErrMalformedPayload):
		return domain.Failed(domain.ErrorKindUpstream, err.Error())
	default:
		return domain.Failed(domain.ErrorKindInternal, err.Error())
	}
}

// parseRanking reads a JSON array of property ids out of the model's answer.
// Code fences and surrounding prose are ignored.
func parseRanking(text string) ([]string, bool) {
	open := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if open < 0 || end <= open {
		return nil, false
	}

	var items []any
	if err := json.Unmarshal([]byte(text[open:end+1]), &items); err != nil {
		return nil, false
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		var id string
		if m, ok := item.(map[string]any); ok {
			id = cast.ToString(m["id"])
		} else {
			id = cast.ToString(item)
		}
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, len(ids) > 0
}

// applyRanking orders hostels by their position in ids. Hostels the ranking
// does not mention keep their relative order after the ranked ones.
func applyRanking(hostels []domain.HostelRecord, ids []string) []domain.HostelRecord {
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, seen := rank[id]; !seen {
			rank[id] = i
		}
	}
	position := func(h domain.HostelRecord) int {
		if r, ok := rank[h.ID]; ok {
			return r
		}
		return len(ids)
	}

	out := make([]domain.HostelRecord, len(hostels))
	copy(out, hostels)
	sort.SliceStable(out, func(i, j int) bool {
		return position(out[i]) < position(out[j])
	})
	return out
}

func (o *Orchestrator) finish(ctx context.Context, run *searchRun, outcome domain.SearchOutcome, start time.Time) {
	run.transition(stateDone)
	duration := o.observe(run, outcome, start)

	attrs := []any{
		"outcome", string(outcome.Kind),
		"detail", outcome.Detail(),
		"results", len(outcome.Results),
		"tool_calls", run.toolCalls,
		"sorted", outcome.Sorted,
		"duration", duration,
	}
	if outcome.Kind == domain.OutcomeFailed {
		run.logger.Warn("search finished", append(attrs, "error", outcome.Message)...)
	} else {
		run.logger.Info("search finished", attrs...)
	}

	if o.searchLog == nil {
		return
	}
	entry := domain.SearchLogEntry{
		ID:           run.req.ID,
		Query:        run.query,
		ProfileBased: run.req.ProfileBased,
		Outcome:      outcome.Kind,
		Reason:       outcome.Detail(),
		ResultCount:  len(outcome.Results),
		ToolCalls:    run.toolCalls,
		Sorted:       outcome.Sorted,
		DurationMS:   duration.Milliseconds(),
		CreatedAt:    start.UTC(),
	}
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.searchLog.Record(logCtx, entry); err != nil {
		run.logger.Warn("failed to record search", "error", err)
	}
}

func (o *Orchestrator) observe(run *searchRun, outcome domain.SearchOutcome, start time.Time) time.Duration {
	duration := o.now().Sub(start)
	searchesTotal.WithLabelValues(string(run.req.Mode()), string(outcome.Kind), outcome.Detail()).Inc()
	searchDuration.WithLabelValues(string(outcome.Kind)).Observe(duration.Seconds())
	if outcome.Kind == domain.OutcomeFound {
		searchResultsCount.Observe(float64(len(outcome.Results)))
	}
	return duration
}

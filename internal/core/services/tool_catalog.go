package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"golang.org/x/sync/singleflight"

	"github.com/manthysbr/hostelscout/internal/core/domain"
	"github.com/manthysbr/hostelscout/internal/core/ports"
)

// DefaultToolCacheTTL is how long a fetched catalog stays fresh
const DefaultToolCacheTTL = 5 * time.Minute

// catalogEntry is one immutable snapshot of the remote catalog
type catalogEntry struct {
	tools     []domain.ToolDescriptor
	schemas   map[string]*openapi3.Schema
	fetchedAt time.Time
}

// ToolCatalog caches the remote tools/list result process-wide.
// Readers load the current snapshot without locking; a refresh builds a new
// snapshot and swaps it in atomically.
type ToolCatalog struct {
	logger *slog.Logger
	tools  ports.ToolService
	ttl    time.Duration
	now    func() time.Time

	entry      atomic.Pointer[catalogEntry]
	refresh    singleflight.Group
	refreshing atomic.Bool // a background refresh is running
}

// NewToolCatalog creates an empty catalog. ttl <= 0 uses the five minute default.
func NewToolCatalog(logger *slog.Logger, tools ports.ToolService, ttl time.Duration) *ToolCatalog {
	if ttl <= 0 {
		ttl = DefaultToolCacheTTL
	}
	return &ToolCatalog{
		logger: logger,
		tools:  tools,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Tests use it to simulate expiry.
func (c *ToolCatalog) WithClock(now func() time.Time) *ToolCatalog {
	c.now = now
	return c
}

// GetTools returns the cached catalog and never fails.
// A stale snapshot is served as-is while one background refresh replaces it.
// Only a cold catalog makes the caller wait, and never past ctx: on a refresh
// error or cancellation the previous tools (or none) are returned.
func (c *ToolCatalog) GetTools(ctx context.Context) []domain.ToolDescriptor {
	e := c.entry.Load()
	if e != nil {
		if c.now().Sub(e.fetchedAt) < c.ttl {
			catalogLookups.WithLabelValues("hit").Inc()
			return e.tools
		}
		catalogLookups.WithLabelValues("stale").Inc()
		if c.refreshing.CompareAndSwap(false, true) {
			go c.refreshInBackground(ctx)
		}
		return e.tools
	}
	catalogLookups.WithLabelValues("miss").Inc()

	select {
	case res := <-c.startRefresh(ctx):
		if res.Err != nil {
			return c.fallback(res.Err)
		}
		if res.Shared {
			c.logger.Debug("tool catalog refresh shared between callers")
		}
		return res.Val.(*catalogEntry).tools
	case <-ctx.Done():
		c.logger.Warn("gave up waiting for tool catalog", "error", ctx.Err())
		return c.fallback(nil)
	}
}

// startRefresh joins the in-flight tools/list call or starts one.
// The call is detached from ctx since other readers may share it.
func (c *ToolCatalog) startRefresh(ctx context.Context) <-chan singleflight.Result {
	detached := context.WithoutCancel(ctx)
	return c.refresh.DoChan("tools", func() (interface{}, error) {
		return c.fetch(detached)
	})
}

func (c *ToolCatalog) refreshInBackground(ctx context.Context) {
	defer c.refreshing.Store(false)
	if res := <-c.startRefresh(ctx); res.Err != nil {
		c.fallback(res.Err)
	}
}

// fallback returns whatever is cached, or an empty catalog
func (c *ToolCatalog) fallback(err error) []domain.ToolDescriptor {
	prev := c.entry.Load()
	if err != nil {
		catalogLookups.WithLabelValues("error").Inc()
		count := 0
		if prev != nil {
			count = len(prev.tools)
		}
		c.logger.Warn("tool catalog refresh failed, serving previous catalog", "error", err, "cached_tools", count)
	}
	if prev == nil {
		return []domain.ToolDescriptor{}
	}
	return prev.tools
}

// Invalidate drops the cached catalog so the next GetTools refetches
func (c *ToolCatalog) Invalidate() {
	c.entry.Store(nil)
}

// ValidateArguments checks args against the tool's declared input schema.
// Unknown tools and tools whose schema could not be compiled pass.
func (c *ToolCatalog) ValidateArguments(name string, args json.RawMessage) error {
	e := c.entry.Load()
	if e == nil {
		return nil
	}
	schema, ok := e.schemas[name]
	if !ok || schema == nil {
		return nil
	}

	var value interface{}
	if len(args) == 0 {
		value = map[string]interface{}{}
	} else if err := json.Unmarshal(args, &value); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := schema.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return fmt.Errorf("arguments do not match %s input schema: %w", name, err)
	}
	return nil
}

func (c *ToolCatalog) fetch(ctx context.Context) (*catalogEntry, error) {
	start := c.now()
	tools, err := c.tools.ListTools(ctx, domain.CallOptions{MaxAttempts: 1})
	if err != nil {
		return nil, err
	}

	entry := &catalogEntry{
		tools:     tools,
		schemas:   make(map[string]*openapi3.Schema, len(tools)),
		fetchedAt: c.now(),
	}
	for _, t := range tools {
		schema, err := compileSchema(t.Schema())
		if err != nil {
			c.logger.Warn("tool input schema not usable for validation", "tool", t.Name, "error", err)
			continue
		}
		entry.schemas[t.Name] = schema
	}

	c.entry.Store(entry)
	catalogSize.Set(float64(len(tools)))
	c.logger.Info("tool catalog refreshed", "tools", len(tools), "duration", c.now().Sub(start))
	return entry, nil
}

// compileSchema reads a JSON schema through the OpenAPI 3 schema model.
// The $schema and $id keywords are not part of it and are dropped first.
func compileSchema(raw json.RawMessage) (*openapi3.Schema, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(doc, "$schema")
	delete(doc, "$id")
	cleaned, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	schema := openapi3.NewSchema()
	if err := json.Unmarshal(cleaned, schema); err != nil {
		return nil, err
	}
	if err := schema.Validate(context.Background()); err != nil {
		return nil, err
	}
	return schema, nil
}

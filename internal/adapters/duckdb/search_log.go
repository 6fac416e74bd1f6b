package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

const maxRecentLimit = 500

// Record persists one finished search. Re-recording an ID overwrites it.
func (r *Repository) Record(ctx context.Context, entry domain.SearchLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO search_log (id, query, profile_based, outcome, reason,
		                        result_count, tool_calls, sorted, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			outcome      = excluded.outcome,
			reason       = excluded.reason,
			result_count = excluded.result_count,
			tool_calls   = excluded.tool_calls,
			sorted       = excluded.sorted,
			duration_ms  = excluded.duration_ms`,
		string(entry.ID),
		entry.Query,
		entry.ProfileBased,
		string(entry.Outcome),
		entry.Reason,
		entry.ResultCount,
		entry.ToolCalls,
		entry.Sorted,
		entry.DurationMS,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert search %s: %w", entry.ID, err)
	}
	return nil
}

// Recent returns the newest searches first
func (r *Repository) Recent(ctx context.Context, limit int) ([]domain.SearchLogEntry, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, query, profile_based, outcome, reason,
		       result_count, tool_calls, sorted, duration_ms, created_at
		FROM search_log
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query search_log: %w", err)
	}
	defer rows.Close()

	var entries []domain.SearchLogEntry
	for rows.Next() {
		var (
			e       domain.SearchLogEntry
			id      string
			outcome string
			reason  sql.NullString
		)
		if err := rows.Scan(&id, &e.Query, &e.ProfileBased, &outcome, &reason,
			&e.ResultCount, &e.ToolCalls, &e.Sorted, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search_log: %w", err)
		}
		e.ID = domain.SearchID(id)
		e.Outcome = domain.OutcomeKind(outcome)
		e.Reason = reason.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

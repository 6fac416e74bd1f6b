package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/manthysbr/hostelscout/internal/core/ports"
)

// Repository is the DuckDB-backed search log
type Repository struct {
	db *sql.DB
}

// Ensure Repository implements the SearchLog port
var _ ports.SearchLog = (*Repository)(nil)

// NewRepository opens (or creates) the database at path. An empty path is in-memory.
func NewRepository(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// a single connection keeps an in-memory database alive and shared
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS search_log (
			id            VARCHAR PRIMARY KEY,
			query         VARCHAR NOT NULL,
			profile_based BOOLEAN NOT NULL,
			outcome       VARCHAR NOT NULL,
			reason        VARCHAR,
			result_count  INTEGER NOT NULL,
			tool_calls    INTEGER NOT NULL,
			sorted        BOOLEAN NOT NULL,
			duration_ms   BIGINT NOT NULL,
			created_at    TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create search_log: %w", err)
	}
	return nil
}

// Close releases the database
func (r *Repository) Close() error {
	return r.db.Close()
}

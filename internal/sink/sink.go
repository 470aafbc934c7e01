// Package sink is the relational output side (C2): a batched, idempotent
// UPSERT against the unverified_tokens table with column-preservation
// policy for decimals and first_tx_date.
package sink

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenmetrics/internal/config"
	"tokenmetrics/internal/errs"
	"tokenmetrics/internal/models"
)

// Sink holds the pooled Postgres connection. Pool tuning mirrors the
// teacher's internal/repository/repo_core.go NewRepository.
type Sink struct {
	db *pgxpool.Pool
}

// New connects to Postgres and ensures the output table exists.
func New(ctx context.Context, dbURL string) (*Sink, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, &errs.ConfigError{Field: "sink_dsn", Err: err}
	}

	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, perr := strconv.Atoi(v); perr == nil {
			cfg.MaxConns = int32(n)
		}
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNS"); v != "" {
		if n, perr := strconv.Atoi(v); perr == nil {
			cfg.MinConns = int32(n)
		}
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["statement_timeout"]; !ok {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = getEnvDefault("DB_STATEMENT_TIMEOUT", "300000")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &errs.SinkError{Err: err}
	}

	s := &Sink{db: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ensureSchema creates the output table on first use, per spec §4.2 and
// the exact DDL in spec §6.
func (s *Sink) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS unverified_tokens (
			id BIGSERIAL PRIMARY KEY,
			contract_address VARCHAR NOT NULL,
			chain VARCHAR NOT NULL,
			decimals INT NULL,
			symbol VARCHAR NULL,
			name VARCHAR NULL,
			price_usd DOUBLE PRECISION DEFAULT 0,
			market_cap_usd DOUBLE PRECISION DEFAULT 0,
			supply DOUBLE PRECISION DEFAULT 0,
			largest_lp_pool_usd DOUBLE PRECISION DEFAULT 0,
			first_tx_date TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT now(),
			updated_at TIMESTAMP DEFAULT now(),
			view_source VARCHAR NULL,
			UNIQUE(contract_address, chain)
		);
		CREATE INDEX IF NOT EXISTS idx_unverified_tokens_contract_address ON unverified_tokens (contract_address);
		CREATE INDEX IF NOT EXISTS idx_unverified_tokens_chain ON unverified_tokens (chain);
		CREATE INDEX IF NOT EXISTS idx_unverified_tokens_updated_at ON unverified_tokens (updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_unverified_tokens_contract_chain ON unverified_tokens (contract_address, chain);
	`
	_, err := s.db.Exec(ctx, ddl)
	if err != nil {
		return &errs.SinkError{Err: err}
	}
	return nil
}

// Close releases the pool.
func (s *Sink) Close() { s.db.Close() }

// UpsertBatch writes rows in batches of at most config.SinkBatchMax(),
// each batch in its own transaction, applying the COALESCE
// column-preservation policy for decimals and first_tx_date (spec §4.2,
// invariants 5-6), grounded on teacher's UpsertFTTokens in
// internal/repository/api_v2.go.
func (s *Sink) UpsertBatch(ctx context.Context, rows []models.TokenRecord, viewSource string) error {
	if len(rows) == 0 {
		return nil
	}
	max := config.SinkBatchMax()
	for start := 0; start < len(rows); start += max {
		end := start + max
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.upsertOneBatch(ctx, rows[start:end], viewSource); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) upsertOneBatch(ctx context.Context, rows []models.TokenRecord, viewSource string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return &errs.SinkError{Err: err}
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		var decimals *int
		if r.Decimals != nil {
			v := int(*r.Decimals)
			decimals = &v
		}
		batch.Queue(`
			INSERT INTO unverified_tokens
				(contract_address, chain, decimals, symbol, name, price_usd,
				 market_cap_usd, supply, largest_lp_pool_usd, first_tx_date,
				 view_source, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			ON CONFLICT (contract_address, chain) DO UPDATE SET
				decimals = COALESCE(unverified_tokens.decimals, EXCLUDED.decimals),
				symbol = EXCLUDED.symbol,
				name = EXCLUDED.name,
				price_usd = EXCLUDED.price_usd,
				market_cap_usd = EXCLUDED.market_cap_usd,
				supply = EXCLUDED.supply,
				largest_lp_pool_usd = EXCLUDED.largest_lp_pool_usd,
				first_tx_date = COALESCE(unverified_tokens.first_tx_date, EXCLUDED.first_tx_date),
				view_source = EXCLUDED.view_source,
				updated_at = NOW()`,
			r.TokenID, r.Chain, decimals, r.Symbol, r.Name, r.PriceUSD,
			r.MarketCapUSD, r.Supply, r.LargestLPPoolUSD, r.FirstTxDate, viewSource)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < len(rows); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return &errs.SinkError{Err: fmt.Errorf("upsert row %d: %w", i, err)}
		}
	}
	if err := br.Close(); err != nil {
		return &errs.SinkError{Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &errs.SinkError{Err: err}
	}
	log.Printf("[sink] upserted %d rows (view_source=%s)", len(rows), viewSource)
	return nil
}

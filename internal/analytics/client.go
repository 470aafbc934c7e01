// Package analytics wraps the columnar analytics store (ClickHouse) used
// to query swap/mint/burn events and to stage per-chunk working sets.
package analytics

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"tokenmetrics/internal/config"
	"tokenmetrics/internal/errs"
)

// Client is a thin, retrying wrapper over a ClickHouse connection,
// scoped to one chain pipeline ("solana" or "evm"), grounded on
// original_source/src/database/db.py's ClickHouseClient.
type Client struct {
	mu         sync.Mutex
	conn       driver.Conn
	dsn        string
	pipeline   string
	tempSchema string
}

// Options configures a new Client.
type Options struct {
	DSN        string
	Pipeline   string // "solana" or "evm", used only for log prefixes
	TempSchema string // dedicated database/schema for chunk staging
}

// New connects to ClickHouse and ensures the temp schema exists.
func New(ctx context.Context, opts Options) (*Client, error) {
	c := &Client{dsn: opts.DSN, pipeline: opts.Pipeline, tempSchema: opts.TempSchema}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	if err := c.ensureTempSchema(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	opt, err := clickhouse.ParseDSN(c.dsn)
	if err != nil {
		return &errs.ConfigError{Field: "analytics_dsn", Err: err}
	}
	conn, err := clickhouse.Open(opt)
	if err != nil {
		return &errs.AnalyticsError{Err: err}
	}
	if err := conn.Ping(ctx); err != nil {
		return &errs.AnalyticsError{Err: err}
	}
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()
	log.Printf("[analytics:%s] connected", c.pipeline)
	return nil
}

func (c *Client) ensureTempSchema(ctx context.Context) error {
	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", c.tempSchema)
	return c.command(ctx, query)
}

func (c *Client) conn0() driver.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func isSessionLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SESSION_IS_LOCKED") || strings.Contains(msg, "code: 373")
}

// command runs a DDL/command statement with the retry-once-on-session-lock
// contract described in spec §4.1.
func (c *Client) command(ctx context.Context, query string) error {
	cctx, cancel := context.WithTimeout(ctx, config.AnalyticsExecutionCap())
	defer cancel()

	err := c.conn0().Exec(clickhouse.Context(cctx, clickhouse.WithSettings(clickhouse.Settings{
		"session_id": uuid.NewString(),
	})), query)
	if err != nil && isSessionLocked(err) {
		log.Printf("[analytics:%s] session locked, reconnecting and retrying", c.pipeline)
		if rerr := c.connect(ctx); rerr != nil {
			return rerr
		}
		err = c.conn0().Exec(clickhouse.Context(cctx, clickhouse.WithSettings(clickhouse.Settings{
			"session_id": uuid.NewString(),
		})), query)
	}
	if err != nil {
		return &errs.AnalyticsError{Query: query, Err: err}
	}
	return nil
}

// QueryRows executes query and returns each result row as a column-name map,
// the equivalent of the original's execute_query_dict.
func (c *Client) QueryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, runErr := c.runQuery(ctx, query, args...)
	if runErr != nil {
		return nil, runErr
	}
	defer rows.Close()

	cols := rows.Columns()
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &errs.AnalyticsError{Query: query, Err: err}
		}
		m := make(map[string]any, len(cols))
		for i, name := range cols {
			m[name] = values[i]
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.AnalyticsError{Query: query, Err: err}
	}
	log.Printf("[analytics:%s] query completed: %d rows", c.pipeline, len(out))
	return out, nil
}

func (c *Client) runQuery(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	cctx, cancel := context.WithTimeout(ctx, config.AnalyticsExecutionCap())
	defer cancel()
	settingsCtx := clickhouse.Context(cctx, clickhouse.WithSettings(clickhouse.Settings{
		"session_id": uuid.NewString(),
	}))
	rows, err := c.conn0().Query(settingsCtx, query, args...)
	if err != nil && isSessionLocked(err) {
		log.Printf("[analytics:%s] session locked, reconnecting and retrying query", c.pipeline)
		if rerr := c.connect(ctx); rerr != nil {
			return nil, rerr
		}
		rows, err = c.conn0().Query(clickhouse.Context(cctx, clickhouse.WithSettings(clickhouse.Settings{
			"session_id": uuid.NewString(),
		})), query, args...)
	}
	if err != nil {
		return nil, &errs.AnalyticsError{Query: query, Err: err}
	}
	return rows, nil
}

// StageChunk stages rows for one chunk into <tempSchema>.<table>, dropping
// and recreating the table first. Columns are declared as String per
// spec §4.1 ("columns are declared as strings") and the table uses the
// Memory engine, grounded on db.py's manage_chunk_table.
func (c *Client) StageChunk(ctx context.Context, table string, column string, values []string) error {
	full := fmt.Sprintf("%s.%s", c.tempSchema, table)

	if err := c.command(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", full)); err != nil {
		return err
	}
	createQuery := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s String) ENGINE = Memory", full, column)
	if err := c.command(ctx, createQuery); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	batch, err := c.conn0().PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", full, column))
	if err != nil {
		return &errs.AnalyticsError{Query: "stage_chunk insert", Err: err}
	}
	for _, v := range values {
		if err := batch.Append(v); err != nil {
			return &errs.AnalyticsError{Query: "stage_chunk append", Err: err}
		}
	}
	if err := batch.Send(); err != nil {
		return &errs.AnalyticsError{Query: "stage_chunk send", Err: err}
	}
	log.Printf("[analytics:%s] staged %d rows into %s", c.pipeline, len(values), full)
	return nil
}

// DropChunkTable explicitly drops a chunk's staging relation, per spec §3
// ("Chunk staging relations... are explicitly dropped/recreated per chunk").
func (c *Client) DropChunkTable(ctx context.Context, table string) error {
	full := fmt.Sprintf("%s.%s", c.tempSchema, table)
	return c.command(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", full))
}

// TempTableRef returns the fully-qualified name of a chunk staging table.
func (c *Client) TempTableRef(table string) string {
	return fmt.Sprintf("%s.%s", c.tempSchema, table)
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

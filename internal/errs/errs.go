// Package errs defines the error taxonomy the orchestrator pattern-matches
// on to decide whether a failure degrades a row, aborts a chunk, or aborts
// the run.
package errs

import "fmt"

// ConfigError signals a missing or invalid required configuration value.
// Always fatal at startup.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AnalyticsError wraps a failure from the analytics store client (transport,
// query syntax, or a locked session that survived the single retry).
type AnalyticsError struct {
	Query string
	Err   error
}

func (e *AnalyticsError) Error() string {
	return fmt.Sprintf("analytics query failed: %v", e.Err)
}

func (e *AnalyticsError) Unwrap() error { return e.Err }

// NativePriceUnavailable is recoverable: tokens relying on NATIVE pricing
// degrade to price_usd = 0 rather than aborting anything.
type NativePriceUnavailable struct {
	Chain string
	Err   error
}

func (e *NativePriceUnavailable) Error() string {
	return fmt.Sprintf("native price unavailable for %s: %v", e.Chain, e.Err)
}

func (e *NativePriceUnavailable) Unwrap() error { return e.Err }

// RpcError is per-batch recoverable: the affected fields default to null
// and the run continues.
type RpcError struct {
	Chain string
	Err   error
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("rpc batch failed on %s: %v", e.Chain, e.Err)
}

func (e *RpcError) Unwrap() error { return e.Err }

// SinkError is batch-level: it fails the current upsert batch and the
// orchestrator aborts the run so the caller can retry idempotently.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink upsert failed: %v", e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// DataShapeError marks unprocessable row data (non-positive raw amounts,
// missing required decimals, unknown reference kind). It is logged, never
// propagated; the consolidated price query raises it for a deepest-pool
// reference that is neither native nor stable and skips only that
// token's liquidity, keeping the rest of its row.
type DataShapeError struct {
	Reason string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("data shape: %s", e.Reason)
}

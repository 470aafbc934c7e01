// Package statusapi exposes the operational surface a batch job like this
// one needs for whatever watches it: a liveness probe and a snapshot of
// the most recent run's price-method coverage. Grounded on the teacher's
// internal/api/server.go health/status handlers, trimmed to the two
// endpoints this job actually needs.
package statusapi

import (
	"sync"
	"time"

	"tokenmetrics/internal/models"
)

// Metrics is a mutex-guarded snapshot of the most recent run, read by the
// /metrics endpoint and written by the worker at the end of Run (a second
// time, carrying the error, when the final upsert fails).
type Metrics struct {
	mu            sync.Mutex
	chain         string
	tokensWritten int
	methodCounts  map[models.PriceMethod]int
	lastRunAt     time.Time
	lastErr       string
}

// NewMetrics returns an empty Metrics snapshot.
func NewMetrics() *Metrics { return &Metrics{} }

// Record stores the outcome of one run. runErr may be nil.
func (m *Metrics) Record(chain string, tokensWritten int, methodCounts map[models.PriceMethod]int, runErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chain = chain
	m.tokensWritten = tokensWritten
	m.methodCounts = methodCounts
	m.lastRunAt = time.Now()
	if runErr != nil {
		m.lastErr = runErr.Error()
	} else {
		m.lastErr = ""
	}
}

// Snapshot returns a JSON-ready copy of the current metrics.
func (m *Metrics) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int, len(m.methodCounts))
	for method, n := range m.methodCounts {
		counts[string(method)] = n
	}

	resp := map[string]any{
		"chain":               m.chain,
		"tokens_written":      m.tokensWritten,
		"price_method_counts": counts,
		"last_run_at":         m.lastRunAt.UTC().Format(time.RFC3339),
	}
	if m.lastErr != "" {
		resp["last_error"] = m.lastErr
	}
	return resp
}

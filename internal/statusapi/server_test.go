package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tokenmetrics/internal/models"
)

func TestHealthzReportsOK(t *testing.T) {
	s := New(":0", NewMetrics())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status=ok, got %v", body)
	}
}

func TestMetricsReflectsLastRecordedRun(t *testing.T) {
	metrics := NewMetrics()
	metrics.Record("ethereum", 42, map[models.PriceMethod]int{
		models.MethodStableVWAP5m: 10,
		models.MethodNativeLast:   5,
	}, nil)
	s := New(":0", metrics)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["chain"] != "ethereum" {
		t.Fatalf("expected chain=ethereum, got %v", body["chain"])
	}
	if body["tokens_written"].(float64) != 42 {
		t.Fatalf("expected tokens_written=42, got %v", body["tokens_written"])
	}
	counts, ok := body["price_method_counts"].(map[string]any)
	if !ok {
		t.Fatalf("expected price_method_counts map, got %T", body["price_method_counts"])
	}
	if counts["STABLE_VWAP_5M"].(float64) != 10 {
		t.Fatalf("expected STABLE_VWAP_5M=10, got %v", counts["STABLE_VWAP_5M"])
	}
}

func TestMetricsSurfacesLastError(t *testing.T) {
	metrics := NewMetrics()
	metrics.Record("solana", 0, nil, errTest("analytics outage"))
	snap := metrics.Snapshot()
	if snap["last_error"] != "analytics outage" {
		t.Fatalf("expected last_error to surface, got %v", snap["last_error"])
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

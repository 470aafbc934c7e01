package sink

import (
	"context"
	"os"
	"testing"
	"time"

	"tokenmetrics/internal/models"
)

// newTestSink connects to a real Postgres instance named by TEST_DATABASE_URL.
// Skipped like the teacher's Flow-mainnet integration tests when no such
// instance is configured or tests run with -short.
func newTestSink(t *testing.T) *Sink {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping sink integration test")
	}
	s, err := New(context.Background(), dsn)
	if err != nil {
		t.Skipf("cannot connect to test Postgres: %v", err)
	}
	return s
}

// TestUpsertPreservesDecimalsAndFirstTxDate is scenario D: a later run that
// can't resolve decimals or first_tx_date must not clobber values a prior
// run already wrote (spec §4.2 invariants 5-6).
func TestUpsertPreservesDecimalsAndFirstTxDate(t *testing.T) {
	s := newTestSink(t)
	defer s.Close()
	ctx := context.Background()

	dec := models.Uint8Ptr(9)
	firstSeen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	token := "0xcoalescetest"
	chain := "ethereum"

	if err := s.UpsertBatch(ctx, []models.TokenRecord{{
		TokenID:     token,
		Chain:       chain,
		Decimals:    dec,
		PriceUSD:    1.5,
		FirstTxDate: &firstSeen,
		ViewSource:  "test",
	}}, "test"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Second run resolves neither decimals nor first_tx_date.
	if err := s.UpsertBatch(ctx, []models.TokenRecord{{
		TokenID:    token,
		Chain:      chain,
		Decimals:   nil,
		PriceUSD:   2.0,
		ViewSource: "test",
	}}, "test"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	row := s.db.QueryRow(ctx, `SELECT decimals, price_usd, first_tx_date FROM unverified_tokens WHERE contract_address=$1 AND chain=$2`, token, chain)
	var gotDecimals *int
	var gotPrice float64
	var gotFirstTx *time.Time
	if err := row.Scan(&gotDecimals, &gotPrice, &gotFirstTx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if gotDecimals == nil || *gotDecimals != 9 {
		t.Fatalf("expected decimals to be preserved as 9, got %v", gotDecimals)
	}
	if gotPrice != 2.0 {
		t.Fatalf("expected price to be overwritten to 2.0, got %v", gotPrice)
	}
	if gotFirstTx == nil || !gotFirstTx.Equal(firstSeen) {
		t.Fatalf("expected first_tx_date to be preserved, got %v", gotFirstTx)
	}
}

// TestUpsertBatchEmptyIsANoop checks that upserting no rows returns nil
// without opening a transaction.
func TestUpsertBatchEmptyIsANoop(t *testing.T) {
	s := newTestSink(t)
	defer s.Close()
	if err := s.UpsertBatch(context.Background(), nil, "test"); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
}

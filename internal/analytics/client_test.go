package analytics

import (
	"context"
	"fmt"
	"os"
	"testing"
)

func TestIsSessionLocked(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"session locked message", fmt.Errorf("SESSION_IS_LOCKED: another query holds it"), true},
		{"code 373", fmt.Errorf("clickhouse: code: 373, message: session in use"), true},
		{"unrelated error", fmt.Errorf("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isSessionLocked(tc.err); got != tc.want {
				t.Fatalf("isSessionLocked(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestTempTableRef(t *testing.T) {
	c := &Client{tempSchema: "tokenmetrics_processing"}
	got := c.TempTableRef("chunk_tokens_0")
	want := "tokenmetrics_processing.chunk_tokens_0"
	if got != want {
		t.Fatalf("TempTableRef = %q, want %q", got, want)
	}
}

// newTestClient connects to a real ClickHouse instance named by
// TEST_CLICKHOUSE_DSN, skipped like the teacher's mainnet integration tests
// when no such instance is configured or tests run with -short.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_CLICKHOUSE_DSN")
	if dsn == "" {
		t.Skip("TEST_CLICKHOUSE_DSN not set, skipping analytics integration test")
	}
	c, err := New(context.Background(), Options{DSN: dsn, Pipeline: "test", TempSchema: "tokenmetrics_test"})
	if err != nil {
		t.Skipf("cannot connect to test ClickHouse: %v", err)
	}
	return c
}

func TestStageChunkAndQueryRoundTrip(t *testing.T) {
	c := newTestClient(t)
	defer c.Close()
	ctx := context.Background()

	table := "chunk_tokens_test"
	if err := c.StageChunk(ctx, table, "mint", []string{"0xaaa", "0xbbb"}); err != nil {
		t.Fatalf("StageChunk: %v", err)
	}
	defer c.DropChunkTable(ctx, table)

	rows, err := c.QueryRows(ctx, fmt.Sprintf("SELECT mint FROM %s ORDER BY mint", c.TempTableRef(table)))
	if err != nil {
		t.Fatalf("QueryRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 staged rows, got %d", len(rows))
	}
	if rows[0]["mint"] != "0xaaa" || rows[1]["mint"] != "0xbbb" {
		t.Fatalf("unexpected staged rows: %v", rows)
	}
}

// Package decimals implements C7: resolving each staged token's decimal
// count from the event table (EVM) or RPC (Solana-style), per spec §4.7.
package decimals

import (
	"context"
	"fmt"

	"tokenmetrics/internal/models"
)

// AnalyticsClient is the subset of *analytics.Client decimals needs.
type AnalyticsClient interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// FromEvents reads decimals carried on the transfer-event table using
// argMax(token_decimals, block_time) per token, EVM only, per spec §4.7.
func FromEvents(ctx context.Context, client AnalyticsClient, chain, tempTable string) (map[string]models.Decimals, error) {
	query := fmt.Sprintf(`
		SELECT token_address AS token_id, argMax(token_decimals, block_time) AS decimals
		FROM transfer_events
		WHERE chain = '%[2]s' AND token_address IN (SELECT mint FROM %[1]s)
		GROUP BY token_id`, tempTable, chain)

	rows, err := client.QueryRows(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.Decimals, len(rows))
	for _, row := range rows {
		id, ok := row["token_id"].(string)
		if !ok || id == "" {
			continue
		}
		d, ok := toUint8(row["decimals"])
		if !ok {
			continue
		}
		out[id] = models.Uint8Ptr(d)
	}
	return out, nil
}

func toUint8(v any) (uint8, bool) {
	switch n := v.(type) {
	case uint8:
		return n, true
	case int8:
		if n < 0 {
			return 0, false
		}
		return uint8(n), true
	case int16:
		if n < 0 || n > 255 {
			return 0, false
		}
		return uint8(n), true
	case int32:
		if n < 0 || n > 255 {
			return 0, false
		}
		return uint8(n), true
	case int64:
		if n < 0 || n > 255 {
			return 0, false
		}
		return uint8(n), true
	case uint32:
		if n > 255 {
			return 0, false
		}
		return uint8(n), true
	case uint64:
		if n > 255 {
			return 0, false
		}
		return uint8(n), true
	default:
		return 0, false
	}
}

// Merge combines event-sourced and RPC-sourced decimals per token via
// COALESCE(from_events, from_rpc), per spec §4.7 and §4.9.
func Merge(fromEvents, fromRPC map[string]models.Decimals) map[string]models.Decimals {
	out := make(map[string]models.Decimals, len(fromEvents)+len(fromRPC))
	for id, d := range fromRPC {
		out[id] = d
	}
	for id, d := range fromEvents {
		if d != nil {
			out[id] = d
		}
	}
	return out
}

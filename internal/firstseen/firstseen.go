// Package firstseen implements C6: resolving the earliest observation
// time per token in a staged chunk, per spec §4.6.
package firstseen

import (
	"context"
	"fmt"
	"time"
)

// AnalyticsClient is the subset of *analytics.Client firstseen needs.
type AnalyticsClient interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Resolve returns, for every token staged in tempTable, the minimum
// block_time across the transfer-event table (EVM) or mint table
// (Solana-style) unioned with the swap-event table, per spec §4.6. The
// map is keyed by lowercased token id for EVM, verbatim for Solana-style;
// callers should normalize their own lookups the same way the chunk does.
func Resolve(ctx context.Context, client AnalyticsClient, chain, tempTable string, isSolana bool) (map[string]time.Time, error) {
	var query string
	if isSolana {
		query = fmt.Sprintf(`
			SELECT mint AS token_id, min(block_time) AS first_seen FROM (
				SELECT mint, block_time FROM mints
				WHERE mint IN (SELECT mint FROM %[1]s)
				UNION ALL
				SELECT if(base_coin IN (SELECT mint FROM %[1]s), base_coin, quote_coin) AS mint, block_time
				FROM swap_events
				WHERE chain = '%[2]s'
					AND (base_coin IN (SELECT mint FROM %[1]s) OR quote_coin IN (SELECT mint FROM %[1]s))
			)
			GROUP BY token_id`, tempTable, chain)
	} else {
		query = fmt.Sprintf(`
			SELECT token_id, min(block_time) AS first_seen FROM (
				SELECT token_address AS token_id, block_time FROM transfer_events
				WHERE chain = '%[2]s' AND token_address IN (SELECT mint FROM %[1]s)
				UNION ALL
				SELECT if(base_coin IN (SELECT mint FROM %[1]s), base_coin, quote_coin) AS token_id, block_time
				FROM swap_events
				WHERE chain = '%[2]s'
					AND (base_coin IN (SELECT mint FROM %[1]s) OR quote_coin IN (SELECT mint FROM %[1]s))
			)
			GROUP BY token_id`, tempTable, chain)
	}

	rows, err := client.QueryRows(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		id, ok := row["token_id"].(string)
		if !ok || id == "" {
			continue
		}
		ts, ok := row["first_seen"].(time.Time)
		if !ok {
			continue
		}
		out[id] = ts
	}
	return out, nil
}

// Merge combines the per-table resolution with the consolidated price
// query's first-swap time (spec §4.6: "the resolver combines these into a
// single first_tx_date per token"), keeping the earlier of the two when
// both are present.
func Merge(fromTables map[string]time.Time, fromPriceQuery map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(fromTables)+len(fromPriceQuery))
	for k, v := range fromTables {
		out[k] = v
	}
	for k, v := range fromPriceQuery {
		if existing, ok := out[k]; !ok || v.Before(existing) {
			out[k] = v
		}
	}
	return out
}

package pricing

import (
	"context"
	"fmt"
	"log"
	"time"

	"tokenmetrics/internal/errs"
	"tokenmetrics/internal/models"
)

// AnalyticsClient is the subset of *analytics.Client the pricing engine
// needs.
type AnalyticsClient interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// QuoteAddresses is the allowlist of direct-DEX sources and the
// native/stable address sets needed to build the consolidated query.
type QuoteAddresses struct {
	Chain         string
	AllowedVenues []string
	QuoteConfig   models.ChainQuoteConfig
}

// tokenAggregate is one consolidated-query output row: per-kind VWAP/last/
// trade-count metrics plus the deepest-pool snapshot and first-swap time,
// per spec §4.8.
type tokenAggregate struct {
	TokenID             string
	Native              KindMetrics
	Stable              KindMetrics
	LiquidityRefKind    models.ReferenceKind // NATIVE or STABLE; determines whether native_usd_price applies
	LiquidityNormalized float64              // reference_balance_raw / 10^reference_decimals * LiquidityFactor(chain), pre native-price multiply
	LatestSource        string
	LatestBase          string
	LatestQuote         string
	FirstSwapTime       time.Time
}

// venueFilter renders the allowlist of direct-DEX sources into a SQL IN
// clause, per spec §4.8 ("restricted ... to an allowlist of direct DEX
// sources — aggregator/routing venues are excluded").
func venueFilter(venues []string) string {
	if len(venues) == 0 {
		return "1=1"
	}
	quoted := make([]string, len(venues))
	for i, v := range venues {
		quoted[i] = fmt.Sprintf("'%s'", v)
	}
	list := quoted[0]
	for _, q := range quoted[1:] {
		list += ", " + q
	}
	return fmt.Sprintf("source IN (%s)", list)
}

// stableDecimalsCase renders a multiIf that maps each configured
// stablecoin address to its own decimals, since stablecoins on the same
// chain are not guaranteed to share a decimals value.
func stableDecimalsCase(stablecoins map[string]uint8) string {
	if len(stablecoins) == 0 {
		return "0"
	}
	parts := make([]string, 0, len(stablecoins)*2)
	for addr, dec := range stablecoins {
		parts = append(parts, fmt.Sprintf("reference_coin = '%s', %d", addr, dec))
	}
	list := parts[0]
	for _, p := range parts[1:] {
		list += ", " + p
	}
	return fmt.Sprintf("multiIf(%s, 0)", list)
}

// fetchAggregates issues the single consolidated aggregation query for
// the staged chunk, unifying swaps so the token is always on one side and
// the reference (native or stable) on the other, regardless of which side
// it was on in the raw event, per spec §4.8's "Unification" step.
// nativeUSDPrice is read once by the caller (0 if unavailable) and used to
// put the deepest-pool selection on a common USD footing: raw reference
// balance alone is not comparable across a high-decimal NATIVE pool and a
// low-decimal STABLE pool.
//
// Grounded line-for-line on original_source/src/solana/processors/
// liquidity_analyzer.py's _get_comprehensive_swap_data CTE
// (unified_swaps -> token_vwap -> final multiIf cascade), generalized to
// the EVM swap_events shape.
func fetchAggregates(ctx context.Context, client AnalyticsClient, qa QuoteAddresses, tempTable string, nativeUSDPrice float64) ([]tokenAggregate, error) {
	nativeAddr := qa.QuoteConfig.NativeAddress
	stableAddrs := make([]string, 0, len(qa.QuoteConfig.Stablecoins))
	for addr := range qa.QuoteConfig.Stablecoins {
		stableAddrs = append(stableAddrs, addr)
	}
	stableList := "''"
	if len(stableAddrs) > 0 {
		stableList = "'" + stableAddrs[0] + "'"
		for _, a := range stableAddrs[1:] {
			stableList += ", '" + a + "'"
		}
	}
	decimalsCase := stableDecimalsCase(qa.QuoteConfig.Stablecoins)

	query := fmt.Sprintf(`
		WITH unified_swaps AS (
			SELECT
				if(base_coin IN (SELECT mint FROM %[1]s), base_coin, quote_coin) AS token_id,
				if(base_coin IN (SELECT mint FROM %[1]s), quote_coin, base_coin) AS reference_coin,
				if(base_coin IN (SELECT mint FROM %[1]s), quote_coin_amount, base_coin_amount) AS reference_amount_raw,
				if(base_coin IN (SELECT mint FROM %[1]s), base_coin_amount, quote_coin_amount) AS token_amount_raw,
				if(base_coin IN (SELECT mint FROM %[1]s), quote_pool_balance_after, base_pool_balance_after) AS reference_balance_raw,
				source, base_coin, quote_coin, base_pool_balance_after, quote_pool_balance_after, block_time,
				multiIf(reference_coin = '%[3]s', 'NATIVE', reference_coin IN (%[4]s), 'STABLE', 'OTHER') AS ref_kind
			FROM swap_events
			WHERE chain = '%[2]s'
				AND %[5]s
				AND base_coin_amount > 0 AND quote_coin_amount > 0
				AND (base_coin IN (SELECT mint FROM %[1]s) OR quote_coin IN (SELECT mint FROM %[1]s))
				AND ref_kind != 'OTHER'
		),
		swaps_with_proxy AS (
			SELECT *,
				multiIf(ref_kind = 'NATIVE', %[7]d, ref_kind = 'STABLE', %[6]s, 0) AS ref_decimals,
				if(ref_kind = 'NATIVE',
					reference_balance_raw / pow(10, multiIf(ref_kind = 'NATIVE', %[7]d, ref_kind = 'STABLE', %[6]s, 0)) * %[8]f,
					reference_balance_raw / pow(10, multiIf(ref_kind = 'NATIVE', %[7]d, ref_kind = 'STABLE', %[6]s, 0))
				) AS usd_proxy
			FROM unified_swaps
		)
		SELECT
			token_id,
			sumIf(reference_amount_raw, ref_kind = 'NATIVE' AND block_time >= now() - INTERVAL 5 MINUTE) AS native_num_5m,
			sumIf(token_amount_raw, ref_kind = 'NATIVE' AND block_time >= now() - INTERVAL 5 MINUTE) AS native_den_5m,
			sumIf(reference_amount_raw, ref_kind = 'NATIVE' AND block_time >= now() - INTERVAL 1 HOUR) AS native_num_1h,
			sumIf(token_amount_raw, ref_kind = 'NATIVE' AND block_time >= now() - INTERVAL 1 HOUR) AS native_den_1h,
			sumIf(reference_amount_raw, ref_kind = 'NATIVE' AND block_time >= now() - INTERVAL 24 HOUR) AS native_num_24h,
			sumIf(token_amount_raw, ref_kind = 'NATIVE' AND block_time >= now() - INTERVAL 24 HOUR) AS native_den_24h,
			countIf(ref_kind = 'NATIVE' AND block_time >= now() - INTERVAL 5 MINUTE) AS native_trades_5m,
			countIf(ref_kind = 'NATIVE' AND block_time >= now() - INTERVAL 1 HOUR) AS native_trades_1h,
			countIf(ref_kind = 'NATIVE' AND block_time >= now() - INTERVAL 24 HOUR) AS native_trades_24h,
			argMaxIf(reference_amount_raw / token_amount_raw, block_time, ref_kind = 'NATIVE') AS native_last,
			sumIf(reference_amount_raw, ref_kind = 'STABLE' AND block_time >= now() - INTERVAL 5 MINUTE) AS stable_num_5m,
			sumIf(token_amount_raw, ref_kind = 'STABLE' AND block_time >= now() - INTERVAL 5 MINUTE) AS stable_den_5m,
			sumIf(reference_amount_raw, ref_kind = 'STABLE' AND block_time >= now() - INTERVAL 1 HOUR) AS stable_num_1h,
			sumIf(token_amount_raw, ref_kind = 'STABLE' AND block_time >= now() - INTERVAL 1 HOUR) AS stable_den_1h,
			sumIf(reference_amount_raw, ref_kind = 'STABLE' AND block_time >= now() - INTERVAL 24 HOUR) AS stable_num_24h,
			sumIf(token_amount_raw, ref_kind = 'STABLE' AND block_time >= now() - INTERVAL 24 HOUR) AS stable_den_24h,
			countIf(ref_kind = 'STABLE' AND block_time >= now() - INTERVAL 5 MINUTE) AS stable_trades_5m,
			countIf(ref_kind = 'STABLE' AND block_time >= now() - INTERVAL 1 HOUR) AS stable_trades_1h,
			countIf(ref_kind = 'STABLE' AND block_time >= now() - INTERVAL 24 HOUR) AS stable_trades_24h,
			argMaxIf(reference_amount_raw / token_amount_raw, block_time, ref_kind = 'STABLE') AS stable_last,
			argMax(source, usd_proxy) AS latest_source,
			argMax(base_coin, usd_proxy) AS latest_base_coin,
			argMax(quote_coin, usd_proxy) AS latest_quote_coin,
			argMax(reference_balance_raw, usd_proxy) AS max_reference_balance_raw,
			argMax(reference_coin, usd_proxy) AS max_reference_coin,
			min(block_time) AS first_swap_time
		FROM swaps_with_proxy
		GROUP BY token_id`,
		tempTable, qa.Chain, nativeAddr, stableList, venueFilter(qa.AllowedVenues),
		decimalsCase, int(qa.QuoteConfig.NativeDecimals), nativeUSDPrice)

	rows, err := client.QueryRows(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]tokenAggregate, 0, len(rows))
	for _, row := range rows {
		tokenID, _ := row["token_id"].(string)
		if tokenID == "" {
			continue
		}
		agg := tokenAggregate{
			TokenID: tokenID,
			Native: KindMetrics{
				VWAP5m:    safeDiv(asFloat(row["native_num_5m"]), asFloat(row["native_den_5m"])),
				VWAP1h:    safeDiv(asFloat(row["native_num_1h"]), asFloat(row["native_den_1h"])),
				VWAP24h:   safeDiv(asFloat(row["native_num_24h"]), asFloat(row["native_den_24h"])),
				Last:      asFloat(row["native_last"]),
				Trades5m:  asUint32(row["native_trades_5m"]),
				Trades1h:  asUint32(row["native_trades_1h"]),
				Trades24h: asUint32(row["native_trades_24h"]),
			},
			Stable: KindMetrics{
				VWAP5m:    safeDiv(asFloat(row["stable_num_5m"]), asFloat(row["stable_den_5m"])),
				VWAP1h:    safeDiv(asFloat(row["stable_num_1h"]), asFloat(row["stable_den_1h"])),
				VWAP24h:   safeDiv(asFloat(row["stable_num_24h"]), asFloat(row["stable_den_24h"])),
				Last:      asFloat(row["stable_last"]),
				Trades5m:  asUint32(row["stable_trades_5m"]),
				Trades1h:  asUint32(row["stable_trades_1h"]),
				Trades24h: asUint32(row["stable_trades_24h"]),
			},
			LatestSource: asString(row["latest_source"]),
			LatestBase:   asString(row["latest_base_coin"]),
			LatestQuote:  asString(row["latest_quote_coin"]),
		}

		maxRefBalance := asFloat(row["max_reference_balance_raw"])
		maxRefCoin := asString(row["max_reference_coin"])
		kind, dec := qa.QuoteConfig.ClassifyReference(maxRefCoin)
		if maxRefCoin != "" && kind == models.ReferenceOther {
			log.Print((&errs.DataShapeError{Reason: fmt.Sprintf("token %s: deepest pool reference %q is neither native nor stable, liquidity skipped", tokenID, maxRefCoin)}).Error())
		} else {
			agg.LiquidityRefKind = kind
			agg.LiquidityNormalized = (maxRefBalance / pow10(int(dec))) * LiquidityFactor(qa.Chain)
		}

		if ts, ok := row["first_swap_time"].(time.Time); ok {
			agg.FirstSwapTime = ts
		}
		out = append(out, agg)
	}
	return out, nil
}

func safeDiv(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return 0
	}
}

func asUint32(v any) uint32 {
	switch n := v.(type) {
	case uint32:
		return n
	case uint64:
		return uint32(n)
	case int64:
		if n < 0 {
			return 0
		}
		return uint32(n)
	case int:
		if n < 0 {
			return 0
		}
		return uint32(n)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

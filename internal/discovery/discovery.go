// Package discovery implements C5: emitting the working set of tokens for
// a run by trading activity, grounded on
// original_source/src/evm/processors/token_discovery.py and the Solana
// materialized-view variant.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tokenmetrics/internal/errs"
	"tokenmetrics/internal/models"
)

// AnalyticsClient is the subset of *analytics.Client discovery needs.
type AnalyticsClient interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Options parameterizes one discovery call, per spec §4.5.
type Options struct {
	Chain         string
	WindowStart   time.Time
	WindowEnd     time.Time
	MinSwaps      int
	QuoteConfig   models.ChainQuoteConfig
	SolanaViewDay int // >0 selects the materialized-view variant (sol_<N>_swaps_<D>_days)
}

func quoteAddressList(cfg models.ChainQuoteConfig) []string {
	addrs := make([]string, 0, len(cfg.Stablecoins)+1)
	if cfg.NativeAddress != "" {
		addrs = append(addrs, cfg.NativeAddress)
	}
	for addr := range cfg.Stablecoins {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

func quotedList(addrs []string) string {
	quoted := make([]string, len(addrs))
	for i, a := range addrs {
		quoted[i] = fmt.Sprintf("'%s'", strings.ReplaceAll(a, "'", "''"))
	}
	return strings.Join(quoted, ", ")
}

// DiscoverTokens emits the activity-qualified token identifiers for the
// window, per spec §4.5: restrict by chain and time window, keep swaps
// where exactly one side is a quote asset, exclude zero/empty addresses
// and quote assets themselves, count per candidate, keep count >=
// MinSwaps, order by count descending.
func (o Options) DiscoverTokens(ctx context.Context, client AnalyticsClient) ([]string, error) {
	quotes := quoteAddressList(o.QuoteConfig)
	if len(quotes) == 0 {
		return nil, &errs.ConfigError{Field: "quote_assets", Err: fmt.Errorf("chain %q has no configured quote assets", o.Chain)}
	}
	quoteList := quotedList(quotes)

	var query string
	if o.SolanaViewDay > 0 {
		query = fmt.Sprintf(`
			SELECT candidate, count() AS swap_count FROM (
				SELECT
					if(base_coin IN (%[1]s), quote_coin, base_coin) AS candidate
				FROM sol_%[2]d_swaps_%[3]d_days
				WHERE chain = '%[4]s'
					AND block_time >= '%[5]s' AND block_time < '%[6]s'
					AND (base_coin IN (%[1]s)) != (quote_coin IN (%[1]s))
					AND candidate NOT IN (%[1]s)
					AND candidate != ''
			)
			GROUP BY candidate
			HAVING swap_count >= %[7]d
			ORDER BY swap_count DESC`,
			quoteList, o.MinSwaps, o.SolanaViewDay, o.Chain,
			o.WindowStart.UTC().Format("2006-01-02 15:04:05"),
			o.WindowEnd.UTC().Format("2006-01-02 15:04:05"),
			o.MinSwaps)
	} else {
		query = fmt.Sprintf(`
			SELECT candidate, count() AS swap_count FROM (
				SELECT
					if(base_coin IN (%[1]s), quote_coin, base_coin) AS candidate
				FROM swap_events
				WHERE chain = '%[2]s'
					AND block_time >= '%[3]s' AND block_time < '%[4]s'
					AND (base_coin IN (%[1]s)) != (quote_coin IN (%[1]s))
					AND candidate NOT IN (%[1]s)
					AND candidate != ''
					AND candidate != '0x0000000000000000000000000000000000000000'
			)
			GROUP BY candidate
			HAVING swap_count >= %[5]d
			ORDER BY swap_count DESC`,
			quoteList, o.Chain,
			o.WindowStart.UTC().Format("2006-01-02 15:04:05"),
			o.WindowEnd.UTC().Format("2006-01-02 15:04:05"),
			o.MinSwaps)
	}

	rows, err := client.QueryRows(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	evm := isEVMChain(o.Chain)
	for _, row := range rows {
		addr, ok := row["candidate"].(string)
		if !ok || addr == "" {
			continue
		}
		if evm {
			addr = strings.ToLower(addr)
		}
		out = append(out, addr)
	}
	return out, nil
}

func isEVMChain(chain string) bool {
	switch chain {
	case "solana":
		return false
	default:
		return true
	}
}

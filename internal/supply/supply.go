// Package supply computes circulating supply for a chunk: for EVM the raw
// value comes straight off the ERC-20 totalSupply() RPC call; for
// Solana-style tokens it is minted minus burned, read from the analytics
// store, per spec §4.9 and the recovered fields noted in SPEC_FULL.md §5.
package supply

import (
	"context"
	"fmt"
	"math/big"

	"tokenmetrics/internal/models"
)

// AnalyticsClient is the subset of *analytics.Client supply needs.
type AnalyticsClient interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Result is one token's raw supply computation, carrying the
// Solana-style internal working fields from SPEC_FULL.md §5 so the
// burns > mints clamp (Scenario E) is auditable without re-querying.
type Result struct {
	RawSupply   models.RawSupply
	TotalMinted string
	TotalBurned string
	Burned      float64 // normalized burned amount, Solana-style only; ResolveSolana leaves it 0
}

// ResolveSolana sums mints and burns per staged mint, clamping negative
// net supply (burns > mints) to zero, per spec §8 Scenario E.
func ResolveSolana(ctx context.Context, client AnalyticsClient, tempTable string) (map[string]Result, error) {
	query := fmt.Sprintf(`
		SELECT
			m.mint AS mint,
			sum(m.amount) AS total_minted,
			coalesce(b.total_burned, 0) AS total_burned
		FROM (
			SELECT mint, amount FROM mints WHERE mint IN (SELECT mint FROM %[1]s)
		) m
		LEFT JOIN (
			SELECT mint, sum(amount) AS total_burned FROM burns
			WHERE mint IN (SELECT mint FROM %[1]s) GROUP BY mint
		) b ON b.mint = m.mint
		GROUP BY m.mint, b.total_burned`, tempTable)

	rows, err := client.QueryRows(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Result, len(rows))
	for _, row := range rows {
		mint, _ := row["mint"].(string)
		if mint == "" {
			continue
		}
		minted := asBigInt(row["total_minted"])
		burned := asBigInt(row["total_burned"])

		net := new(big.Int).Sub(minted, burned)
		clamped := net.Sign() < 0
		if clamped {
			net.SetInt64(0)
		}
		netStr := net.String()

		out[mint] = Result{
			RawSupply:   &netStr,
			TotalMinted: minted.String(),
			TotalBurned: burned.String(),
		}
	}
	return out, nil
}

func asBigInt(v any) *big.Int {
	n := new(big.Int)
	switch val := v.(type) {
	case string:
		n.SetString(val, 10)
	case int64:
		n.SetInt64(val)
	case uint64:
		n.SetUint64(val)
	}
	return n
}

// Normalize converts a RawSupply decimal string to a human-unit float64
// via big.Float division, avoiding float64 overflow when parsing very
// large raw totals directly. Unknown decimals or absent raw supply yields
// 0, per spec §3 invariant 3.
func Normalize(raw models.RawSupply, decimals models.Decimals) float64 {
	if raw == nil || decimals == nil {
		return 0
	}
	rawBig, ok := new(big.Float).SetString(*raw)
	if !ok {
		return 0
	}
	divisor := new(big.Float).SetInt(pow10Big(int(*decimals)))
	result := new(big.Float).Quo(rawBig, divisor)
	f, _ := result.Float64()
	if f < 0 {
		return 0
	}
	return f
}

func pow10Big(exp int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

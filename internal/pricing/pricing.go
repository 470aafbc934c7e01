package pricing

import (
	"context"
	"time"

	"tokenmetrics/internal/models"
)

// NativePriceReader is the subset of *oracle.Oracle the pricing engine
// needs.
type NativePriceReader interface {
	NativeUSDPrice(chain string) (float64, error)
}

// Result is the per-token output of the price & liquidity engine, before
// decimals are known (decimals are merged in by the orchestrator from C7,
// since the consolidated query has no opinion on them).
type Result struct {
	Quote         models.PriceQuote
	LiquidityUSD  float64
	FirstSwapTime time.Time
}

// Resolve runs the consolidated aggregation for the staged chunk and
// applies the cascade + liquidity conversion to every token, per spec
// §4.8. Native USD price is read once (cached by the oracle) and reused
// across all tokens priced against NATIVE.
func Resolve(ctx context.Context, client AnalyticsClient, oracle NativePriceReader, qa QuoteAddresses, tempTable string) (map[string]Result, error) {
	nativeUSD, nativeErr := oracle.NativeUSDPrice(qa.Chain)
	if nativeErr != nil {
		nativeUSD = 0
	}

	aggregates, err := fetchAggregates(ctx, client, qa, tempTable, nativeUSD)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Result, len(aggregates))
	for _, agg := range aggregates {
		method, rawPrice, kind := SelectMethod(agg.Native, agg.Stable)

		quote := models.PriceQuote{
			RawPrice:      rawPrice,
			Method:        method,
			ReferenceKind: kind,
		}
		switch kind {
		case models.ReferenceNative:
			quote.ReferenceToken = qa.QuoteConfig.NativeAddress
			quote.Trades5m, quote.Trades1h, quote.Trades24h = agg.Native.Trades5m, agg.Native.Trades1h, agg.Native.Trades24h
		case models.ReferenceStable:
			quote.Trades5m, quote.Trades1h, quote.Trades24h = agg.Stable.Trades5m, agg.Stable.Trades1h, agg.Stable.Trades24h
		}

		liquidityUSD := agg.LiquidityNormalized
		if agg.LiquidityRefKind == models.ReferenceNative {
			if nativeErr != nil {
				liquidityUSD = 0
			} else {
				liquidityUSD *= nativeUSD
			}
		}

		out[agg.TokenID] = Result{
			Quote:         quote,
			LiquidityUSD:  liquidityUSD,
			FirstSwapTime: agg.FirstSwapTime,
		}
	}
	return out, nil
}

// PriceUSD computes price_per_reference and price_usd for one token's
// quote, given its resolved decimals and chain quote config, per spec
// §4.8's normalization formulas. tDec=nil means "unknown, never guess" —
// price_usd is forced to 0.
func PriceUSD(quote models.PriceQuote, tDec models.Decimals, cfg models.ChainQuoteConfig, oracle NativePriceReader, chain string) (pricePerReference, priceUSD float64) {
	if !quote.Priced() || tDec == nil {
		return 0, 0
	}

	var rDec uint8
	var refUSD float64
	switch quote.ReferenceKind {
	case models.ReferenceNative:
		rDec = cfg.NativeDecimals
		price, err := oracle.NativeUSDPrice(chain)
		if err != nil {
			return 0, 0
		}
		refUSD = price
	case models.ReferenceStable:
		if d, ok := cfg.RepresentativeStableDecimals(); ok {
			rDec = d
		}
		refUSD = 1.0
	default:
		return 0, 0
	}

	return Normalize(quote.RawPrice, *tDec, rDec, true, refUSD)
}

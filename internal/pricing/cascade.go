// Package pricing implements C8: deepest-pool selection, the cascading
// VWAP/last-price rule, and USD normalization, grounded on
// original_source/src/solana/processors/liquidity_analyzer.py and its EVM
// analogue in original_source/src/evm/processors/price_calculator.py.
//
// This file holds the pure, SQL-free pieces (cascade selection and
// decimal normalization) so they can be unit tested directly against the
// scenarios in spec.md §8 without a live analytics connection.
package pricing

import "tokenmetrics/internal/models"

// KindMetrics is one reference kind's (NATIVE or STABLE) aggregated swap
// metrics for a token, as computed by the consolidated query.
type KindMetrics struct {
	VWAP5m    float64
	VWAP1h    float64
	VWAP24h   float64
	Last      float64
	Trades5m  uint32
	Trades1h  uint32
	Trades24h uint32
}

// DominantKind picks the reference kind with more 24h trades; ties favor
// STABLE, per spec §4.8.
func DominantKind(native, stable KindMetrics) models.ReferenceKind {
	if native.Trades24h > stable.Trades24h {
		return models.ReferenceNative
	}
	return models.ReferenceStable
}

// cascadeRule is one rank of the VWAP cascade table in spec §4.8.
type cascadeRule struct {
	satisfied func(m KindMetrics) bool
	price     func(m KindMetrics) float64
	native    models.PriceMethod
	stable    models.PriceMethod
}

var cascade = []cascadeRule{
	{
		satisfied: func(m KindMetrics) bool { return m.Trades5m >= 3 },
		price:     func(m KindMetrics) float64 { return m.VWAP5m },
		native:    models.MethodNativeVWAP5m,
		stable:    models.MethodStableVWAP5m,
	},
	{
		satisfied: func(m KindMetrics) bool { return m.Trades1h >= 5 },
		price:     func(m KindMetrics) float64 { return m.VWAP1h },
		native:    models.MethodNativeVWAP1h,
		stable:    models.MethodStableVWAP1h,
	},
	{
		satisfied: func(m KindMetrics) bool { return m.Trades24h >= 5 },
		price:     func(m KindMetrics) float64 { return m.VWAP24h },
		native:    models.MethodNativeVWAP24h,
		stable:    models.MethodStableVWAP24h,
	},
	{
		satisfied: func(m KindMetrics) bool { return m.Last > 0 },
		price:     func(m KindMetrics) float64 { return m.Last },
		native:    models.MethodNativeLast,
		stable:    models.MethodStableLast,
	},
}

func methodFor(kind models.ReferenceKind, rule cascadeRule) models.PriceMethod {
	if kind == models.ReferenceNative {
		return rule.native
	}
	return rule.stable
}

func metricsFor(kind models.ReferenceKind, native, stable KindMetrics) KindMetrics {
	if kind == models.ReferenceNative {
		return native
	}
	return stable
}

func otherKind(kind models.ReferenceKind) models.ReferenceKind {
	if kind == models.ReferenceNative {
		return models.ReferenceStable
	}
	return models.ReferenceNative
}

// SelectMethod runs the cascade in spec §4.8: it determines the dominant
// kind, picks the first satisfied rule on that kind, falls back to the
// other kind's last price if positive, and otherwise returns
// (MethodNone, 0, ReferenceOther).
func SelectMethod(native, stable KindMetrics) (models.PriceMethod, float64, models.ReferenceKind) {
	dominant := DominantKind(native, stable)
	dm := metricsFor(dominant, native, stable)

	for _, rule := range cascade {
		if rule.satisfied(dm) {
			return methodFor(dominant, rule), rule.price(dm), dominant
		}
	}

	other := otherKind(dominant)
	om := metricsFor(other, native, stable)
	if om.Last > 0 {
		return methodFor(other, cascade[len(cascade)-1]), om.Last, other
	}

	return models.MethodNone, 0, models.ReferenceOther
}

// Normalize converts a raw cascade price (denominated in reference-asset
// raw units per token raw unit) into price-per-reference and price-USD,
// per spec §4.8: price_per_reference = price_raw * 10^(t_dec - r_dec);
// price_usd = price_per_reference * r_usd. tDecKnown=false forces
// price_usd to 0 without guessing, per spec's normalization note.
func Normalize(rawPrice float64, tDec, rDec uint8, tDecKnown bool, refUSD float64) (pricePerReference, priceUSD float64) {
	if !tDecKnown {
		return 0, 0
	}
	pricePerReference = rawPrice * pow10(int(tDec)-int(rDec))
	priceUSD = pricePerReference * refUSD
	return pricePerReference, priceUSD
}

func pow10(exp int) float64 {
	result := 1.0
	if exp >= 0 {
		for i := 0; i < exp; i++ {
			result *= 10
		}
		return result
	}
	for i := 0; i < -exp; i++ {
		result /= 10
	}
	return result
}

// LiquidityFactor applies the chain-scoped convention chosen in DESIGN.md
// for the deepest-pool USD proxy: Solana-style doubles the single-side
// balance to approximate both sides of the pool; EVM uses the balance as
// read (the swap event already carries the reference side's own balance).
func LiquidityFactor(chain string) float64 {
	if chain == "solana" {
		return 2.0
	}
	return 1.0
}

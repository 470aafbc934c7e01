package pricing

import (
	"math"
	"testing"

	"tokenmetrics/internal/models"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// Scenario A — STABLE VWAP 5m, spec §8.
func TestScenarioASTableVWAP5m(t *testing.T) {
	stable := KindMetrics{VWAP5m: 0.002, Trades5m: 4}
	method, raw, kind := SelectMethod(KindMetrics{}, stable)
	if method != models.MethodStableVWAP5m {
		t.Fatalf("expected STABLE_VWAP_5M, got %s", method)
	}
	if kind != models.ReferenceStable {
		t.Fatalf("expected STABLE dominant kind, got %s", kind)
	}
	pricePerRef, priceUSD := Normalize(raw, 6, 6, true, 1.0)
	if !almostEqual(pricePerRef, 0.002) || !almostEqual(priceUSD, 0.002) {
		t.Fatalf("expected price 0.002, got pricePerRef=%v priceUSD=%v", pricePerRef, priceUSD)
	}
}

// Scenario B — NATIVE VWAP 24h, Solana, spec §8.
func TestScenarioBNativeVWAP24h(t *testing.T) {
	native := KindMetrics{VWAP24h: 0.01, Trades24h: 3}
	method, raw, kind := SelectMethod(native, KindMetrics{})
	if method != models.MethodNativeVWAP24h {
		t.Fatalf("expected NATIVE_VWAP_24H, got %s", method)
	}
	if kind != models.ReferenceNative {
		t.Fatalf("expected NATIVE dominant kind, got %s", kind)
	}
	pricePerRef, priceUSD := Normalize(raw, 9, 9, true, 190.0)
	if !almostEqual(pricePerRef, 0.01) {
		t.Fatalf("expected pricePerRef 0.01, got %v", pricePerRef)
	}
	if !almostEqual(priceUSD, 1.90) {
		t.Fatalf("expected priceUSD 1.90, got %v", priceUSD)
	}
}

// Boundary: trades_5m=2, trades_1h=5 -> VWAP_1H, not VWAP_5M.
func TestCascadeBoundaryPrefers1hOver5mWhenNotSatisfied(t *testing.T) {
	stable := KindMetrics{Trades5m: 2, Trades1h: 5, VWAP1h: 1.23}
	method, raw, _ := SelectMethod(KindMetrics{}, stable)
	if method != models.MethodStableVWAP1h {
		t.Fatalf("expected STABLE_VWAP_1H, got %s", method)
	}
	if !almostEqual(raw, 1.23) {
		t.Fatalf("expected raw price 1.23, got %v", raw)
	}
}

func TestCascadeFallsBackToLast(t *testing.T) {
	stable := KindMetrics{Last: 0.5}
	method, raw, _ := SelectMethod(KindMetrics{}, stable)
	if method != models.MethodStableLast {
		t.Fatalf("expected STABLE_LAST, got %s", method)
	}
	if !almostEqual(raw, 0.5) {
		t.Fatalf("expected 0.5, got %v", raw)
	}
}

func TestCascadeFallsBackToOtherKindLast(t *testing.T) {
	// Dominant kind (STABLE, ties favor it) has nothing; NATIVE has a
	// positive last price, which should be used as the fallback.
	native := KindMetrics{Last: 2.5}
	stable := KindMetrics{}
	method, raw, kind := SelectMethod(native, stable)
	if method != models.MethodNativeLast {
		t.Fatalf("expected fallback NATIVE_LAST, got %s", method)
	}
	if kind != models.ReferenceNative {
		t.Fatalf("expected fallback kind NATIVE, got %s", kind)
	}
	if !almostEqual(raw, 2.5) {
		t.Fatalf("expected 2.5, got %v", raw)
	}
}

func TestCascadeNoneWhenNothingQualifies(t *testing.T) {
	method, raw, kind := SelectMethod(KindMetrics{}, KindMetrics{})
	if method != models.MethodNone || raw != 0 || kind != models.ReferenceOther {
		t.Fatalf("expected NONE/0/OTHER, got %s %v %s", method, raw, kind)
	}
}

func TestDominantKindTiesFavorStable(t *testing.T) {
	if DominantKind(KindMetrics{Trades24h: 5}, KindMetrics{Trades24h: 5}) != models.ReferenceStable {
		t.Fatalf("expected ties to favor STABLE")
	}
	if DominantKind(KindMetrics{Trades24h: 12}, KindMetrics{Trades24h: 8}) != models.ReferenceNative {
		t.Fatalf("expected NATIVE to dominate on higher trade count")
	}
}

func TestNormalizeUnknownDecimalsYieldsZero(t *testing.T) {
	pricePerRef, priceUSD := Normalize(1.0, 0, 6, false, 1.0)
	if pricePerRef != 0 || priceUSD != 0 {
		t.Fatalf("expected zeroed price for unknown decimals, got %v %v", pricePerRef, priceUSD)
	}
}

func TestLiquidityFactor(t *testing.T) {
	if LiquidityFactor("solana") != 2.0 {
		t.Fatalf("expected solana factor 2.0")
	}
	if LiquidityFactor("ethereum") != 1.0 {
		t.Fatalf("expected evm factor 1.0")
	}
}

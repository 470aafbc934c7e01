package decimals

import (
	"testing"

	"tokenmetrics/internal/models"
)

func TestMergePrefersEvents(t *testing.T) {
	fromEvents := map[string]models.Decimals{
		"tok1": models.Uint8Ptr(18),
	}
	fromRPC := map[string]models.Decimals{
		"tok1": models.Uint8Ptr(6),
		"tok2": models.Uint8Ptr(9),
	}
	merged := Merge(fromEvents, fromRPC)
	if *merged["tok1"] != 18 {
		t.Fatalf("expected events decimals to win, got %d", *merged["tok1"])
	}
	if *merged["tok2"] != 9 {
		t.Fatalf("expected RPC decimals for tok2, got %d", *merged["tok2"])
	}
}

func TestMergeMissingBothLeavesTokenAbsent(t *testing.T) {
	merged := Merge(nil, nil)
	if _, ok := merged["tok1"]; ok {
		t.Fatalf("expected no entry for unresolved token")
	}
}

func TestToUint8RangeCheck(t *testing.T) {
	if _, ok := toUint8(int64(-1)); ok {
		t.Fatalf("expected negative value to be rejected")
	}
	if _, ok := toUint8(int64(256)); ok {
		t.Fatalf("expected out-of-range value to be rejected")
	}
	if v, ok := toUint8(int64(255)); !ok || v != 255 {
		t.Fatalf("expected 255 to be accepted, got %d ok=%v", v, ok)
	}
}

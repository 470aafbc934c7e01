package supply

import (
	"testing"

	"tokenmetrics/internal/models"
)

// Unknown decimals never yields a synthesized supply: Normalize returns 0.
func TestNormalizeUnknownDecimalsIsZero(t *testing.T) {
	raw := "123456789"
	if got := Normalize(&raw, nil); got != 0 {
		t.Fatalf("expected 0 for unknown decimals, got %v", got)
	}
}

func TestNormalizeAbsentRawSupplyIsZero(t *testing.T) {
	if got := Normalize(nil, models.Uint8Ptr(6)); got != 0 {
		t.Fatalf("expected 0 for absent raw supply, got %v", got)
	}
}

func TestNormalizeComputesHumanUnits(t *testing.T) {
	raw := "1500000000"
	got := Normalize(&raw, models.Uint8Ptr(6))
	if got != 1500 {
		t.Fatalf("expected 1500, got %v", got)
	}
}

func TestAsBigIntParsesStringsAndInts(t *testing.T) {
	if asBigInt("42").Int64() != 42 {
		t.Fatalf("expected 42 from string")
	}
	if asBigInt(int64(7)).Int64() != 7 {
		t.Fatalf("expected 7 from int64")
	}
	if asBigInt(nil).Int64() != 0 {
		t.Fatalf("expected 0 from nil")
	}
}

package firstseen

import (
	"testing"
	"time"
)

func TestMergeKeepsEarlier(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	fromTables := map[string]time.Time{"tok1": later, "tok2": early}
	fromPriceQuery := map[string]time.Time{"tok1": early, "tok3": later}

	merged := Merge(fromTables, fromPriceQuery)
	if !merged["tok1"].Equal(early) {
		t.Fatalf("expected tok1 to keep earlier time, got %v", merged["tok1"])
	}
	if !merged["tok2"].Equal(early) {
		t.Fatalf("expected tok2 unaffected, got %v", merged["tok2"])
	}
	if !merged["tok3"].Equal(later) {
		t.Fatalf("expected tok3 from price query, got %v", merged["tok3"])
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	merged := Merge(nil, nil)
	if len(merged) != 0 {
		t.Fatalf("expected empty merge result, got %v", merged)
	}
}

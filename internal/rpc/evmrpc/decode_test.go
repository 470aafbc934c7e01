package evmrpc

import "testing"

func TestDecodeUint8(t *testing.T) {
	d, ok := decodeUint8("0x0000000000000000000000000000000000000000000000000000000000000012")
	if !ok || d != 18 {
		t.Fatalf("expected decimals 18, got %d ok=%v", d, ok)
	}
	if _, ok := decodeUint8("0x"); ok {
		t.Fatalf("expected 0x to decode as unavailable")
	}
}

func TestDecodeUint256String(t *testing.T) {
	v, ok := decodeUint256String("0x00000000000000000000000000000000000000000000000000000005f5e100")
	if !ok || v != "100000000" {
		t.Fatalf("expected 100000000, got %q ok=%v", v, ok)
	}
}

func TestDecodeERC20StringFixed32(t *testing.T) {
	// "USDC" padded to 32 bytes
	hex := "0x5553444300000000000000000000000000000000000000000000000000000000"
	// truncate to 32 bytes (64 hex chars) + 0x prefix
	hex = hex[:2+64]
	s, ok := decodeERC20String(hex)
	if !ok || s != "USDC" {
		t.Fatalf("expected USDC, got %q ok=%v", s, ok)
	}
}

func TestDecodeERC20StringDynamic(t *testing.T) {
	// offset=32, length=3, data="ETH" padded to 32 bytes
	hexStr := "0x" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000003" +
		"4554480000000000000000000000000000000000000000000000000000000000"
	s, ok := decodeERC20String(hexStr)
	if !ok || s != "ETH" {
		t.Fatalf("expected ETH, got %q ok=%v", s, ok)
	}
}

func TestEnrichBatchSize(t *testing.T) {
	if got := EnrichBatchSize(); got < 10 || got > 100 {
		t.Fatalf("batch size out of bounds: %d", got)
	}
}

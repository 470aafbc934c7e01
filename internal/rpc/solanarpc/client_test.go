package solanarpc

import (
	"encoding/base64"
	"encoding/binary"
	"testing"
)

func buildMetadataAccount(name, symbol, uri string) []byte {
	buf := make([]byte, 65)
	appendField := func(s string, slot int) {
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(s)))
		buf = append(buf, lenBuf...)
		field := make([]byte, slot)
		copy(field, s)
		buf = append(buf, field...)
	}
	appendField(name, 32)
	appendField(symbol, 10)
	appendField(uri, 200)
	return buf
}

func TestParseMetadataAccount(t *testing.T) {
	raw := buildMetadataAccount("Wrapped SOL", "wSOL", "https://example.test/meta.json")
	encoded := base64.StdEncoding.EncodeToString(raw)
	result := &accountInfoResult{Value: &accountInfoValue{Data: []string{encoded}}}

	md := parseMetadataAccount(result)
	if md.Name == nil || *md.Name != "Wrapped SOL" {
		t.Fatalf("expected name Wrapped SOL, got %v", md.Name)
	}
	if md.Symbol == nil || *md.Symbol != "wSOL" {
		t.Fatalf("expected symbol wSOL, got %v", md.Symbol)
	}
	if md.URI == nil || *md.URI != "https://example.test/meta.json" {
		t.Fatalf("expected uri, got %v", md.URI)
	}
}

func TestParseMetadataAccountEmptyFieldsAreNil(t *testing.T) {
	raw := buildMetadataAccount("", "", "")
	encoded := base64.StdEncoding.EncodeToString(raw)
	result := &accountInfoResult{Value: &accountInfoValue{Data: []string{encoded}}}

	md := parseMetadataAccount(result)
	if md.Name != nil || md.Symbol != nil || md.URI != nil {
		t.Fatalf("expected all-nil metadata for empty fields, got %+v", md)
	}
}

func TestParseMetadataAccountTooShort(t *testing.T) {
	result := &accountInfoResult{Value: &accountInfoValue{Data: []string{base64.StdEncoding.EncodeToString([]byte{1, 2, 3})}}}
	md := parseMetadataAccount(result)
	if md.Name != nil || md.Symbol != nil || md.URI != nil {
		t.Fatalf("expected all-nil metadata for truncated account, got %+v", md)
	}
}

func TestDeriveMetadataPDADeterministic(t *testing.T) {
	c, err := New("solana", "https://example.test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mint := "So11111111111111111111111111111111111111112"
	pda1, err := c.DeriveMetadataPDA(mint)
	if err != nil {
		t.Fatalf("DeriveMetadataPDA: %v", err)
	}
	pda2, err := c.DeriveMetadataPDA(mint)
	if err != nil {
		t.Fatalf("DeriveMetadataPDA: %v", err)
	}
	if pda1 != pda2 {
		t.Fatalf("expected deterministic PDA, got %s vs %s", pda1, pda2)
	}
}

func TestDeriveMetadataPDARejectsInvalidMint(t *testing.T) {
	c, err := New("solana", "https://example.test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.DeriveMetadataPDA("not-a-base58-mint!!!"); err == nil {
		t.Fatalf("expected error for invalid mint address")
	}
}

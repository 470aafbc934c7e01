// Package models holds the domain types shared by every pipeline stage.
package models

import "time"

// TokenIdentity is the unique key of the output table. TokenID is
// lowercased hex for EVM and verbatim Base58 for Solana-style chains.
type TokenIdentity struct {
	TokenID string `json:"token_id"`
	Chain   string `json:"chain"`
}

// ReferenceKind classifies the asset on the other side of a swap.
type ReferenceKind string

const (
	ReferenceNative ReferenceKind = "NATIVE"
	ReferenceStable ReferenceKind = "STABLE"
	ReferenceOther  ReferenceKind = "OTHER"
)

// PriceMethod records which rule in the VWAP cascade produced a price.
type PriceMethod string

const (
	MethodNativeVWAP5m  PriceMethod = "NATIVE_VWAP_5M"
	MethodNativeVWAP1h  PriceMethod = "NATIVE_VWAP_1H"
	MethodNativeVWAP24h PriceMethod = "NATIVE_VWAP_24H"
	MethodNativeLast    PriceMethod = "NATIVE_LAST"
	MethodStableVWAP5m  PriceMethod = "STABLE_VWAP_5M"
	MethodStableVWAP1h  PriceMethod = "STABLE_VWAP_1H"
	MethodStableVWAP24h PriceMethod = "STABLE_VWAP_24H"
	MethodStableLast    PriceMethod = "STABLE_LAST"
	MethodNone          PriceMethod = "NONE"
)

// Decimals is an on-chain decimal count. Nil means "unknown, must not be
// synthesized" — never collapse to zero.
type Decimals = *uint8

// Metadata holds the optional descriptive fields resolved by C4.
type Metadata struct {
	Symbol *string
	Name   *string
	URI    *string
}

// RawSupply is total minted minus total burned (Solana-style) or the
// result of an ERC-20 totalSupply() call (EVM). Nil means unavailable.
// 256-bit values are represented as decimal strings end-to-end and only
// parsed into math/big values at the points that do arithmetic on them
// (internal/supply).
type RawSupply = *string

// PoolObservation is one venue's reserve snapshot at a point in time.
type PoolObservation struct {
	Venue           string
	BaseToken       string
	QuoteToken      string
	BaseBalanceRaw  float64
	QuoteBalanceRaw float64
	BlockTime       time.Time
}

// SwapObservation is one trade, with the post-swap pool balances on both
// sides, as read off the analytics store's swap_events table.
type SwapObservation struct {
	Venue                 string
	BaseToken             string
	QuoteToken            string
	BaseAmountRaw         float64
	QuoteAmountRaw        float64
	BasePoolBalanceAfter  float64
	QuotePoolBalanceAfter float64
	BlockTime             time.Time
}

// PriceQuote is the result of the VWAP cascade for one token.
type PriceQuote struct {
	RawPrice       float64
	Method         PriceMethod
	ReferenceKind  ReferenceKind
	ReferenceToken string
	Trades5m       uint32
	Trades1h       uint32
	Trades24h      uint32
}

// Priced reports whether the cascade actually selected a method.
func (q PriceQuote) Priced() bool {
	return q.Method != "" && q.Method != MethodNone
}

// TokenRecord is the output row upserted into unverified_tokens.
type TokenRecord struct {
	TokenID          string
	Chain            string
	Decimals         Decimals
	Symbol           *string
	Name             *string
	PriceUSD         float64
	MarketCapUSD     float64
	Supply           float64
	LargestLPPoolUSD float64
	FirstTxDate      *time.Time
	ViewSource       string
	UpdatedAt        time.Time
}

// Key returns the TokenIdentity for this record.
func (r TokenRecord) Key() TokenIdentity {
	return TokenIdentity{TokenID: r.TokenID, Chain: r.Chain}
}

// ChainQuoteConfig is the set of reference assets configured for a chain:
// the wrapped native asset and any stablecoins, each with its decimals.
type ChainQuoteConfig struct {
	Chain           string
	NativeAddress   string
	NativeDecimals  uint8
	Stablecoins     map[string]uint8 // address (normalized) -> decimals
	MetaplexProgram string           // Solana-style only
}

// IsStable reports whether addr (already normalized) is a configured
// stablecoin for this chain.
func (c ChainQuoteConfig) IsStable(addr string) (uint8, bool) {
	d, ok := c.Stablecoins[addr]
	return d, ok
}

// IsNative reports whether addr (already normalized) is this chain's
// wrapped native asset.
func (c ChainQuoteConfig) IsNative(addr string) bool {
	return addr == c.NativeAddress
}

// RepresentativeStableDecimals returns the decimals shared by this
// chain's configured stablecoins (typically 6, per spec §3 invariant 9).
// Used when the dominant reference kind is STABLE but the cascade result
// does not carry which specific stablecoin it came from, since the VWAP
// aggregation is computed per reference kind, not per reference address.
func (c ChainQuoteConfig) RepresentativeStableDecimals() (uint8, bool) {
	for _, d := range c.Stablecoins {
		return d, true
	}
	return 0, false
}

// ClassifyReference returns the ReferenceKind and decimals for addr, or
// ReferenceOther with decimals 0 if addr is neither native nor stable.
func (c ChainQuoteConfig) ClassifyReference(addr string) (ReferenceKind, uint8) {
	if c.IsNative(addr) {
		return ReferenceNative, c.NativeDecimals
	}
	if d, ok := c.IsStable(addr); ok {
		return ReferenceStable, d
	}
	return ReferenceOther, 0
}

// Uint8Ptr is a small convenience constructor used across the pipeline
// when turning a resolved decimals value into the Decimals optional type.
func Uint8Ptr(v uint8) *uint8 { return &v }

// StrPtr is the string-valued analogue of Uint8Ptr, used for Symbol/Name/URI.
func StrPtr(v string) *string { return &v }

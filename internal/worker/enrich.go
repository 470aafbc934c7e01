package worker

import (
	"context"
	"sync"

	"tokenmetrics/internal/config"
	"tokenmetrics/internal/models"
	"tokenmetrics/internal/rpc/evmrpc"
	"tokenmetrics/internal/rpc/solanarpc"
)

// EnrichedToken is one token's RPC-sourced fields: decimals, descriptive
// metadata, and (EVM only) raw supply. Solana-style supply comes from
// internal/supply instead, per spec §4.4.
type EnrichedToken struct {
	Decimals models.Decimals
	Symbol   *string
	Name     *string
	Supply   models.RawSupply
}

// Enricher is C4's product interface as C9 sees it: fetch the RPC
// product for a batch of tokens.
type Enricher interface {
	EnrichBatch(ctx context.Context, tokens []string) (map[string]EnrichedToken, error)
}

// evmEnricher adapts *evmrpc.Client, combining the 3-call metadata batch
// and the 1-call supply batch into one EnrichedToken map.
type evmEnricher struct{ client *evmrpc.Client }

// NewEVMEnricher wraps an EVM RPC client as an Enricher.
func NewEVMEnricher(client *evmrpc.Client) Enricher { return evmEnricher{client: client} }

func (e evmEnricher) EnrichBatch(ctx context.Context, tokens []string) (map[string]EnrichedToken, error) {
	metadata, err := e.client.GetTokenMetadataBatch(ctx, tokens)
	if err != nil {
		return nil, err
	}
	supply, err := e.client.GetTotalSupplyBatch(ctx, tokens)
	if err != nil {
		return nil, err
	}

	out := make(map[string]EnrichedToken, len(tokens))
	for _, t := range tokens {
		md := metadata[t]
		var rawSupply models.RawSupply
		if s, ok := supply[t]; ok && s != "" {
			v := s
			rawSupply = &v
		}
		out[t] = EnrichedToken{Decimals: md.Decimals, Symbol: md.Symbol, Name: md.Name, Supply: rawSupply}
	}
	return out, nil
}

// solanaEnricher adapts *solanarpc.Client. Metadata is batched natively;
// decimals requires one getAccountInfo call per mint, so this fans those
// calls out over a bounded worker pool per spec §5.
type solanaEnricher struct{ client *solanarpc.Client }

// NewSolanaEnricher wraps a Solana RPC client as an Enricher.
func NewSolanaEnricher(client *solanarpc.Client) Enricher { return solanaEnricher{client: client} }

func (e solanaEnricher) EnrichBatch(ctx context.Context, tokens []string) (map[string]EnrichedToken, error) {
	metadata, err := e.client.ResolveMetadataBatch(ctx, tokens)
	if err != nil {
		return nil, err
	}

	out := make(map[string]EnrichedToken, len(tokens))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, config.RPCWorkerPoolSize())
	var firstErr error

	for _, t := range tokens {
		wg.Add(1)
		sem <- struct{}{}
		go func(mint string) {
			defer wg.Done()
			defer func() { <-sem }()

			dec, derr := e.client.GetDecimals(ctx, mint)

			mu.Lock()
			defer mu.Unlock()
			if derr != nil {
				if firstErr == nil {
					firstErr = derr
				}
				return
			}
			md := metadata[mint]
			out[mint] = EnrichedToken{Decimals: dec, Symbol: md.Symbol, Name: md.Name}
		}(t)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

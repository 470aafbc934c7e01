package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tokenmetrics/internal/config"
	"tokenmetrics/internal/decimals"
	"tokenmetrics/internal/discovery"
	"tokenmetrics/internal/errs"
	"tokenmetrics/internal/firstseen"
	"tokenmetrics/internal/models"
	"tokenmetrics/internal/pricing"
	"tokenmetrics/internal/statusapi"
	"tokenmetrics/internal/supply"
)

// analyticsClient is the subset of *analytics.Client the orchestrator
// itself drives directly (staging/dropping chunk tables); the per-column
// query functions in discovery/firstseen/decimals/pricing/supply each
// narrow this further to QueryRows alone.
type analyticsClient interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	StageChunk(ctx context.Context, table string, column string, values []string) error
	DropChunkTable(ctx context.Context, table string) error
	TempTableRef(table string) string
}

// sinkWriter is the subset of *sink.Sink the orchestrator needs for the
// final upsert.
type sinkWriter interface {
	UpsertBatch(ctx context.Context, rows []models.TokenRecord, viewSource string) error
}

// Engine wires C1-C8 together behind the C9 pipeline described in spec
// §4.9, generalized from the teacher's AsyncWorker lease lifecycle.
type Engine struct {
	Analytics     analyticsClient
	Sink          sinkWriter
	Oracle        pricing.NativePriceReader
	Enricher      Enricher
	IsSolana      bool
	QuoteConfig   models.ChainQuoteConfig
	AllowedVenues []string
	RunSpec       config.RunSpec
	Metrics       *statusapi.Metrics // optional; nil disables reporting
}

// Run executes the full pipeline: discovery -> chunking -> per-chunk
// staging/queries/enrichment/merge -> final dedupe -> upsert.
func (e *Engine) Run(ctx context.Context) error {
	chunkSize := e.RunSpec.ChunkSize
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize(e.RunSpec.Chain)
	}

	tokens, err := discovery.Options{
		Chain:       e.RunSpec.Chain,
		WindowStart: e.RunSpec.WindowStart,
		WindowEnd:   e.RunSpec.WindowEnd,
		MinSwaps:    e.RunSpec.MinSwaps,
		QuoteConfig: e.QuoteConfig,
	}.DiscoverTokens(ctx, e.Analytics)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		log.Printf("[worker] no tokens cleared the activity threshold, nothing to do")
		return nil
	}
	log.Printf("[worker] discovered %d tokens for chain=%s", len(tokens), e.RunSpec.Chain)

	seen := make(map[models.TokenIdentity]models.TokenRecord)
	coverage := make(map[models.PriceMethod]int)

	for start := 0; start < len(tokens); start += chunkSize {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		idx := start / chunkSize
		chunkTokens := tokens[start:end]

		records, methodCounts, err := e.processChunk(ctx, chunkTokens, idx)
		if err != nil {
			log.Printf("[worker] chunk %d aborted (%d tokens): %v", idx, len(chunkTokens), err)
			continue
		}
		for _, r := range records {
			seen[r.Key()] = r
		}
		for m, n := range methodCounts {
			coverage[m] += n
		}
		log.Printf("[worker] chunk %d complete: %d records", idx, len(records))
	}

	final := make([]models.TokenRecord, 0, len(seen))
	for _, r := range seen {
		final = append(final, r)
	}

	log.Printf("[worker] run produced %d tokens, price-method coverage=%v", len(final), coverage)
	if e.Metrics != nil {
		e.Metrics.Record(e.RunSpec.Chain, len(final), coverage, nil)
	}

	if !e.RunSpec.Write {
		log.Printf("[worker] write=false, skipping upsert")
		return nil
	}
	if len(final) == 0 {
		return nil
	}
	if err := e.Sink.UpsertBatch(ctx, final, e.RunSpec.ViewSource); err != nil {
		if e.Metrics != nil {
			e.Metrics.Record(e.RunSpec.Chain, len(final), coverage, err)
		}
		return err
	}
	log.Printf("[worker] run: %s, upserted %d tokens", ChunkAppended, len(final))
	return nil
}

// processChunk runs one chunk through staged -> queried -> enriched ->
// merged, per the state machine in chunkstate.go. A non-nil error means
// the chunk failed before `merged`; the caller skips it and proceeds to
// the next chunk.
func (e *Engine) processChunk(ctx context.Context, chunkTokens []string, idx int) ([]models.TokenRecord, map[models.PriceMethod]int, error) {
	tempTable := fmt.Sprintf("chunk_tokens_%d", idx)

	if err := e.Analytics.StageChunk(ctx, tempTable, "mint", chunkTokens); err != nil {
		return nil, nil, err
	}
	log.Printf("[worker] chunk %d: %s", idx, ChunkStaged)
	defer func() {
		if derr := e.Analytics.DropChunkTable(context.Background(), tempTable); derr != nil {
			log.Printf("[worker] chunk %d: failed to drop staging table: %v", idx, derr)
		}
	}()

	tempRef := e.Analytics.TempTableRef(tempTable)

	var (
		firstSeenByTable map[string]time.Time
		eventsDecimals   map[string]models.Decimals
		priceResults     map[string]pricing.Result
		enrichResults    map[string]EnrichedToken
		solanaSupply     map[string]supply.Result

		errFirstSeen, errDecimals, errPricing, errEnrich, errSupply error
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		firstSeenByTable, errFirstSeen = firstseen.Resolve(ctx, e.Analytics, e.RunSpec.Chain, tempRef, e.IsSolana)
	}()

	if !e.IsSolana {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eventsDecimals, errDecimals = decimals.FromEvents(ctx, e.Analytics, e.RunSpec.Chain, tempRef)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		qa := pricing.QuoteAddresses{Chain: e.RunSpec.Chain, AllowedVenues: e.AllowedVenues, QuoteConfig: e.QuoteConfig}
		priceResults, errPricing = pricing.Resolve(ctx, e.Analytics, e.Oracle, qa, tempRef)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		enrichResults, errEnrich = e.Enricher.EnrichBatch(ctx, chunkTokens)
	}()

	if e.IsSolana {
		wg.Add(1)
		go func() {
			defer wg.Done()
			solanaSupply, errSupply = supply.ResolveSolana(ctx, e.Analytics, tempRef)
		}()
	}

	wg.Wait()
	log.Printf("[worker] chunk %d: %s", idx, ChunkQueried)

	var rpcErr *errs.RpcError
	if errors.As(errEnrich, &rpcErr) {
		log.Printf("[worker] chunk %d: rpc enrichment failed, continuing with null RPC fields: %v", idx, errEnrich)
		enrichResults, errEnrich = nil, nil
	}

	for _, err := range []error{errFirstSeen, errDecimals, errPricing, errEnrich, errSupply} {
		if err != nil {
			return nil, nil, err
		}
	}

	log.Printf("[worker] chunk %d: %s", idx, ChunkEnriched)

	rpcDecimals := make(map[string]models.Decimals, len(enrichResults))
	for id, v := range enrichResults {
		rpcDecimals[id] = v.Decimals
	}
	mergedDecimals := decimals.Merge(eventsDecimals, rpcDecimals)

	fromPriceQuery := make(map[string]time.Time, len(priceResults))
	for id, res := range priceResults {
		if !res.FirstSwapTime.IsZero() {
			fromPriceQuery[id] = res.FirstSwapTime
		}
	}
	mergedFirstSeen := firstseen.Merge(firstSeenByTable, fromPriceQuery)

	records := make([]models.TokenRecord, 0, len(chunkTokens))
	methodCounts := make(map[models.PriceMethod]int, len(chunkTokens))

	for _, t := range chunkTokens {
		dec := mergedDecimals[t]
		enriched := enrichResults[t]

		var rawSupply models.RawSupply
		if e.IsSolana {
			if s, ok := solanaSupply[t]; ok {
				rawSupply = s.RawSupply
			}
		} else {
			rawSupply = enriched.Supply
		}
		normalizedSupply := supply.Normalize(rawSupply, dec)

		priceRes := priceResults[t]
		pricePerRef, priceUSD := pricing.PriceUSD(priceRes.Quote, dec, e.QuoteConfig, e.Oracle, e.RunSpec.Chain)
		_ = pricePerRef

		marketCap := priceUSD * normalizedSupply

		var firstTxDate *time.Time
		if ts, ok := mergedFirstSeen[t]; ok {
			firstTxDate = &ts
		}

		records = append(records, models.TokenRecord{
			TokenID:          t,
			Chain:            e.RunSpec.Chain,
			Decimals:         dec,
			Symbol:           enriched.Symbol,
			Name:             enriched.Name,
			PriceUSD:         priceUSD,
			MarketCapUSD:     marketCap,
			Supply:           normalizedSupply,
			LargestLPPoolUSD: priceRes.LiquidityUSD,
			FirstTxDate:      firstTxDate,
			ViewSource:       e.RunSpec.ViewSource,
		})
		methodCounts[priceRes.Quote.Method]++
	}

	log.Printf("[worker] chunk %d: %s", idx, ChunkMerged)

	return records, methodCounts, nil
}

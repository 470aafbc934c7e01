package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tokenmetrics/internal/analytics"
	"tokenmetrics/internal/config"
	"tokenmetrics/internal/oracle"
	"tokenmetrics/internal/rpc/evmrpc"
	"tokenmetrics/internal/rpc/solanarpc"
	"tokenmetrics/internal/sink"
	"tokenmetrics/internal/statusapi"
	"tokenmetrics/internal/worker"
)

// BuildCommit is set at build time via -ldflags.
var BuildCommit = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded (continuing on process env):", err)
	}

	chain := getEnvDefault("CHAIN", "")
	if chain == "" {
		log.Fatalf("CHAIN is required (e.g. solana, ethereum, bnb, matic, base)")
	}

	chainsFilePath := getEnvDefault("CHAINS_FILE", "chains.yaml")
	apiPort := getEnvDefault("PORT", "8080")

	log.Println("Initializing Token Metrics Engine...")
	log.Printf("Chain: %s", chain)
	log.Printf("Chains file: %s", chainsFilePath)
	log.Printf("Build: %s", BuildCommit)

	chainsFile, err := config.LoadChains(chainsFilePath)
	if err != nil {
		log.Fatalf("Failed to load chains file: %v", err)
	}
	entry, ok := chainsFile.Chains[chain]
	if !ok {
		log.Fatalf("Chain %q is not present in %s", chain, chainsFilePath)
	}
	quoteConfig, err := chainsFile.QuoteConfig(chain)
	if err != nil {
		log.Fatalf("Failed to build quote config for %s: %v", chain, err)
	}

	runSpec := config.RunSpec{
		Chain:       chain,
		WindowStart: getEnvTime("WINDOW_START", time.Now().Add(-24*time.Hour)),
		WindowEnd:   getEnvTime("WINDOW_END", time.Now()),
		MinSwaps:    getEnvInt("MIN_SWAPS", 1),
		ViewSource:  getEnvDefault("VIEW_SOURCE", "tokenmetrics"),
		ChunkSize:   getEnvInt("CHUNK_SIZE", config.DefaultChunkSize(chain)),
		Write:       getEnvDefault("WRITE", "true") == "true",
	}

	var allowedVenues []string
	if raw := os.Getenv("ALLOWED_VENUES"); raw != "" {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				allowedVenues = append(allowedVenues, v)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Dependencies
	analyticsClient, err := analytics.New(ctx, analytics.Options{
		DSN:        entry.AnalyticsDSN,
		Pipeline:   chain,
		TempSchema: config.TempSchemaPrefix() + "_processing",
	})
	if err != nil {
		log.Fatalf("Failed to connect to analytics store: %v", err)
	}

	sinkClient, err := sink.New(ctx, entry.SinkDSN)
	if err != nil {
		log.Fatalf("Failed to connect to sink database: %v", err)
	}

	redisStore := oracle.NewRedisStore(
		getEnvDefault("REDIS_ADDR", "localhost:6379"),
		os.Getenv("REDIS_PASSWORD"),
		getEnvInt("REDIS_DB", 0),
	)
	defer redisStore.Close()
	priceOracle := oracle.New(redisStore)

	isSolana := chain == "solana"

	var enricher worker.Enricher
	if isSolana {
		solanaClient, err := solanarpc.New(chain, entry.RPCURL, entry.MetaplexProgram)
		if err != nil {
			log.Fatalf("Failed to build Solana RPC client: %v", err)
		}
		enricher = worker.NewSolanaEnricher(solanaClient)
	} else {
		evmClient := evmrpc.New(chain, entry.RPCURL)
		enricher = worker.NewEVMEnricher(evmClient)
	}

	metrics := statusapi.NewMetrics()
	statusServer := statusapi.New(":"+apiPort, metrics)

	go func() {
		log.Printf("Starting status server on :%s", apiPort)
		if err := statusServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Status server failed: %v", err)
		}
	}()

	engine := &worker.Engine{
		Analytics:     analyticsClient,
		Sink:          sinkClient,
		Oracle:        priceOracle,
		Enricher:      enricher,
		IsSolana:      isSolana,
		QuoteConfig:   quoteConfig,
		AllowedVenues: allowedVenues,
		RunSpec:       runSpec,
		Metrics:       metrics,
	}

	// Stop a long-running query phase cleanly on SIGINT/SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, cancelling run...")
		cancel()
	}()

	runErr := engine.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Status server shutdown error: %v", err)
	}

	if runErr != nil {
		log.Fatalf("Run failed: %v", runErr)
	}
	log.Println("Run complete.")
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvTime(key string, def time.Time) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		log.Printf("Failed to parse %s=%q as RFC3339, using default: %v", key, v, err)
		return def
	}
	return t
}

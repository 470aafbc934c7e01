// Package config loads the run specification and per-chain quote-asset
// configuration. CLI flag parsing and .env loading are out of scope for
// this package (owned by main.go at the repository root); this package only shapes the
// data once it has been read.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tokenmetrics/internal/errs"
	"tokenmetrics/internal/models"
)

// RunSpec parameterizes one run of the engine, per spec §6 "Run specification".
type RunSpec struct {
	Chain       string    `yaml:"chain"`
	WindowStart time.Time `yaml:"window_start"`
	WindowEnd   time.Time `yaml:"window_end"`
	MinSwaps    int       `yaml:"min_swaps"`
	ViewSource  string    `yaml:"view_source"`
	ChunkSize   int       `yaml:"chunk_size"`
	Write       bool      `yaml:"write"`
}

// DefaultChunkSize mirrors spec §6: 200k tokens/chunk for EVM, 1M for
// Solana-style (the candidate token sets don't get anywhere near these
// sizes in practice, but the spec fixes the default as policy, not as an
// observed ceiling).
func DefaultChunkSize(chain string) int {
	if chain == "solana" {
		return 1_000_000
	}
	return 200_000
}

// ChainsFile is the on-disk shape of the YAML file describing every
// chain's quote assets, matching teacher config.go's Load(path) pattern.
type ChainsFile struct {
	Chains map[string]ChainEntry `yaml:"chains"`
}

type ChainEntry struct {
	NativeAddress   string            `yaml:"native_address"`
	NativeDecimals  uint8             `yaml:"native_decimals"`
	Stablecoins     map[string]uint8  `yaml:"stablecoins"` // address -> decimals
	MetaplexProgram string            `yaml:"metaplex_program,omitempty"`
	AnalyticsDSN    string            `yaml:"analytics_dsn"`
	SinkDSN         string            `yaml:"sink_dsn"`
	RPCURL          string            `yaml:"rpc_url"`
	NativePriceKey  string            `yaml:"native_price_key"`
	Extra           map[string]string `yaml:"extra,omitempty"`
}

// LoadChains reads the chain-configuration YAML file.
func LoadChains(path string) (*ChainsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigError{Field: "chains_file", Err: err}
	}
	var cf ChainsFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, &errs.ConfigError{Field: "chains_file", Err: err}
	}
	return &cf, nil
}

// QuoteConfig builds the models.ChainQuoteConfig for a named chain.
func (cf *ChainsFile) QuoteConfig(chain string) (models.ChainQuoteConfig, error) {
	entry, ok := cf.Chains[chain]
	if !ok {
		return models.ChainQuoteConfig{}, &errs.ConfigError{Field: "chain", Err: errUnknownChain(chain)}
	}
	return models.ChainQuoteConfig{
		Chain:           chain,
		NativeAddress:   entry.NativeAddress,
		NativeDecimals:  entry.NativeDecimals,
		Stablecoins:     entry.Stablecoins,
		MetaplexProgram: entry.MetaplexProgram,
	}, nil
}

type errUnknownChain string

func (e errUnknownChain) Error() string { return "unknown chain: " + string(e) }

// getEnvDefault mirrors the teacher's repository.getEnvDefault helper.
func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvIntDefault parses an int env var, falling back to def on error or absence.
func getEnvIntDefault(key string, def int) int {
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

// RPCWorkerPoolSize is the bounded worker-pool width for C4, spec §5 default 16.
func RPCWorkerPoolSize() int {
	return getEnvIntDefault("RPC_WORKER_POOL_SIZE", 16)
}

// RPCBatchMax is the max JSON-RPC items per batch, spec §4.4 default 100.
func RPCBatchMax() int {
	return getEnvIntDefault("RPC_BATCH_MAX", 100)
}

// SinkBatchMax is the max rows per upsert batch, spec §4.2 default 1000.
func SinkBatchMax() int {
	return getEnvIntDefault("SINK_BATCH_MAX", 1000)
}

// AnalyticsExecutionCap is the per-query execution-time cap, spec §4.1 (15 minutes).
func AnalyticsExecutionCap() time.Duration {
	return time.Duration(getEnvIntDefault("ANALYTICS_EXEC_CAP_SECONDS", 900)) * time.Second
}

// RPCRequestTimeout is the per-request cap, spec §5 (10 seconds).
func RPCRequestTimeout() time.Duration {
	return time.Duration(getEnvIntDefault("RPC_REQUEST_TIMEOUT_SECONDS", 10)) * time.Second
}

// TempSchemaPrefix names the temporary namespace used for chunk staging,
// spec §6: "a temporary schema <prefix>_processing".
func TempSchemaPrefix() string {
	return getEnvDefault("TEMP_SCHEMA_PREFIX", "tokenmetrics")
}

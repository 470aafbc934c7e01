// Package solanarpc is the Solana-style half of the RPC enricher (C4):
// Metaplex metadata PDA derivation plus batched getAccountInfo, and
// decimals lookup via jsonParsed account info. Grounded on
// original_source/src/processors/metadata_fetcher.py.
package solanarpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"

	"tokenmetrics/internal/config"
	"tokenmetrics/internal/errs"
)

// MetaplexProgramID is the well-known Token Metadata program, per spec §4.4.
const MetaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// Client issues batched getAccountInfo JSON-RPC requests against a
// Solana-style RPC endpoint.
type Client struct {
	chain           string
	rpcURL          string
	http            *http.Client
	metaplexProgram solana.PublicKey
}

// New constructs a Client. metaplexProgram defaults to MetaplexProgramID
// when empty.
func New(chain, rpcURL, metaplexProgram string) (*Client, error) {
	if metaplexProgram == "" {
		metaplexProgram = MetaplexProgramID
	}
	programKey, err := solana.PublicKeyFromBase58(metaplexProgram)
	if err != nil {
		return nil, &errs.ConfigError{Field: "metaplex_program", Err: err}
	}
	return &Client{
		chain:           chain,
		rpcURL:          rpcURL,
		http:            &http.Client{Timeout: config.RPCRequestTimeout()},
		metaplexProgram: programKey,
	}, nil
}

// Metadata is the decoded (symbol, name, uri) triple for one mint.
type Metadata struct {
	Symbol *string
	Name   *string
	URI    *string
}

// DeriveMetadataPDA derives the Metaplex metadata PDA for mint using seeds
// ("metadata", metaplex_program_id, mint), delegating the bump-seed search
// and on-curve rejection to solana-go's FindProgramAddress — a genuine
// ed25519 curve check, unlike the always-false stub in original_source
// (see DESIGN.md's Open Question resolution).
func (c *Client) DeriveMetadataPDA(mint string) (solana.PublicKey, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid mint address %q: %w", mint, err)
	}
	seeds := [][]byte{
		[]byte("metadata"),
		c.metaplexProgram.Bytes(),
		mintKey.Bytes(),
	}
	pda, _, err := solana.FindProgramAddress(seeds, c.metaplexProgram)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive metadata PDA for %q: %w", mint, err)
	}
	return pda, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type accountInfoValue struct {
	Data []string `json:"data"` // [base64, "base64"]
}

type accountInfoResult struct {
	Value *accountInfoValue `json:"value"`
}

type rpcResponse struct {
	ID     int                `json:"id"`
	Result *accountInfoResult `json:"result"`
	Error  json.RawMessage    `json:"error,omitempty"`
}

// ResolveMetadataBatch derives PDAs and fetches account data for up to
// config.RPCBatchMax() mints per round-trip, per spec §4.4.
func (c *Client) ResolveMetadataBatch(ctx context.Context, mints []string) (map[string]Metadata, error) {
	out := make(map[string]Metadata, len(mints))
	if len(mints) == 0 {
		return out, nil
	}

	type pending struct {
		mint string
		pda  solana.PublicKey
	}
	var accounts []pending
	for _, m := range mints {
		pda, err := c.DeriveMetadataPDA(m)
		if err != nil {
			out[m] = Metadata{}
			continue
		}
		accounts = append(accounts, pending{mint: m, pda: pda})
	}
	if len(accounts) == 0 {
		return out, nil
	}

	max := config.RPCBatchMax()
	for start := 0; start < len(accounts); start += max {
		end := start + max
		if end > len(accounts) {
			end = len(accounts)
		}
		batch := accounts[start:end]

		reqs := make([]rpcRequest, len(batch))
		for i, a := range batch {
			reqs[i] = rpcRequest{
				JSONRPC: "2.0",
				ID:      i + 1,
				Method:  "getAccountInfo",
				Params:  []any{a.pda.String(), map[string]string{"encoding": "base64"}},
			}
		}

		body, err := json.Marshal(reqs)
		if err != nil {
			return nil, &errs.RpcError{Chain: c.chain, Err: err}
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
		if err != nil {
			return nil, &errs.RpcError{Chain: c.chain, Err: err}
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, &errs.RpcError{Chain: c.chain, Err: err}
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &errs.RpcError{Chain: c.chain, Err: err}
		}
		if resp.StatusCode >= 400 {
			return nil, &errs.RpcError{Chain: c.chain, Err: fmt.Errorf("http %d: %s", resp.StatusCode, respBody)}
		}

		var rpcResps []rpcResponse
		if err := json.Unmarshal(respBody, &rpcResps); err != nil {
			return nil, &errs.RpcError{Chain: c.chain, Err: err}
		}
		byID := make(map[int]rpcResponse, len(rpcResps))
		for _, r := range rpcResps {
			byID[r.ID] = r
		}

		for i, a := range batch {
			r, ok := byID[i+1]
			if !ok || len(r.Error) > 0 || r.Result == nil {
				out[a.mint] = Metadata{}
				continue
			}
			out[a.mint] = parseMetadataAccount(r.Result)
		}
	}
	return out, nil
}

// parseMetadataAccount decodes the Metaplex fixed-layout account data:
// 65-byte header (key + update_authority + mint), then name (4+32),
// symbol (4+10), uri (4+200), each a little-endian length-prefixed string
// in a fixed slot, per spec §4.4.
func parseMetadataAccount(result *accountInfoResult) Metadata {
	if result.Value == nil || len(result.Value.Data) == 0 {
		return Metadata{}
	}
	data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
	if err != nil || len(data) < 65 {
		return Metadata{}
	}

	offset := 65
	name, offset := readFixedString(data, offset, 32)
	symbol, offset := readFixedString(data, offset, 10)
	uri, _ := readFixedString(data, offset, 200)

	return Metadata{
		Symbol: nonEmpty(symbol),
		Name:   nonEmpty(name),
		URI:    nonEmpty(uri),
	}
}

// readFixedString reads a 4-byte little-endian length prefix followed by
// a fixed-size data slot, returning the decoded string and the offset of
// the next field.
func readFixedString(data []byte, offset, slotSize int) (string, int) {
	next := offset + 4 + slotSize
	if offset+4 > len(data) {
		return "", next
	}
	length := binary.LittleEndian.Uint32(data[offset : offset+4])
	start := offset + 4
	end := start + int(length)
	if length == 0 || end > len(data) || end > start+slotSize {
		return "", next
	}
	s := strings.TrimRight(string(data[start:end]), "\x00")
	return strings.TrimSpace(s), next
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// jsonParsedAccountInfo is the shape of a getAccountInfo response with
// encoding=jsonParsed, used for Solana-style decimals lookup.
type jsonParsedAccountInfo struct {
	Result struct {
		Value *struct {
			Data struct {
				Parsed struct {
					Info struct {
						Decimals *uint8 `json:"decimals"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	} `json:"result"`
	Error json.RawMessage `json:"error,omitempty"`
}

// GetDecimals fetches decimals for mint via jsonParsed getAccountInfo, per
// spec §4.4. An absent account yields (nil, nil) — decimals is never
// synthesized.
func (c *Client) GetDecimals(ctx context.Context, mint string) (*uint8, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "getAccountInfo",
		"params":  []any{mint, map[string]string{"encoding": "jsonParsed"}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &errs.RpcError{Chain: c.chain, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, &errs.RpcError{Chain: c.chain, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &errs.RpcError{Chain: c.chain, Err: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.RpcError{Chain: c.chain, Err: err}
	}

	var parsed jsonParsedAccountInfo
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &errs.RpcError{Chain: c.chain, Err: err}
	}
	if len(parsed.Error) > 0 || parsed.Result.Value == nil {
		return nil, nil
	}
	return parsed.Result.Value.Data.Parsed.Info.Decimals, nil
}

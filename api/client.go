package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"

	"github.com/anchorageoss/neo-ledgerclient/neo"
)

// HTTPClient interface for dependency injection
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements the NEO JSON-RPC client
type Client struct {
	Endpoint   string
	HTTPClient HTTPClient

	nextID atomic.Uint64
}

// NewClient creates a new JSON-RPC client for endpoint
func NewClient(endpoint string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{Endpoint: endpoint, HTTPClient: httpClient}
}

// call performs a single JSON-RPC request and decodes its result into out
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	reqJSON, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned non-OK status: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(bodyBytes, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	if len(rpcResp.Result) == 0 {
		return fmt.Errorf("%s: empty result", method)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// GetVersion returns the node version and protocol settings
func (c *Client) GetVersion(ctx context.Context) (*Version, error) {
	var v Version
	if err := c.call(ctx, "getversion", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetNetworkMagic returns the magic of the network the node runs on
func (c *Client) GetNetworkMagic(ctx context.Context) (uint32, error) {
	v, err := c.GetVersion(ctx)
	if err != nil {
		return 0, err
	}
	return v.Protocol.Network, nil
}

// GetBlockCount returns the number of blocks in the node's chain
func (c *Client) GetBlockCount(ctx context.Context) (uint32, error) {
	var n uint32
	if err := c.call(ctx, "getblockcount", nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ValidUntilBlock returns the highest ValidUntilBlock the node accepts
// for a transaction created now
func (c *Client) ValidUntilBlock(ctx context.Context) (uint32, error) {
	v, err := c.GetVersion(ctx)
	if err != nil {
		return 0, err
	}
	height, err := c.GetBlockCount(ctx)
	if err != nil {
		return 0, err
	}
	return height + v.Protocol.MaxValidUntilBlockIncrement - 1, nil
}

// SendRawTransaction relays a fully signed transaction
func (c *Client) SendRawTransaction(ctx context.Context, tx *transaction.Transaction) (*RelayResult, error) {
	raw, err := neo.Serialize(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	var res RelayResult
	if err := c.call(ctx, "sendrawtransaction", []any{base64.StdEncoding.EncodeToString(raw)}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

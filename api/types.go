// Package api provides a client for the NEO N3 node JSON-RPC API.
//
// The client is used to fill in transaction fields that depend on chain
// state:
//   - the network magic a node is running with
//   - the current block height, for a default ValidUntilBlock
//   - relaying a signed transaction
//
// # Usage
//
//	client := api.NewClient("http://seed1.neo.org:10332", http.DefaultClient)
//	version, err := client.GetVersion(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(version.Protocol.Network)
package api

import (
	"encoding/json"
	"fmt"
)

// rpcRequest is a JSON-RPC 2.0 request
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// rpcResponse is a JSON-RPC 2.0 response
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error object returned by the node
type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Protocol holds the protocol settings reported by getversion
type Protocol struct {
	Network                     uint32 `json:"network"`
	AddressVersion              byte   `json:"addressversion"`
	MaxValidUntilBlockIncrement uint32 `json:"maxvaliduntilblockincrement"`
	MaxTransactionsPerBlock     uint32 `json:"maxtransactionsperblock"`
	MSPerBlock                  uint32 `json:"msperblock"`
}

// Version is the getversion result
type Version struct {
	TCPPort   uint16   `json:"tcpport"`
	Nonce     uint32   `json:"nonce"`
	UserAgent string   `json:"useragent"`
	Protocol  Protocol `json:"protocol"`
}

// RelayResult is the sendrawtransaction result
type RelayResult struct {
	Hash string `json:"hash"`
}

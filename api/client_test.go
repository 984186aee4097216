package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"

	"github.com/anchorageoss/neo-ledgerclient/neo"
)

// newNode starts a fake node answering each method with a canned result
func newNode(t *testing.T, results map[string]string) (*httptest.Server, *[]rpcRequest) {
	t.Helper()
	var seen []rpcRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)
		result, ok := results[req.Method]
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

const versionResult = `{"tcpport":10333,"nonce":1,"useragent":"/Neo:3.6.0/","protocol":{"network":860833102,"addressversion":53,"maxvaliduntilblockincrement":5760,"maxtransactionsperblock":512,"msperblock":15000}}`

func TestGetVersion(t *testing.T) {
	require := require.New(t)
	srv, seen := newNode(t, map[string]string{"getversion": versionResult})
	client := NewClient(srv.URL, srv.Client())

	v, err := client.GetVersion(context.Background())
	require.NoError(err)
	require.Equal(uint32(neo.MainNetMagic), v.Protocol.Network)
	require.Equal(address.NEO3Prefix, v.Protocol.AddressVersion)
	require.Equal("/Neo:3.6.0/", v.UserAgent)

	magic, err := client.GetNetworkMagic(context.Background())
	require.NoError(err)
	require.Equal(uint32(860833102), magic)

	require.Len(*seen, 2)
	require.Equal("2.0", (*seen)[0].JSONRPC)
	require.Equal("getversion", (*seen)[0].Method)
	require.NotNil((*seen)[0].Params)
	require.NotEqual((*seen)[0].ID, (*seen)[1].ID)
}

func TestValidUntilBlock(t *testing.T) {
	srv, _ := newNode(t, map[string]string{
		"getversion":    versionResult,
		"getblockcount": "1000",
	})
	client := NewClient(srv.URL, srv.Client())

	height, err := client.GetBlockCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(1000), height)

	vub, err := client.ValidUntilBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(1000+5760-1), vub)
}

func TestSendRawTransaction(t *testing.T) {
	require := require.New(t)
	srv, seen := newNode(t, map[string]string{
		"sendrawtransaction": `{"hash":"0x01"}`,
	})
	account, err := util.Uint160DecodeStringLE("d7678dd97c000be3f33e9362e673101bac4ca654")
	require.NoError(err)
	tx := &transaction.Transaction{
		Nonce:   1,
		Signers: []transaction.Signer{{Account: account, Scopes: transaction.CalledByEntry}},
		Script:  []byte{0x01},
		Scripts: []transaction.Witness{{InvocationScript: []byte{0x0c}, VerificationScript: []byte{0x55}}},
	}

	res, err := NewClient(srv.URL, srv.Client()).SendRawTransaction(context.Background(), tx)
	require.NoError(err)
	require.Equal("0x01", res.Hash)

	raw, err := neo.Serialize(tx)
	require.NoError(err)
	require.Equal([]any{base64.StdEncoding.EncodeToString(raw)}, (*seen)[0].Params)
}

func TestCallErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("rpc error", func(t *testing.T) {
		srv, _ := newNode(t, nil)
		_, err := NewClient(srv.URL, srv.Client()).GetBlockCount(ctx)
		var rpcErr *RPCError
		require.True(t, errors.As(err, &rpcErr))
		require.Equal(t, int64(-32601), rpcErr.Code)
		require.ErrorContains(t, err, "getblockcount")
	})

	t.Run("http status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL, nil).GetVersion(ctx)
		require.ErrorContains(t, err, "non-OK status: 503")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL, srv.Client()).GetVersion(ctx)
		require.ErrorContains(t, err, "failed to decode response")
	})

	t.Run("wrong result type", func(t *testing.T) {
		srv, _ := newNode(t, map[string]string{"getblockcount": `"abc"`})
		_, err := NewClient(srv.URL, srv.Client()).GetBlockCount(ctx)
		require.ErrorContains(t, err, "failed to decode getblockcount result")
	})

	t.Run("empty result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL, srv.Client()).GetBlockCount(ctx)
		require.ErrorContains(t, err, "empty result")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		_, err := NewClient(url, nil).GetVersion(ctx)
		require.ErrorContains(t, err, "failed to send getversion request")
	})
}

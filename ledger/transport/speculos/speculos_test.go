package speculos

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/anchorageoss/neo-ledgerclient/keys"
	"github.com/anchorageoss/neo-ledgerclient/ledger"
	"github.com/anchorageoss/neo-ledgerclient/ledger/emulator"
	"github.com/anchorageoss/neo-ledgerclient/neo"
)

// serveAPDU answers framed APDUs on conn with the in-process emulator, the
// way the Speculos APDU port does
func serveAPDU(t *testing.T, conn net.Conn, dev ledger.Transport) {
	t.Helper()
	go func() {
		defer conn.Close()
		for {
			var header [4]byte
			if _, err := io.ReadFull(conn, header[:]); err != nil {
				return
			}
			apdu := make([]byte, binary.BigEndian.Uint32(header[:]))
			if _, err := io.ReadFull(conn, apdu); err != nil {
				return
			}
			resp, err := dev.Exchange(context.Background(), apdu)
			if err != nil {
				return
			}
			out := make([]byte, 4, 4+len(resp))
			binary.BigEndian.PutUint32(out, uint32(len(resp)-2))
			if _, err := conn.Write(append(out, resp...)); err != nil {
				return
			}
		}
	}()
}

func newEmulator(t *testing.T, opts ...emulator.Option) *emulator.Emulator {
	t.Helper()
	key, err := keys.ParsePrivateKey("c9806898a0334916c860748880a541f093b579a9b1f32934d86c363c39800357:p256")
	require.NoError(t, err)
	return emulator.New(key, opts...)
}

func TestExchangeOverPipe(t *testing.T) {
	require := require.New(t)
	client, server := net.Pipe()
	serveAPDU(t, server, newEmulator(t))

	tr := NewTransport(client, zaptest.NewLogger(t))
	defer tr.Close()
	dev := ledger.New(tr)

	name, err := dev.GetAppName(context.Background())
	require.NoError(err)
	require.Equal(emulator.AppName, name)

	pub, err := dev.GetPublicKey(context.Background(), ledger.MustParsePath(ledger.DefaultPath), false)
	require.NoError(err)
	require.Len(pub, 65)
}

func TestDialTCP(t *testing.T) {
	require := require.New(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer ln.Close()

	emu := newEmulator(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serveAPDU(t, conn, emu)
	}()

	tr, err := Dial(context.Background(), ln.Addr().String(), zaptest.NewLogger(t))
	require.NoError(err)
	defer tr.Close()

	v, err := ledger.New(tr).GetVersion(context.Background())
	require.NoError(err)
	require.Equal("1.0.0", v.String())
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), addr, nil)
	require.ErrorContains(t, err, "failed to connect to speculos")
}

func TestExchangeCancelled(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	tr := NewTransport(client, nil)
	defer tr.Close()

	go func() {
		// read the request, never answer
		_, _ = io.Copy(io.Discard, server)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := tr.Exchange(ctx, []byte{0x80, 0x00, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestButtonConfirmer(t *testing.T) {
	require := require.New(t)

	var (
		mu      sync.Mutex
		presses []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body buttonRequest
		if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&body) != nil || body.Action != "press-and-release" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		presses = append(presses, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	confirmer := &ButtonConfirmer{BaseURL: srv.URL + "/", HTTPClient: srv.Client(), Screens: 2}
	require.NoError(confirmer.Confirm(context.Background()))
	require.Equal([]string{"/button/right", "/button/right", "/button/both"}, presses)

	t.Run("server error", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer bad.Close()
		err := (&ButtonConfirmer{BaseURL: bad.URL}).Confirm(context.Background())
		require.ErrorContains(err, "non-OK status")
	})

	t.Run("cancelled during delay", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := (&ButtonConfirmer{BaseURL: srv.URL, Delay: time.Hour}).Confirm(ctx)
		require.ErrorIs(err, context.Canceled)
	})
}

func TestSignWithButtons(t *testing.T) {
	require := require.New(t)
	emu := newEmulator(t, emulator.WithManualApproval())

	// the REST side of the fake Speculos drives the emulator's buttons
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/button/both" {
			if err := emu.Approve(r.Context()); err != nil {
				w.WriteHeader(http.StatusConflict)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, server := net.Pipe()
	serveAPDU(t, server, emu)
	tr := NewTransport(client, nil)
	defer tr.Close()

	dev := ledger.New(tr, ledger.WithConfirmer(&ButtonConfirmer{BaseURL: srv.URL, HTTPClient: srv.Client(), Screens: 3}))
	account, err := util.Uint160DecodeStringLE("d7678dd97c000be3f33e9362e673101bac4ca654")
	require.NoError(err)
	script, err := neo.NewTransferScript(neo.NeoToken, account, util.Uint160{1}, 10)
	require.NoError(err)
	tx := &transaction.Transaction{
		Nonce:   1,
		Signers: []transaction.Signer{{Account: account, Scopes: transaction.CalledByEntry}},
		Script:  script,
	}
	sig, err := dev.SignTx(context.Background(), ledger.MustParsePath(ledger.DefaultPath), tx, neo.MainNetMagic)
	require.NoError(err)
	require.NotEmpty(sig)
}

// Package speculos connects to the Speculos Ledger emulator.
//
// APDUs go over the emulator's raw APDU TCP port (default 9999). Each
// request is a 4 byte big-endian length followed by the APDU; each response
// is a 4 byte big-endian length N followed by N data bytes and the 2 byte
// status word.
//
// Button presses go over the Speculos REST API (default port 5000), see
// ButtonConfirmer.
package speculos

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anchorageoss/neo-ledgerclient/ledger"
)

const (
	DefaultAPDUAddr   = "127.0.0.1:9999"
	DefaultAPIAddress = "http://127.0.0.1:5000"

	// maxResponse bounds the response length header
	maxResponse = 64 * 1024
)

var _ ledger.Transport = (*Transport)(nil)

// Transport is a ledger.Transport over the Speculos APDU port
type Transport struct {
	mu     sync.Mutex
	conn   net.Conn
	logger *zap.Logger
}

// Dial connects to the APDU port at addr
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to speculos at %s: %w", addr, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("connected to speculos", zap.String("addr", addr))
	return &Transport{conn: conn, logger: logger}, nil
}

// NewTransport wraps an existing connection
func NewTransport(conn net.Conn, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{conn: conn, logger: logger}
}

// Exchange implements ledger.Transport
func (t *Transport) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	} else if err := t.conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}

	// unblock reads when ctx is cancelled without a deadline
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	frame := make([]byte, 4+len(apdu))
	binary.BigEndian.PutUint32(frame, uint32(len(apdu)))
	copy(frame[4:], apdu)
	if _, err := t.conn.Write(frame); err != nil {
		return nil, t.ctxErr(ctx, fmt.Errorf("write apdu: %w", err))
	}

	var header [4]byte
	if _, err := io.ReadFull(t.conn, header[:]); err != nil {
		return nil, t.ctxErr(ctx, fmt.Errorf("read response length: %w", err))
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxResponse {
		return nil, fmt.Errorf("response length %d exceeds %d", n, maxResponse)
	}
	resp := make([]byte, int(n)+2)
	if _, err := io.ReadFull(t.conn, resp); err != nil {
		return nil, t.ctxErr(ctx, fmt.Errorf("read response: %w", err))
	}
	t.logger.Debug("speculos exchange", zap.Int("request_len", len(apdu)), zap.Int("response_len", len(resp)))
	return resp, nil
}

func (t *Transport) ctxErr(ctx context.Context, err error) error {
	// the connection deadline mirrors ctx, which may fire a moment later
	if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		<-ctx.Done()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}

// Close closes the TCP connection
func (t *Transport) Close() error {
	return t.conn.Close()
}

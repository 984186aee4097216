// Package ledger is a client for the NEO N3 Ledger app.
//
// A Device speaks the app's APDU protocol over any Transport: USB HID
// (transport/hid), the Speculos emulator (transport/speculos) or the
// in-process software device (emulator).
//
// # Usage
//
//	dev := ledger.New(transport, ledger.WithLogger(logger))
//	defer dev.Close()
//
//	pub, err := dev.GetPublicKey(ctx, ledger.MustParsePath(ledger.DefaultPath), false)
//	if err != nil {
//		log.Fatal(err)
//	}
//	sig, err := dev.SignTx(ctx, path, tx, neo.MainNetMagic)
//
// A rejection on the device is reported as a *DeviceError that matches
// ErrUserRejected:
//
//	if errors.Is(err, ledger.ErrUserRejected) {
//		// user pressed reject
//	}
package ledger

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anchorageoss/neo-ledgerclient/neo"
)

const (
	publicKeyLen = 65
	// maxSignatureLen is the largest DER encoding of a P-256 signature
	maxSignatureLen = 72
)

// Version is the NEO app version
type Version struct {
	Major, Minor, Patch uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Device is a session with the NEO app over a Transport. A Device is not
// safe for concurrent use; the device itself handles one request at a time.
type Device struct {
	transport Transport
	logger    *zap.Logger
	confirmer Confirmer
}

// Option configures a Device
type Option func(*Device)

// WithLogger sets the logger used for APDU tracing
func WithLogger(logger *zap.Logger) Option {
	return func(d *Device) {
		d.logger = logger
	}
}

// WithConfirmer sets the confirmation trigger run alongside requests that
// need user approval
func WithConfirmer(c Confirmer) Option {
	return func(d *Device) {
		d.confirmer = c
	}
}

// New creates a Device on top of transport
func New(transport Transport, opts ...Option) *Device {
	d := &Device{
		transport: transport,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close releases the transport
func (d *Device) Close() error {
	return d.transport.Close()
}

func (d *Device) exchange(ctx context.Context, cmd Command) ([]byte, error) {
	apdu, err := cmd.Encode()
	if err != nil {
		return nil, err
	}
	d.logger.Debug("apdu request",
		zap.Uint8("ins", cmd.Ins),
		zap.Uint8("p1", cmd.P1),
		zap.Uint8("p2", cmd.P2),
		zap.String("data", hex.EncodeToString(cmd.Data)))

	resp, err := d.transport.Exchange(ctx, apdu)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	data, sw, err := SplitResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	d.logger.Debug("apdu response",
		zap.Uint8("ins", cmd.Ins),
		zap.String("sw", fmt.Sprintf("0x%04X", sw)),
		zap.Int("len", len(data)))

	if sw != SWOK {
		return nil, &DeviceError{Ins: cmd.Ins, SW: sw}
	}
	return data, nil
}

// exchangeConfirmed sends cmd while the configured Confirmer approves it.
// Without a Confirmer the request waits for a human at the device.
func (d *Device) exchangeConfirmed(ctx context.Context, cmd Command) ([]byte, error) {
	if d.confirmer == nil {
		return d.exchange(ctx, cmd)
	}
	g, gctx := errgroup.WithContext(ctx)
	var data []byte
	g.Go(func() error {
		var err error
		data, err = d.exchange(gctx, cmd)
		return err
	})
	g.Go(func() error {
		if err := d.confirmer.Confirm(gctx); err != nil {
			return fmt.Errorf("confirm on device: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

// GetAppName returns the name of the app running on the device
func (d *Device) GetAppName(ctx context.Context) (string, error) {
	data, err := d.exchange(ctx, Command{Ins: InsGetAppName})
	if err != nil {
		return "", fmt.Errorf("get app name: %w", err)
	}
	return string(data), nil
}

// GetVersion returns the NEO app version
func (d *Device) GetVersion(ctx context.Context) (Version, error) {
	data, err := d.exchange(ctx, Command{Ins: InsGetVersion})
	if err != nil {
		return Version{}, fmt.Errorf("get version: %w", err)
	}
	if len(data) != 3 {
		return Version{}, fmt.Errorf("get version: %w: %d bytes", ErrUnexpectedResponse, len(data))
	}
	return Version{Major: data[0], Minor: data[1], Patch: data[2]}, nil
}

// GetPublicKey returns the 65 byte uncompressed public key for path. With
// display set the device shows the address and waits for approval.
func (d *Device) GetPublicKey(ctx context.Context, path Path, display bool) ([]byte, error) {
	cmd := Command{Ins: InsGetPublicKey, Data: path.Bytes()}
	var (
		data []byte
		err  error
	)
	if display {
		cmd.P1 = P1Display
		data, err = d.exchangeConfirmed(ctx, cmd)
	} else {
		data, err = d.exchange(ctx, cmd)
	}
	if err != nil {
		return nil, fmt.Errorf("get public key %s: %w", path, err)
	}
	if len(data) != publicKeyLen || data[0] != 0x04 {
		return nil, fmt.Errorf("get public key %s: %w: %d bytes", path, ErrUnexpectedResponse, len(data))
	}
	d.logger.Info("fetched public key",
		zap.String("path", path.String()),
		zap.Bool("display", display))
	return data, nil
}

// SignTx asks the device to sign tx for the network identified by magic and
// returns the DER signature over magic||SHA256(unsigned tx).
func (d *Device) SignTx(ctx context.Context, path Path, tx *transaction.Transaction, magic uint32) ([]byte, error) {
	unsigned, err := neo.SerializeUnsigned(tx)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return d.SignUnsigned(ctx, path, unsigned, magic)
}

// SignUnsigned is SignTx for an already serialized unsigned transaction
func (d *Device) SignUnsigned(ctx context.Context, path Path, unsigned []byte, magic uint32) ([]byte, error) {
	cmds, err := SignTxCommands(path, magic, unsigned)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	d.logger.Info("signing transaction",
		zap.String("path", path.String()),
		zap.Uint32("magic", magic),
		zap.Int("tx_len", len(unsigned)),
		zap.Int("chunks", len(cmds)))

	last := len(cmds) - 1
	for _, cmd := range cmds[:last] {
		data, err := d.exchange(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("sign tx chunk %d: %w", cmd.P1, err)
		}
		if len(data) != 0 {
			return nil, fmt.Errorf("sign tx chunk %d: %w: %d bytes before last chunk", cmd.P1, ErrUnexpectedResponse, len(data))
		}
	}

	sig, err := d.exchangeConfirmed(ctx, cmds[last])
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if len(sig) == 0 || len(sig) > maxSignatureLen {
		return nil, fmt.Errorf("sign tx: %w: signature of %d bytes", ErrUnexpectedResponse, len(sig))
	}
	return sig, nil
}

// Package hid talks to a physical Ledger over USB HID using
// github.com/zondax/ledger-go.
package hid

import (
	"context"
	"errors"
	"fmt"
	"slices"

	ledger_go "github.com/zondax/ledger-go"
	"go.uber.org/zap"

	"github.com/anchorageoss/neo-ledgerclient/ledger"
)

// Device is the subset of ledger_go.LedgerDevice the transport needs
type Device interface {
	Exchange(command []byte) ([]byte, error)
	Close() error
}

var _ ledger.Transport = (*Transport)(nil)

// Transport is a ledger.Transport over USB HID
type Transport struct {
	device Device
	logger *zap.Logger
}

// Open connects to the Ledger at index among the attached devices
func Open(index int, logger *zap.Logger) (*Transport, error) {
	admin := ledger_go.NewLedgerAdmin()
	if n := admin.CountDevices(); n <= index {
		return nil, fmt.Errorf("ledger device %d not found, %d attached", index, n)
	}
	device, err := admin.Connect(index)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger device %d: %w", index, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("connected to ledger over usb", zap.Int("index", index))
	return New(device, logger), nil
}

// New wraps an already connected device
func New(device Device, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{device: device, logger: logger}
}

type result struct {
	resp []byte
	err  error
}

// Exchange implements ledger.Transport. ledger-go strips the status word
// and turns non-success codes into errors; this restores the raw
// data||SW form so the caller decodes status words in one place.
func (t *Transport) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan result, 1)
	go func() {
		resp, err := t.device.Exchange(apdu)
		done <- result{resp, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		// the HID read cannot be interrupted; the goroutine ends with it
		return nil, ctx.Err()
	}

	if r.err == nil {
		return ledger.Response(r.resp, ledger.SWOK), nil
	}
	if sw, ok := statusFromError(r.err); ok {
		t.logger.Debug("ledger returned status", zap.String("sw", fmt.Sprintf("0x%04X", sw)))
		return ledger.Response(r.resp, sw), nil
	}
	return nil, r.err
}

// statusFromError recovers the status word from a ledger-go error message
func statusFromError(err error) (uint16, bool) {
	known := ledger.KnownStatusWords()
	slices.Sort(known)
	for _, sw := range known {
		if sw == ledger.SWOK {
			continue
		}
		if err.Error() == ledger_go.ErrorMessage(sw) {
			return sw, true
		}
	}
	return 0, false
}

// Close releases the USB device
func (t *Transport) Close() error {
	if t.device == nil {
		return errors.New("device not open")
	}
	return t.device.Close()
}

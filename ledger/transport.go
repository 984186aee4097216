package ledger

import "context"

// Transport carries raw APDUs to a device. Exchange returns the response
// data followed by the two byte status word. A non-nil error means the
// device could not be reached; status words are left to the caller.
type Transport interface {
	Exchange(ctx context.Context, apdu []byte) ([]byte, error)
	Close() error
}

// Confirmer approves a pending request on the device, e.g. by pressing
// the buttons of an emulator. It runs while the approving APDU is in flight.
type Confirmer interface {
	Confirm(ctx context.Context) error
}

// ConfirmerFunc adapts a function to Confirmer
type ConfirmerFunc func(ctx context.Context) error

func (f ConfirmerFunc) Confirm(ctx context.Context) error {
	return f(ctx)
}

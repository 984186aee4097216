package ledger

import (
	"errors"
	"fmt"
)

// Status words returned by the NEO N3 Ledger app
const (
	SWOK                  uint16 = 0x9000
	SWDeny                uint16 = 0x6985
	SWWrongP1P2           uint16 = 0x6A86
	SWWrongDataLength     uint16 = 0x6A87
	SWInsNotSupported     uint16 = 0x6D00
	SWClaNotSupported     uint16 = 0x6E00
	SWWrongResponseLength uint16 = 0xB000
	SWDisplayBIP32Fail    uint16 = 0xB001
	SWDisplayAddressFail  uint16 = 0xB002
	SWDisplayAmountFail   uint16 = 0xB003
	SWWrongTxLength       uint16 = 0xB004
	SWTxParsingFail       uint16 = 0xB005
	SWTxHashFail          uint16 = 0xB006
	SWBadState            uint16 = 0xB007
	SWSignatureFail       uint16 = 0xB008
	SWAppNotOpen          uint16 = 0x6E01
	SWDeviceLocked        uint16 = 0x5515
)

var statusText = map[uint16]string{
	SWOK:                  "success",
	SWDeny:                "rejected by user",
	SWWrongP1P2:           "wrong P1 or P2",
	SWWrongDataLength:     "wrong data length",
	SWInsNotSupported:     "instruction not supported",
	SWClaNotSupported:     "class not supported",
	SWWrongResponseLength: "wrong response length",
	SWDisplayBIP32Fail:    "failed to display BIP32 path",
	SWDisplayAddressFail:  "failed to display address",
	SWDisplayAmountFail:   "failed to display amount",
	SWWrongTxLength:       "wrong transaction length",
	SWTxParsingFail:       "failed to parse transaction",
	SWTxHashFail:          "failed to hash transaction",
	SWBadState:            "bad state",
	SWSignatureFail:       "failed to sign",
	SWAppNotOpen:          "NEO app is not open",
	SWDeviceLocked:        "device is locked",
}

// KnownStatusWords lists every status word with a description, in no
// particular order.
func KnownStatusWords() []uint16 {
	out := make([]uint16, 0, len(statusText))
	for sw := range statusText {
		out = append(out, sw)
	}
	return out
}

// StatusText describes a status word
func StatusText(sw uint16) string {
	if text, ok := statusText[sw]; ok {
		return text
	}
	return "unknown status"
}

var (
	// ErrUserRejected is matched by a DeviceError carrying SWDeny
	ErrUserRejected = errors.New("user rejected the request on the device")
	// ErrTransport wraps failures to talk to the device at all
	ErrTransport = errors.New("device transport error")
	// ErrShortResponse is returned when a response lacks a status word
	ErrShortResponse = errors.New("response shorter than status word")
	// ErrUnexpectedResponse is returned for well-formed but unusable payloads
	ErrUnexpectedResponse = errors.New("unexpected device response")
)

// DeviceError is a non-success status word returned for an instruction
type DeviceError struct {
	Ins byte
	SW  uint16
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device returned 0x%04X (%s) for instruction 0x%02X", e.SW, StatusText(e.SW), e.Ins)
}

// Is lets errors.Is(err, ErrUserRejected) match a deny status word
func (e *DeviceError) Is(target error) bool {
	return target == ErrUserRejected && e.SW == SWDeny
}

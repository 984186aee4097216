package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// APDU constants of the NEO N3 Ledger app
const (
	CLA byte = 0x80

	InsGetAppName   byte = 0x00
	InsGetVersion   byte = 0x01
	InsSignTx       byte = 0x02
	InsGetPublicKey byte = 0x04

	// P1Display asks the device to show the address before answering
	P1Display byte = 0x01
	// P2More is set on every SIGN_TX chunk but the last
	P2More byte = 0x80
	P2Last byte = 0x00

	// MaxPayload is the largest data field of a short APDU
	MaxPayload = 255
	// MaxChunks bounds the SIGN_TX chunk index, which travels in P1
	MaxChunks = 255

	headerLen = 5
)

var ErrTransactionTooLarge = errors.New("transaction does not fit in SIGN_TX chunks")

// Command is a single APDU command
type Command struct {
	Ins  byte
	P1   byte
	P2   byte
	Data []byte
}

// Encode returns CLA INS P1 P2 Lc Data
func (c Command) Encode() ([]byte, error) {
	if len(c.Data) > MaxPayload {
		return nil, fmt.Errorf("apdu payload of %d bytes exceeds %d", len(c.Data), MaxPayload)
	}
	apdu := make([]byte, 0, headerLen+len(c.Data))
	apdu = append(apdu, CLA, c.Ins, c.P1, c.P2, byte(len(c.Data)))
	return append(apdu, c.Data...), nil
}

// ParseCommand decodes an APDU produced by Encode. The class byte is
// returned separately so the receiver can answer SWClaNotSupported.
func ParseCommand(apdu []byte) (cla byte, cmd Command, err error) {
	if len(apdu) < headerLen {
		return 0, Command{}, fmt.Errorf("apdu of %d bytes is shorter than its header", len(apdu))
	}
	lc := int(apdu[4])
	if len(apdu)-headerLen != lc {
		return 0, Command{}, fmt.Errorf("apdu length byte %d does not match %d data bytes", lc, len(apdu)-headerLen)
	}
	return apdu[0], Command{Ins: apdu[1], P1: apdu[2], P2: apdu[3], Data: apdu[headerLen:]}, nil
}

// SplitResponse separates response data from the trailing status word
func SplitResponse(resp []byte) ([]byte, uint16, error) {
	if len(resp) < 2 {
		return nil, 0, ErrShortResponse
	}
	n := len(resp) - 2
	return resp[:n], binary.BigEndian.Uint16(resp[n:]), nil
}

// Response appends sw to data, the way a device answers
func Response(data []byte, sw uint16) []byte {
	out := make([]byte, len(data)+2)
	copy(out, data)
	binary.BigEndian.PutUint16(out[len(data):], sw)
	return out
}

// SignTxCommands splits a signing request into SIGN_TX chunks: the path,
// then the network magic as a little-endian uint32, then the unsigned
// transaction in MaxPayload sized pieces. P1 carries the chunk index.
func SignTxCommands(path Path, magic uint32, unsigned []byte) ([]Command, error) {
	if len(path) == 0 || len(path) > MaxPathDepth {
		return nil, fmt.Errorf("%w: %d levels", ErrInvalidPath, len(path))
	}
	if len(unsigned) == 0 {
		return nil, errors.New("empty transaction")
	}

	magicBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(magicBytes, magic)

	chunks := [][]byte{path.Bytes(), magicBytes}
	for off := 0; off < len(unsigned); off += MaxPayload {
		end := min(off+MaxPayload, len(unsigned))
		chunks = append(chunks, unsigned[off:end])
	}
	if len(chunks) > MaxChunks {
		return nil, fmt.Errorf("%w: %d chunks", ErrTransactionTooLarge, len(chunks))
	}

	cmds := make([]Command, len(chunks))
	for i, chunk := range chunks {
		p2 := P2More
		if i == len(chunks)-1 {
			p2 = P2Last
		}
		cmds[i] = Command{Ins: InsSignTx, P1: byte(i), P2: p2, Data: chunk}
	}
	return cmds, nil
}

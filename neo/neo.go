// Package neo adapts neo-go's N3 transaction model to the Ledger signing
// flow.
//
// The unsigned form of a transaction is what gets hashed and signed:
//
//	version(u8) | nonce(u32) | system fee(i64) | network fee(i64) |
//	valid until block(u32) | signers(var array) | attributes(var array) |
//	script(var bytes)
//
// The encoding itself is neo-go's (EncodeHashableFields and
// DecodeHashableFields). This package adds what the device cares about on
// top: the signed message, the checks the app runs before it shows a
// transaction, script classification and the scope names on the review
// screens.
//
// # Signing
//
// A signer (hardware or software) signs SHA256 of the message returned by
// MessageFor, which binds the transaction hash to a network magic:
//
//	msg, err := neo.MessageFor(tx, neo.MainNetMagic)
//	if err != nil {
//		log.Fatal(err)
//	}
package neo

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/config/netmode"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/emit"
)

const (
	MainNetMagic = uint32(netmode.MainNet)
	TestNetMagic = uint32(netmode.TestNet)

	// MaxTransactionSize is the protocol limit for a full serialized transaction
	MaxTransactionSize = transaction.MaxTransactionSize
	// MaxAttributes bounds signers plus attributes
	MaxAttributes = transaction.MaxAttributes
	// MaxScriptLength is the largest script accepted in a transaction
	MaxScriptLength = 65535
	// MaxSubitems bounds allowed contracts and groups of a single signer
	MaxSubitems = 16
)

var ErrTransactionLimit = errors.New("transaction exceeds maximum size")

// digest is an already computed transaction hash
type digest util.Uint256

func (d digest) Hash() util.Uint256 { return util.Uint256(d) }

// SerializeUnsigned returns the bytes covered by the signature. Witnesses
// are not included and tx is not modified.
func SerializeUnsigned(tx *transaction.Transaction) ([]byte, error) {
	if err := checkEncodable(tx); err != nil {
		return nil, fmt.Errorf("serialize unsigned transaction: %w", err)
	}
	b, err := tx.EncodeHashableFields()
	if err != nil {
		return nil, fmt.Errorf("serialize unsigned transaction: %w", err)
	}
	return b, nil
}

// Serialize returns the full wire form, witnesses included
func Serialize(tx *transaction.Transaction) ([]byte, error) {
	if err := checkEncodable(tx); err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	w := io.NewBufBinWriter()
	tx.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", w.Err)
	}
	return w.Bytes(), nil
}

// Hash is SHA256 of the unsigned serialization, which is also the
// transaction id. It never uses the hash neo-go caches on tx, so it stays
// correct after tx is modified.
func Hash(tx *transaction.Transaction) (util.Uint256, error) {
	b, err := SerializeUnsigned(tx)
	if err != nil {
		return util.Uint256{}, err
	}
	return hash.Sha256(b), nil
}

// HashString formats a transaction hash the way explorers and RPC nodes do
func HashString(h util.Uint256) string {
	return "0x" + h.StringLE()
}

// SignedMessage returns magic as a 4 byte little-endian value followed by
// SHA256(unsigned).
func SignedMessage(magic uint32, unsigned []byte) []byte {
	return hash.GetSignedData(magic, digest(hash.Sha256(unsigned)))
}

// MessageFor serializes tx and returns the message a signer must sign for
// the given network.
func MessageFor(tx *transaction.Transaction, magic uint32) ([]byte, error) {
	b, err := SerializeUnsigned(tx)
	if err != nil {
		return nil, err
	}
	return SignedMessage(magic, b), nil
}

// DecodeUnsigned parses the unsigned serialization produced by
// SerializeUnsigned. The result has no witnesses.
func DecodeUnsigned(b []byte) (*transaction.Transaction, error) {
	if len(b) > MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTransactionLimit, len(b))
	}
	tx := new(transaction.Transaction)
	if err := tx.DecodeHashableFields(b); err != nil {
		return nil, fmt.Errorf("decode unsigned transaction: %w", err)
	}
	if err := checkEncodable(tx); err != nil {
		return nil, fmt.Errorf("decode unsigned transaction: %w", err)
	}
	return tx, nil
}

// Decode parses the full wire form including witnesses
func Decode(b []byte) (*transaction.Transaction, error) {
	if len(b) > MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTransactionLimit, len(b))
	}
	tx, err := transaction.NewTransactionFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if err := checkEncodable(tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

// InvocationScript returns the script that pushes a 64 byte r||s
// signature, as expected by a standard verification script.
func InvocationScript(sig []byte) []byte {
	w := io.NewBufBinWriter()
	emit.Bytes(w.BinWriter, sig)
	return w.Bytes()
}

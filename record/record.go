// Package record stores signing transcripts.
//
// A Record captures one device round trip: the derivation path, the
// network magic, the public key the device reported, the unsigned
// transaction and the DER signature. Records are Borsh encoded so the
// same bytes always produce the same digest.
//
// # Usage
//
//	rec := record.New(path, magic, result, time.Now())
//	if err := rec.Save(filename); err != nil {
//		log.Fatal(err)
//	}
//
// A saved record can be re-checked without the device:
//
//	rec, err := record.Load(filename)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := rec.Verify(); err != nil {
//		log.Printf("record does not verify: %v", err)
//	}
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/near/borsh-go"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"

	"github.com/anchorageoss/neo-ledgerclient/ledger"
	"github.com/anchorageoss/neo-ledgerclient/neo"
	"github.com/anchorageoss/neo-ledgerclient/verify"
)

// FormatVersion is written as the first byte of every record
const FormatVersion uint8 = 1

// FileExtension is used by the CLI when naming record files
const FileExtension = ".neorec"

var ErrUnsupportedVersion = errors.New("unsupported record version")

// Record is a signing transcript
type Record struct {
	Version      uint8
	Path         []uint32
	NetworkMagic uint32
	PublicKey    []byte
	UnsignedTx   []byte
	Signature    []byte
	// Created is a unix timestamp in seconds
	Created uint64
}

// New builds a record from a successful sign-and-verify result
func New(path ledger.Path, magic uint32, result *verify.Result, created time.Time) *Record {
	return &Record{
		Version:      FormatVersion,
		Path:         append([]uint32(nil), path...),
		NetworkMagic: magic,
		PublicKey:    append([]byte(nil), result.PublicKey...),
		UnsignedTx:   append([]byte(nil), result.UnsignedTx...),
		Signature:    append([]byte(nil), result.Signature...),
		Created:      uint64(created.Unix()),
	}
}

// Marshal returns the Borsh encoding of the record
func (r *Record) Marshal() ([]byte, error) {
	b, err := borsh.Serialize(*r)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize record: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a Borsh encoded record
func Unmarshal(b []byte) (*Record, error) {
	var r Record
	if err := borsh.Deserialize(&r, b); err != nil {
		return nil, fmt.Errorf("failed to deserialize record: %w", err)
	}
	if r.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.Version)
	}
	if len(r.Path) > ledger.MaxPathDepth {
		return nil, fmt.Errorf("%w: depth %d", ledger.ErrInvalidPath, len(r.Path))
	}
	return &r, nil
}

// Save writes the record to filePath
func (r *Record) Save(filePath string) error {
	b, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filePath, b, 0o644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Load reads a record from filePath
func Load(filePath string) (*Record, error) {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Unmarshal(b)
}

// Digest computes the hex SHA-256 of the encoded record
func (r *Record) Digest() (string, error) {
	b, err := r.Marshal()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// DerivationPath returns the path the record was signed with
func (r *Record) DerivationPath() ledger.Path {
	return ledger.Path(r.Path)
}

// CreatedAt returns the creation time
func (r *Record) CreatedAt() time.Time {
	return time.Unix(int64(r.Created), 0).UTC()
}

// Transaction decodes the stored unsigned transaction
func (r *Record) Transaction() (*transaction.Transaction, error) {
	return neo.DecodeUnsigned(r.UnsignedTx)
}

// Verify re-checks the stored signature against the stored key
func (r *Record) Verify() error {
	tx, err := r.Transaction()
	if err != nil {
		return fmt.Errorf("failed to decode transaction: %w", err)
	}
	return verify.VerifyOffline(r.PublicKey, tx, r.NetworkMagic, r.Signature)
}

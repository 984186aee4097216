package verify

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap"

	"github.com/anchorageoss/neo-ledgerclient/crypto"
	"github.com/anchorageoss/neo-ledgerclient/ledger"
	"github.com/anchorageoss/neo-ledgerclient/neo"
)

// ErrVerificationFailed is returned when the device signature does not
// verify against the key it reported for the path.
var ErrVerificationFailed = errors.New("signature verification failed")

// Device is the part of ledger.Device the service drives
type Device interface {
	GetPublicKey(ctx context.Context, path ledger.Path, display bool) ([]byte, error)
	SignTx(ctx context.Context, path ledger.Path, tx *transaction.Transaction, magic uint32) ([]byte, error)
}

var _ Device = (*ledger.Device)(nil)

// Service handles the sign-and-verify flow
type Service struct {
	device Device
	logger *zap.Logger
}

// NewService creates a new verification service
func NewService(device Device, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{device: device, logger: logger}
}

// SignAndVerify fetches the public key for the path, has the device sign
// the transaction and verifies the signature locally.
func (s *Service) SignAndVerify(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Transaction == nil {
		return nil, errors.New("transaction is required")
	}
	logger := s.logger.With(zap.String("path", req.Path.String()), zap.Uint32("magic", req.NetworkMagic))

	// Step 1: fetch the public key
	pubBytes, err := s.device.GetPublicKey(ctx, req.Path, req.DisplayKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	pub, err := crypto.ParsePublicKey(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("device returned an invalid public key: %w", err)
	}
	result := &Result{PublicKey: pubBytes}
	result.Address, result.ScriptHash = Account(pub)
	logger.Info("fetched public key", zap.String("address", result.Address))

	// Step 2: serialize the unsigned transaction
	if result.UnsignedTx, err = neo.SerializeUnsigned(req.Transaction); err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	result.TxHash = hash.Sha256(result.UnsignedTx)
	result.Message = neo.SignedMessage(req.NetworkMagic, result.UnsignedTx)

	// Step 3: sign on the device
	if result.Signature, err = s.device.SignTx(ctx, req.Path, req.Transaction, req.NetworkMagic); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	logger.Info("device signed transaction", zap.String("hash", neo.HashString(result.TxHash)))

	// Step 4: verify locally
	ok, err := crypto.VerifyDERSignature(pub, result.Message, result.Signature)
	if err != nil {
		return nil, fmt.Errorf("device returned a malformed signature: %w", err)
	}
	if !ok {
		logger.Warn("device signature does not verify")
		return result, ErrVerificationFailed
	}
	result.Valid = true
	return result, nil
}

// VerifyOffline checks a previously captured signature over tx for the
// given network
func VerifyOffline(publicKey []byte, tx *transaction.Transaction, magic uint32, signature []byte) error {
	pub, err := crypto.ParsePublicKey(publicKey)
	if err != nil {
		return err
	}
	msg, err := neo.MessageFor(tx, magic)
	if err != nil {
		return fmt.Errorf("failed to serialize transaction: %w", err)
	}
	ok, err := crypto.VerifyDERSignature(pub, msg, signature)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVerificationFailed
	}
	return nil
}

// Account returns the N3 address and script hash of the single-signature
// account for pub
func Account(pub *ecdsa.PublicKey) (string, util.Uint160) {
	key := (*keys.PublicKey)(pub)
	return key.Address(), key.GetScriptHash()
}

// SignedTransaction returns a copy of tx carrying a single-signature
// witness built from result. It only supports transactions whose only
// signer is the device account.
func SignedTransaction(tx *transaction.Transaction, result *Result) (*transaction.Transaction, error) {
	if len(tx.Signers) != 1 || tx.Signers[0].Account != result.ScriptHash {
		return nil, fmt.Errorf("transaction must have %s as its only signer", address.Uint160ToString(result.ScriptHash))
	}
	pub, err := crypto.ParsePublicKey(result.PublicKey)
	if err != nil {
		return nil, err
	}
	rs, err := crypto.DERToRS(result.Signature)
	if err != nil {
		return nil, err
	}
	signed := *tx
	signed.Scripts = []transaction.Witness{{
		InvocationScript:   neo.InvocationScript(rs),
		VerificationScript: (*keys.PublicKey)(pub).GetVerificationScript(),
	}}
	return &signed, nil
}

// Package crypto provides the P-256 ECDSA operations used to check Ledger
// NEO signatures.
//
// This package provides:
//   - Public key decoding (compressed, uncompressed and raw X||Y)
//   - Strict DER decoding and encoding of ECDSA signatures
//   - ECDSA P-256 signing and verification over SHA-256
//
// # Verification
//
// A device returns DER signatures over the signed message of a transaction:
//
//	ok, err := crypto.VerifyDERSignature(pub, msg, derSig)
//	if errors.Is(err, crypto.ErrMalformedSignature) {
//		// signature bytes could not be decoded
//	}
//
// VerifyECDSASignature is the boolean form that treats any undecodable input
// as an invalid signature.
//
// # Signing
//
// Sign data using ECDSA P-256, as the software emulator does:
//
//	signature, err := crypto.SignWithECDSA(privateKey, data)
//	if err != nil {
//		log.Fatal(err)
//	}
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	// ErrMalformedSignature is returned when signature bytes are not a
	// valid DER encoded ECDSA signature
	ErrMalformedSignature = errors.New("malformed DER signature")
	// ErrInvalidPublicKey is returned for keys that are not a P-256 point
	ErrInvalidPublicKey = errors.New("invalid P-256 public key")
)

// ECDSASignature represents an ECDSA signature for ASN.1 encoding
type ECDSASignature struct {
	R, S *big.Int
}

// SignWithECDSA signs data with an ECDSA private key using SHA256 and
// returns the DER encoded signature
func SignWithECDSA(privateKey *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)

	r, s, err := ecdsa.Sign(rand.Reader, privateKey, hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign with ECDSA: %w", err)
	}

	return MarshalECDSASignatureDER(r, s)
}

// MarshalECDSASignatureDER converts ECDSA signature components to DER format
func MarshalECDSASignatureDER(r, s *big.Int) ([]byte, error) {
	signature := ECDSASignature{R: r, S: s}
	return asn1.Marshal(signature)
}

// ParseECDSASignatureDER decodes SEQUENCE { r INTEGER, s INTEGER }. Trailing
// bytes, non-minimal integers and non-positive values are rejected.
func ParseECDSASignatureDER(sig []byte) (r, s *big.Int, err error) {
	var inner cryptobyte.String
	input := cryptobyte.String(sig)
	r, s = new(big.Int), new(big.Int)
	if !input.ReadASN1(&inner, cbasn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, nil, ErrMalformedSignature
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: non-positive component", ErrMalformedSignature)
	}
	return r, s, nil
}

// DERToRS converts a DER signature into the fixed 64 byte r||s form that NEO
// invocation scripts carry.
func DERToRS(sig []byte) ([]byte, error) {
	r, s, err := ParseECDSASignatureDER(sig)
	if err != nil {
		return nil, err
	}
	if r.BitLen() > 256 || s.BitLen() > 256 {
		return nil, fmt.Errorf("%w: component exceeds 32 bytes", ErrMalformedSignature)
	}
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}

// ParsePublicKey decodes a P-256 public key. It accepts the 65 byte
// uncompressed SEC1 form returned by the device, a 64 byte X||Y form, and
// the 33 byte compressed form used in NEO scripts.
func ParsePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	curve := elliptic.P256()
	var x, y *big.Int
	switch len(b) {
	case 65:
		if b[0] != 0x04 {
			return nil, fmt.Errorf("%w: bad uncompressed prefix 0x%02x", ErrInvalidPublicKey, b[0])
		}
		x = new(big.Int).SetBytes(b[1:33])
		y = new(big.Int).SetBytes(b[33:])
	case 64:
		x = new(big.Int).SetBytes(b[:32])
		y = new(big.Int).SetBytes(b[32:])
	case 33:
		x, y = elliptic.UnmarshalCompressed(curve, b)
		if x == nil {
			return nil, fmt.Errorf("%w: bad compressed point", ErrInvalidPublicKey)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(b))
	}
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("%w: point not on curve", ErrInvalidPublicKey)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// CompressPublicKey returns the 33 byte compressed form of pub
func CompressPublicKey(pub *ecdsa.PublicKey) []byte {
	return elliptic.MarshalCompressed(elliptic.P256(), pub.X, pub.Y)
}

// MarshalPublicKey returns the 65 byte uncompressed form of pub
func MarshalPublicKey(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, 65)
	out[0] = 0x04
	pub.X.FillBytes(out[1:33])
	pub.Y.FillBytes(out[33:])
	return out
}

// VerifyDERSignature checks a DER encoded signature over SHA256(data). A
// mismatch is reported as false with a nil error; an error is only returned
// when the signature cannot be decoded.
func VerifyDERSignature(publicKey *ecdsa.PublicKey, data []byte, signature []byte) (bool, error) {
	r, s, err := ParseECDSASignatureDER(signature)
	if err != nil {
		return false, err
	}
	hash := sha256.Sum256(data)
	return ecdsa.Verify(publicKey, hash[:], r, s), nil
}

// VerifyECDSASignature verifies a DER encoded ECDSA signature. Signatures
// that fail to decode are invalid.
func VerifyECDSASignature(publicKey *ecdsa.PublicKey, data []byte, signature []byte) bool {
	ok, err := VerifyDERSignature(publicKey, data, signature)
	return err == nil && ok
}

// ComputeHash computes the SHA256 hash of data and returns it as hex
func ComputeHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Package keys loads the P-256 master key used by the software device
// emulator.
//
// # Key File Format
//
// A key file holds a single line "hexkey:curve" where hexkey is the 32 byte
// private scalar in hex and curve is the curve name:
//
//	c9806898a0334916c860748880a541f093b579a9b1f32934d86c363c39800357:p256
//
// Only "p256" is supported, matching the NEO N3 secp256r1 keys.
//
// # Loading Keys
//
// Load a key using the FileKeyProvider:
//
//	provider := &keys.FileKeyProvider{Path: "emulator.key"}
//	key, err := provider.GetPrivateKey(context.Background())
//	if err != nil {
//		log.Fatal(err)
//	}
package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
)

// CurveP256 is the only curve name accepted in key files
const CurveP256 = "p256"

// KeyProvider supplies the emulator's master key
type KeyProvider interface {
	GetPrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error)
}

// FileKeyProvider implements KeyProvider by reading a key file
type FileKeyProvider struct {
	Path string
}

// GetPrivateKey loads the key from Path
func (f *FileKeyProvider) GetPrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	return LoadPrivateKeyFile(f.Path)
}

// StaticKeyProvider returns a key that is already in memory
type StaticKeyProvider struct {
	Key *ecdsa.PrivateKey
}

func (s *StaticKeyProvider) GetPrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	if s.Key == nil {
		return nil, errors.New("no key configured")
	}
	return s.Key, nil
}

// LoadPrivateKeyFile reads and parses a "hexkey:p256" key file
func LoadPrivateKeyFile(path string) (*ecdsa.PrivateKey, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	key, err := ParsePrivateKey(string(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// ParsePrivateKey parses the "hexkey:curve" format
func ParsePrivateKey(content string) (*ecdsa.PrivateKey, error) {
	parts := strings.Split(strings.TrimSpace(content), ":")
	if len(parts) != 2 {
		return nil, errors.New("invalid private key format, expected 'hexkey:curve'")
	}

	privateKeyHex := parts[0]
	curve := parts[1]

	if curve != CurveP256 {
		return nil, fmt.Errorf("unsupported curve: %s, only p256 is supported", curve)
	}

	privateKeyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex: %w", err)
	}
	if len(privateKeyBytes) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(privateKeyBytes))
	}

	return NewPrivateKey(privateKeyBytes)
}

// NewPrivateKey builds a P-256 key from a 32 byte scalar, deriving the
// public point from it
func NewPrivateKey(scalar []byte) (*ecdsa.PrivateKey, error) {
	ecdsaCurve := elliptic.P256()
	d := new(big.Int).SetBytes(scalar)
	if d.Sign() == 0 || d.Cmp(ecdsaCurve.Params().N) >= 0 {
		return nil, errors.New("private key scalar out of range")
	}

	privateKey := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: ecdsaCurve,
		},
		D: d,
	}
	privateKey.X, privateKey.Y = ecdsaCurve.ScalarBaseMult(d.FillBytes(make([]byte, 32)))

	return privateKey, nil
}

// FormatPrivateKey renders key in the key file format
func FormatPrivateKey(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(key.D.FillBytes(make([]byte, 32))) + ":" + CurveP256
}

// WritePrivateKeyFile stores key at path with owner-only permissions
func WritePrivateKeyFile(path string, key *ecdsa.PrivateKey) error {
	if err := os.WriteFile(path, []byte(FormatPrivateKey(key)+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write private key file: %w", err)
	}
	return nil
}

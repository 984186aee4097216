package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "c9806898a0334916c860748880a541f093b579a9b1f32934d86c363c39800357"

func TestParsePrivateKey(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		key, err := ParsePrivateKey(testKeyHex + ":p256\n")
		require.NoError(t, err)
		assert.Equal(t, elliptic.P256(), key.Curve)
		assert.True(t, key.Curve.IsOnCurve(key.X, key.Y))

		x, y := elliptic.P256().ScalarBaseMult(key.D.Bytes())
		assert.Equal(t, 0, x.Cmp(key.X))
		assert.Equal(t, 0, y.Cmp(key.Y))
	})

	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"missing curve", testKeyHex, "expected 'hexkey:curve'"},
		{"too many parts", testKeyHex + ":p256:extra", "expected 'hexkey:curve'"},
		{"wrong curve", testKeyHex + ":secp256k1", "unsupported curve"},
		{"bad hex", "zz:p256", "failed to decode private key hex"},
		{"short key", "0102:p256", "must be 32 bytes"},
		{"zero scalar", strings.Repeat("00", 32) + ":p256", "out of range"},
		{"scalar above order", strings.Repeat("ff", 32) + ":p256", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrivateKey(tt.content)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestFileKeyProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emulator.key")

	generated, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	require.NoError(t, WritePrivateKeyFile(path, generated))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	provider := &FileKeyProvider{Path: path}
	key, err := provider.GetPrivateKey(context.Background())
	require.NoError(t, err)
	assert.True(t, key.Equal(generated))

	t.Run("missing file", func(t *testing.T) {
		provider := &FileKeyProvider{Path: filepath.Join(dir, "nope.key")}
		_, err := provider.GetPrivateKey(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read private key file")
	})
}

func TestStaticKeyProvider(t *testing.T) {
	key, err := ParsePrivateKey(testKeyHex + ":p256")
	require.NoError(t, err)

	got, err := (&StaticKeyProvider{Key: key}).GetPrivateKey(context.Background())
	require.NoError(t, err)
	assert.Same(t, key, got)

	_, err = (&StaticKeyProvider{}).GetPrivateKey(context.Background())
	assert.Error(t, err)
}

func TestFormatPrivateKey(t *testing.T) {
	key, err := ParsePrivateKey(testKeyHex + ":p256")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex+":p256", FormatPrivateKey(key))
}

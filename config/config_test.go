package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anchorageoss/neo-ledgerclient/ledger"
	"github.com/anchorageoss/neo-ledgerclient/neo"
)

func TestDefaults(t *testing.T) {
	require := require.New(t)
	cfg, err := Load("", nil)
	require.NoError(err)
	require.Equal(TransportHID, cfg.Transport)
	require.Equal("127.0.0.1:9999", cfg.SpeculosAddr)
	require.Equal(ledger.DefaultPath, cfg.Path.String())
	require.Equal(uint32(neo.MainNetMagic), cfg.NetworkMagic)
	require.Equal("info", cfg.LogLevel)
	require.Equal(2*time.Minute, cfg.Timeout)
	require.True(cfg.EmulatorContractScripts)
}

func TestLoadFile(t *testing.T) {
	require := require.New(t)
	file := filepath.Join(t.TempDir(), "neo-ledger.yaml")
	require.NoError(os.WriteFile(file, []byte(`
transport: emulator
emulator-key: /tmp/master.key
path: m/44'/888'/1'/0/3
network: testnet
timeout: 30s
`), 0o600))

	cfg, err := Load(file, nil)
	require.NoError(err)
	require.Equal(TransportEmulator, cfg.Transport)
	require.Equal("/tmp/master.key", cfg.EmulatorKey)
	require.Equal("m/44'/888'/1'/0/3", cfg.Path.String())
	require.Equal(uint32(neo.TestNetMagic), cfg.NetworkMagic)
	require.Equal(30*time.Second, cfg.Timeout)

	t.Run("overrides win", func(t *testing.T) {
		cfg, err := Load(file, map[string]any{NetworkKey: "1234", TransportKey: "speculos", EmulatorContractScriptsKey: "false"})
		require.NoError(err)
		require.False(cfg.EmulatorContractScripts)
		require.Equal(uint32(1234), cfg.NetworkMagic)
		require.Equal(TransportSpeculos, cfg.Transport)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
		require.ErrorContains(err, "failed to read config file")
	})
}

func TestEnvironment(t *testing.T) {
	t.Setenv("NEOLEDGER_TRANSPORT", "speculos")
	t.Setenv("NEOLEDGER_SPECULOS_ADDR", "10.0.0.1:9999")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, TransportSpeculos, cfg.Transport)
	require.Equal(t, "10.0.0.1:9999", cfg.SpeculosAddr)
}

func TestInvalid(t *testing.T) {
	tests := map[string]map[string]any{
		"unknown transport":  {TransportKey: "bluetooth"},
		"emulator no key":    {TransportKey: TransportEmulator},
		"bad path":           {PathKey: "m/44'/x"},
		"bad network":        {NetworkKey: "devnet"},
		"negative screens":   {SpeculosScreensKey: -1},
		"zero timeout":       {TimeoutKey: "0s"},
		"magic out of range": {NetworkKey: "4294967296"},
	}
	for name, overrides := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load("", overrides)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseNetwork(t *testing.T) {
	magic, err := ParseNetwork("MainNet")
	require.NoError(t, err)
	require.Equal(t, uint32(860833102), magic)
	magic, err = ParseNetwork(" 894710606 ")
	require.NoError(t, err)
	require.Equal(t, uint32(894710606), magic)
}

// Package config loads client settings from defaults, an optional config
// file, NEOLEDGER_* environment variables and command line overrides, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/anchorageoss/neo-ledgerclient/ledger"
	"github.com/anchorageoss/neo-ledgerclient/ledger/transport/speculos"
	"github.com/anchorageoss/neo-ledgerclient/neo"
)

const EnvPrefix = "NEOLEDGER"

const (
	TransportKey       = "transport"
	SpeculosAddrKey    = "speculos-addr"
	SpeculosAPIKey     = "speculos-api"
	SpeculosScreensKey = "speculos-screens"
	HIDIndexKey        = "hid-index"
	EmulatorKeyKey     = "emulator-key"
	PathKey            = "path"
	NetworkKey         = "network"
	RPCEndpointKey     = "rpc-endpoint"
	LogLevelKey        = "log-level"
	RecordDirKey       = "record-dir"
	TimeoutKey         = "timeout"
	// EmulatorContractScriptsKey lets the emulator sign scripts other than
	// NEO/GAS transfers and votes
	EmulatorContractScriptsKey = "emulator-contract-scripts"
)

// Transport names
const (
	TransportHID      = "hid"
	TransportSpeculos = "speculos"
	TransportEmulator = "emulator"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the resolved client configuration
type Config struct {
	Transport       string
	SpeculosAddr    string
	SpeculosAPI     string
	SpeculosScreens int
	HIDIndex        int
	// EmulatorKey is a hexkey:p256 file holding the emulator master key
	EmulatorKey             string
	EmulatorContractScripts bool
	Path                    ledger.Path
	NetworkMagic            uint32
	RPCEndpoint             string
	LogLevel                string
	RecordDir               string
	Timeout                 time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(TransportKey, TransportHID)
	v.SetDefault(SpeculosAddrKey, speculos.DefaultAPDUAddr)
	v.SetDefault(SpeculosAPIKey, speculos.DefaultAPIAddress)
	v.SetDefault(SpeculosScreensKey, 0)
	v.SetDefault(HIDIndexKey, 0)
	v.SetDefault(EmulatorKeyKey, "")
	v.SetDefault(EmulatorContractScriptsKey, true)
	v.SetDefault(PathKey, ledger.DefaultPath)
	v.SetDefault(NetworkKey, "mainnet")
	v.SetDefault(RPCEndpointKey, "")
	v.SetDefault(LogLevelKey, "info")
	v.SetDefault(RecordDirKey, ".")
	v.SetDefault(TimeoutKey, 2*time.Minute)
}

// Load reads file (if not empty) and applies overrides on top. Keys in
// overrides use the same names as the config file.
func Load(file string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Transport:               strings.ToLower(v.GetString(TransportKey)),
		SpeculosAddr:            v.GetString(SpeculosAddrKey),
		SpeculosAPI:             v.GetString(SpeculosAPIKey),
		SpeculosScreens:         v.GetInt(SpeculosScreensKey),
		HIDIndex:                v.GetInt(HIDIndexKey),
		EmulatorKey:             v.GetString(EmulatorKeyKey),
		EmulatorContractScripts: v.GetBool(EmulatorContractScriptsKey),
		RPCEndpoint:             v.GetString(RPCEndpointKey),
		LogLevel:                v.GetString(LogLevelKey),
		RecordDir:               v.GetString(RecordDirKey),
		Timeout:                 v.GetDuration(TimeoutKey),
	}

	switch cfg.Transport {
	case TransportHID, TransportSpeculos:
	case TransportEmulator:
		if cfg.EmulatorKey == "" {
			return nil, fmt.Errorf("%w: %s transport needs %s", ErrInvalidConfig, TransportEmulator, EmulatorKeyKey)
		}
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, cfg.Transport)
	}

	path, err := ledger.ParsePath(v.GetString(PathKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.Path = path

	if cfg.NetworkMagic, err = ParseNetwork(v.GetString(NetworkKey)); err != nil {
		return nil, err
	}
	if cfg.SpeculosScreens < 0 || cfg.HIDIndex < 0 {
		return nil, fmt.Errorf("%w: negative %s or %s", ErrInvalidConfig, SpeculosScreensKey, HIDIndexKey)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, TimeoutKey)
	}
	return cfg, nil
}

// ParseNetwork accepts "mainnet", "testnet" or a decimal magic number
func ParseNetwork(s string) (uint32, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet":
		return neo.MainNetMagic, nil
	case "testnet":
		return neo.TestNetMagic, nil
	}
	magic, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: network %q is not mainnet, testnet or a magic number", ErrInvalidConfig, s)
	}
	return uint32(magic), nil
}

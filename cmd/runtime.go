package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anchorageoss/neo-ledgerclient/config"
	"github.com/anchorageoss/neo-ledgerclient/keys"
	"github.com/anchorageoss/neo-ledgerclient/ledger"
	"github.com/anchorageoss/neo-ledgerclient/ledger/emulator"
	"github.com/anchorageoss/neo-ledgerclient/ledger/transport/hid"
	"github.com/anchorageoss/neo-ledgerclient/ledger/transport/speculos"
)

// buttonDelay gives Speculos time to draw the first review screen
const buttonDelay = 500 * time.Millisecond

// overridableKeys are the config keys that can also be given as flags
var overridableKeys = []string{
	config.TransportKey,
	config.SpeculosAddrKey,
	config.SpeculosAPIKey,
	config.EmulatorKeyKey,
	config.EmulatorContractScriptsKey,
	config.PathKey,
	config.NetworkKey,
	config.RPCEndpointKey,
	config.LogLevelKey,
	config.RecordDirKey,
	config.TimeoutKey,
}

// GlobalFlags returns the flags shared by all commands
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Config file (yaml, toml or json)",
		},
		&cli.StringFlag{
			Name:  config.TransportKey,
			Usage: "Device transport: hid, speculos or emulator",
		},
		&cli.StringFlag{
			Name:  config.SpeculosAddrKey,
			Usage: "Speculos APDU address",
		},
		&cli.StringFlag{
			Name:  config.SpeculosAPIKey,
			Usage: "Speculos REST API URL used to press buttons",
		},
		&cli.StringFlag{
			Name:  config.EmulatorKeyKey,
			Usage: "Master key file for the emulator transport",
		},
		&cli.StringFlag{
			Name:  config.EmulatorContractScriptsKey,
			Usage: "Let the emulator sign contract scripts, not only NEO/GAS transfers and votes (true or false)",
		},
		&cli.StringFlag{
			Name:  config.PathKey,
			Usage: "BIP-44 derivation path",
		},
		&cli.StringFlag{
			Name:  config.NetworkKey,
			Usage: "Network: mainnet, testnet or a magic number",
		},
		&cli.StringFlag{
			Name:  config.RPCEndpointKey,
			Usage: "NEO node JSON-RPC endpoint",
		},
		&cli.StringFlag{
			Name:  config.LogLevelKey,
			Usage: "Log level: debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  config.RecordDirKey,
			Usage: "Directory signing records are written to",
		},
		&cli.StringFlag{
			Name:  config.TimeoutKey,
			Usage: "Timeout for device operations, e.g. 90s",
		},
	}
}

// runtime carries what every command needs
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRuntime(cmd *cli.Command) (*runtime, error) {
	overrides := make(map[string]any)
	for _, key := range overridableKeys {
		if cmd.IsSet(key) {
			overrides[key] = cmd.String(key)
		}
	}
	cfg, err := config.Load(cmd.String("config"), overrides)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// withTimeout bounds a device operation
func (r *runtime) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

// openDevice connects the configured transport
func (r *runtime) openDevice(ctx context.Context) (*ledger.Device, error) {
	opts := []ledger.Option{ledger.WithLogger(r.logger)}
	switch r.cfg.Transport {
	case config.TransportEmulator:
		emuOpts := []emulator.Option{emulator.WithLogger(r.logger)}
		if r.cfg.EmulatorContractScripts {
			emuOpts = append(emuOpts, emulator.WithContractScripts())
		}
		emu, err := emulator.NewFromProvider(ctx, &keys.FileKeyProvider{Path: r.cfg.EmulatorKey}, emuOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to start emulator: %w", err)
		}
		return ledger.New(emu, opts...), nil
	case config.TransportSpeculos:
		tr, err := speculos.Dial(ctx, r.cfg.SpeculosAddr, r.logger)
		if err != nil {
			return nil, err
		}
		if r.cfg.SpeculosScreens > 0 {
			opts = append(opts, ledger.WithConfirmer(&speculos.ButtonConfirmer{
				BaseURL: r.cfg.SpeculosAPI,
				Screens: r.cfg.SpeculosScreens,
				Delay:   buttonDelay,
			}))
		}
		return ledger.New(tr, opts...), nil
	default:
		tr, err := hid.Open(r.cfg.HIDIndex, r.logger)
		if err != nil {
			return nil, err
		}
		return ledger.New(tr, opts...), nil
	}
}

func (r *runtime) close() {
	_ = r.logger.Sync()
}

// Commands returns all top-level commands
func Commands() []*cli.Command {
	return []*cli.Command{
		AppInfoCommand(),
		PubKeyCommand(),
		DescribeCommand(),
		SignCommand(),
		VerifyCommand(),
		RecordCommand(),
	}
}

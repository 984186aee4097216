package cmd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/neo-ledgerclient/crypto"
	"github.com/anchorageoss/neo-ledgerclient/verify"
)

// AppInfoCommand creates the app-info command
func AppInfoCommand() *cli.Command {
	return &cli.Command{
		Name:   "app-info",
		Usage:  "Show the name and version of the app open on the device",
		Action: runAppInfoCommand,
	}
}

type appInfoOutput struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func runAppInfoCommand(ctx context.Context, cmd *cli.Command) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := rt.withTimeout(ctx)
	defer cancel()
	dev, err := rt.openDevice(ctx)
	if err != nil {
		return err
	}
	defer dev.Close()

	name, err := dev.GetAppName(ctx)
	if err != nil {
		return fmt.Errorf("failed to get app name: %w", err)
	}
	version, err := dev.GetVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get app version: %w", err)
	}
	return writeJSON(cmd, appInfoOutput{Name: name, Version: version.String()})
}

// PubKeyCommand creates the pubkey command
func PubKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "pubkey",
		Usage: "Fetch the public key and address for the derivation path",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "display",
				Usage: "Show the address on the device and wait for approval",
			},
		},
		Action: runPubKeyCommand,
	}
}

type pubKeyOutput struct {
	Path                string `json:"path"`
	PublicKey           string `json:"publicKey"`
	CompressedPublicKey string `json:"compressedPublicKey"`
	ScriptHash          string `json:"scriptHash"`
	Address             string `json:"address"`
}

func runPubKeyCommand(ctx context.Context, cmd *cli.Command) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := rt.withTimeout(ctx)
	defer cancel()
	dev, err := rt.openDevice(ctx)
	if err != nil {
		return err
	}
	defer dev.Close()

	raw, err := dev.GetPublicKey(ctx, rt.cfg.Path, cmd.Bool("display"))
	if err != nil {
		return fmt.Errorf("failed to get public key: %w", err)
	}
	pub, err := crypto.ParsePublicKey(raw)
	if err != nil {
		return err
	}
	address, hash := verify.Account(pub)
	return writeJSON(cmd, pubKeyOutput{
		Path:                rt.cfg.Path.String(),
		PublicKey:           hex.EncodeToString(raw),
		CompressedPublicKey: hex.EncodeToString(crypto.CompressPublicKey(pub)),
		ScriptHash:          "0x" + hash.StringLE(),
		Address:             address,
	})
}

// writeJSON prints v to the command's output writer
func writeJSON(cmd *cli.Command, v any) error {
	jsonOutput, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, string(jsonOutput))
	return err
}

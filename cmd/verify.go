package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/neo-ledgerclient/crypto"
	"github.com/anchorageoss/neo-ledgerclient/verify"
)

// VerifyCommand creates the verify command
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Verify a DER signature over a transaction without a device",
		Flags: append(transactionFlags(),
			&cli.StringFlag{
				Name:     "public-key",
				Usage:    "Public key (hex, 33 or 65 bytes)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "signature",
				Usage:    "DER signature (hex)",
				Required: true,
			},
		),
		Action: runVerifyCommand,
	}
}

type verifyOutput struct {
	Network string `json:"network"`
	Address string `json:"address"`
	Valid   bool   `json:"valid"`
}

func decodeHexFlag(cmd *cli.Command, name string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(cmd.String(name)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode --%s: %w", name, err)
	}
	return b, nil
}

func runVerifyCommand(ctx context.Context, cmd *cli.Command) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	tx, err := readTransaction(cmd)
	if err != nil {
		return err
	}
	pub, err := decodeHexFlag(cmd, "public-key")
	if err != nil {
		return err
	}
	sig, err := decodeHexFlag(cmd, "signature")
	if err != nil {
		return err
	}

	out := verifyOutput{Network: verify.NetworkName(rt.cfg.NetworkMagic)}
	if key, err := crypto.ParsePublicKey(pub); err == nil {
		out.Address, _ = verify.Account(key)
	}
	err = verify.VerifyOffline(pub, tx, rt.cfg.NetworkMagic, sig)
	switch {
	case err == nil:
		out.Valid = true
	case errors.Is(err, verify.ErrVerificationFailed):
	default:
		return err
	}
	if err := writeJSON(cmd, out); err != nil {
		return err
	}
	if !out.Valid {
		return cli.Exit("signature is not valid", 1)
	}
	return nil
}

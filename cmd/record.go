package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/neo-ledgerclient/crypto"
	"github.com/anchorageoss/neo-ledgerclient/neo"
	"github.com/anchorageoss/neo-ledgerclient/record"
	"github.com/anchorageoss/neo-ledgerclient/verify"
)

// RecordCommand creates the record command and its subcommands
func RecordCommand() *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Inspect and re-verify signing records",
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Show the contents of a signing record",
				ArgsUsage: "<file>",
				Action:    runRecordInspectCommand,
			},
			{
				Name:      "verify",
				Usage:     "Re-verify the signature stored in a signing record",
				ArgsUsage: "<file>",
				Action:    runRecordVerifyCommand,
			},
		},
	}
}

type recordOutput struct {
	Digest     string `json:"digest"`
	Path       string `json:"path"`
	Network    string `json:"network"`
	Address    string `json:"address,omitempty"`
	PublicKey  string `json:"publicKey"`
	TxHash     string `json:"txHash,omitempty"`
	UnsignedTx string `json:"unsignedTx"`
	Signature  string `json:"signature"`
	Created    string `json:"created"`
}

func loadRecordArg(cmd *cli.Command) (*record.Record, error) {
	if cmd.Args().Len() != 1 {
		return nil, errors.New("expected exactly one record file")
	}
	return record.Load(cmd.Args().First())
}

func runRecordInspectCommand(ctx context.Context, cmd *cli.Command) error {
	rec, err := loadRecordArg(cmd)
	if err != nil {
		return err
	}
	digest, err := rec.Digest()
	if err != nil {
		return err
	}
	out := recordOutput{
		Digest:     digest,
		Path:       rec.DerivationPath().String(),
		Network:    verify.NetworkName(rec.NetworkMagic),
		PublicKey:  hex.EncodeToString(rec.PublicKey),
		UnsignedTx: hex.EncodeToString(rec.UnsignedTx),
		Signature:  hex.EncodeToString(rec.Signature),
		Created:    rec.CreatedAt().Format(time.RFC3339),
	}
	if tx, err := rec.Transaction(); err == nil {
		if hash, err := neo.Hash(tx); err == nil {
			out.TxHash = neo.HashString(hash)
		}
	}
	if address, err := recordAddress(rec); err == nil {
		out.Address = address
	}
	return writeJSON(cmd, out)
}

func recordAddress(rec *record.Record) (string, error) {
	pub, err := crypto.ParsePublicKey(rec.PublicKey)
	if err != nil {
		return "", err
	}
	address, _ := verify.Account(pub)
	return address, nil
}

func runRecordVerifyCommand(ctx context.Context, cmd *cli.Command) error {
	rec, err := loadRecordArg(cmd)
	if err != nil {
		return err
	}
	if err := rec.Verify(); err != nil {
		return fmt.Errorf("record does not verify: %w", err)
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, "record signature is valid")
	return err
}

package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/anchorageoss/neo-ledgerclient/api"
	"github.com/anchorageoss/neo-ledgerclient/neo"
	"github.com/anchorageoss/neo-ledgerclient/record"
	"github.com/anchorageoss/neo-ledgerclient/verify"
)

func transactionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "tx",
			Usage: "Transaction JSON file",
		},
		&cli.StringFlag{
			Name:  "tx-hex",
			Usage: "Unsigned transaction bytes (hex)",
		},
	}
}

// readTransaction loads the transaction given by --tx or --tx-hex
func readTransaction(cmd *cli.Command) (*transaction.Transaction, error) {
	file, rawHex := cmd.String("tx"), cmd.String("tx-hex")
	switch {
	case file != "" && rawHex != "":
		return nil, errors.New("--tx and --tx-hex are mutually exclusive")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read transaction: %w", err)
		}
		tx, err := neo.UnmarshalTransaction(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction JSON: %w", err)
		}
		return tx, nil
	case rawHex != "":
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(rawHex), "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to decode transaction hex: %w", err)
		}
		return neo.DecodeUnsigned(b)
	default:
		return nil, errors.New("one of --tx or --tx-hex is required")
	}
}

// DescribeCommand creates the describe command
func DescribeCommand() *cli.Command {
	return &cli.Command{
		Name:   "describe",
		Usage:  "Show a transaction the way the device will present it",
		Flags:  transactionFlags(),
		Action: runDescribeCommand,
	}
}

func runDescribeCommand(ctx context.Context, cmd *cli.Command) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	tx, err := readTransaction(cmd)
	if err != nil {
		return err
	}
	if err := neo.Validate(tx); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	unsigned, err := neo.SerializeUnsigned(tx)
	if err != nil {
		return err
	}
	hash, err := neo.Hash(tx)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprint(w, verify.NewFormatter().FormatTransaction(tx, rt.cfg.NetworkMagic))
	fmt.Fprintf(w, "Hash: %s\n", hash.StringLE())
	fmt.Fprintf(w, "Unsigned: %s\n", hex.EncodeToString(unsigned))
	fmt.Fprintf(w, "Signed message: %s\n", hex.EncodeToString(neo.SignedMessage(rt.cfg.NetworkMagic, unsigned)))
	return nil
}

// SignCommand creates the sign command
func SignCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Sign a transaction on the device and verify the signature",
		Flags: append(transactionFlags(),
			&cli.BoolFlag{
				Name:  "record",
				Usage: "Save a signing record to the record directory",
			},
			&cli.BoolFlag{
				Name:  "broadcast",
				Usage: "Relay the signed transaction through the RPC endpoint",
			},
		),
		Action: runSignCommand,
	}
}

type signOutput struct {
	Path       string `json:"path"`
	Network    string `json:"network"`
	Address    string `json:"address"`
	PublicKey  string `json:"publicKey"`
	TxHash     string `json:"txHash"`
	UnsignedTx string `json:"unsignedTx"`
	Message    string `json:"message"`
	Signature  string `json:"signature"`
	Valid      bool   `json:"valid"`
	Record     string `json:"record,omitempty"`
	Relayed    string `json:"relayed,omitempty"`
}

func runSignCommand(ctx context.Context, cmd *cli.Command) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	tx, err := readTransaction(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := rt.withTimeout(ctx)
	defer cancel()

	var client *api.Client
	if rt.cfg.RPCEndpoint != "" {
		client = api.NewClient(rt.cfg.RPCEndpoint, &http.Client{Timeout: 30 * time.Second})
		if err := prepareFromNode(ctx, rt, client, tx); err != nil {
			return err
		}
	} else if cmd.Bool("broadcast") {
		return errors.New("--broadcast needs an rpc-endpoint")
	}
	if err := neo.Validate(tx); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	fmt.Fprint(cmd.Root().ErrWriter, verify.NewFormatter().FormatTransaction(tx, rt.cfg.NetworkMagic))

	dev, err := rt.openDevice(ctx)
	if err != nil {
		return err
	}
	defer dev.Close()

	result, err := verify.NewService(dev, rt.logger).SignAndVerify(ctx, &verify.Request{
		Path:         rt.cfg.Path,
		NetworkMagic: rt.cfg.NetworkMagic,
		Transaction:  tx,
	})
	if err != nil {
		return err
	}

	out := signOutput{
		Path:       rt.cfg.Path.String(),
		Network:    verify.NetworkName(rt.cfg.NetworkMagic),
		Address:    result.Address,
		PublicKey:  hex.EncodeToString(result.PublicKey),
		TxHash:     neo.HashString(result.TxHash),
		UnsignedTx: hex.EncodeToString(result.UnsignedTx),
		Message:    hex.EncodeToString(result.Message),
		Signature:  hex.EncodeToString(result.Signature),
		Valid:      result.Valid,
	}

	if cmd.Bool("record") {
		rec := record.New(rt.cfg.Path, rt.cfg.NetworkMagic, result, time.Now())
		file := filepath.Join(rt.cfg.RecordDir, result.TxHash.StringLE()+record.FileExtension)
		if err := rec.Save(file); err != nil {
			return err
		}
		rt.logger.Info("saved signing record", zap.String("file", file))
		out.Record = file
	}

	if cmd.Bool("broadcast") {
		signed, err := verify.SignedTransaction(tx, result)
		if err != nil {
			return err
		}
		relay, err := client.SendRawTransaction(ctx, signed)
		if err != nil {
			return fmt.Errorf("failed to relay transaction: %w", err)
		}
		out.Relayed = relay.Hash
	}
	return writeJSON(cmd, out)
}

// prepareFromNode checks the network against the node and fills in
// ValidUntilBlock when the transaction leaves it unset
func prepareFromNode(ctx context.Context, rt *runtime, client *api.Client, tx *transaction.Transaction) error {
	magic, err := client.GetNetworkMagic(ctx)
	if err != nil {
		return fmt.Errorf("failed to query node: %w", err)
	}
	if magic != rt.cfg.NetworkMagic {
		return fmt.Errorf("node runs network %s, configured network is %s", verify.NetworkName(magic), verify.NetworkName(rt.cfg.NetworkMagic))
	}
	if tx.ValidUntilBlock == 0 {
		if tx.ValidUntilBlock, err = client.ValidUntilBlock(ctx); err != nil {
			return fmt.Errorf("failed to compute valid until block: %w", err)
		}
		rt.logger.Info("set valid until block from node", zap.Uint32("height", tx.ValidUntilBlock))
	}
	return nil
}

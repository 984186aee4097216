// Package verify runs the NEO N3 sign-and-verify flow against a Ledger.
//
// The flow checks that:
//   - the device returns a valid P-256 public key for the derivation path
//   - the unsigned transaction serializes deterministically
//   - the DER signature the device returns verifies over
//     u32le(magic) || SHA256(unsigned transaction)
//
// # Verification Flow
//
// Call SignAndVerify with the transaction and path:
//
//	result, err := verify.NewService(device, logger).SignAndVerify(ctx, &verify.Request{
//		Path:         ledger.MustParsePath(ledger.DefaultPath),
//		NetworkMagic: neo.MainNetMagic,
//		Transaction:  tx,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Address, hex.EncodeToString(result.Signature))
//
// # Offline Checks
//
// VerifyOffline repeats the last step for a signature captured earlier,
// without a device.
package verify

import (
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/anchorageoss/neo-ledgerclient/ledger"
)

// Request describes one signing round trip
type Request struct {
	Path         ledger.Path
	NetworkMagic uint32
	Transaction  *transaction.Transaction
	// DisplayKey asks the device to show the address before returning it
	DisplayKey bool
}

// Result contains everything produced by a successful round trip
type Result struct {
	// PublicKey is the uncompressed SEC1 key returned by the device
	PublicKey []byte
	// Address is the N3 address of the key's single-signature account
	Address    string
	ScriptHash util.Uint160
	UnsignedTx []byte
	// Message is the exact byte string the device signed
	Message   []byte
	Signature []byte
	TxHash    util.Uint256
	Valid     bool
}

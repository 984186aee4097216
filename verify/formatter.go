package verify

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"

	"github.com/anchorageoss/neo-ledgerclient/neo"
)

// GASDecimals is the precision fees are shown with
const GASDecimals = 8

// Formatter renders transactions the way the device review screens do
type Formatter struct{}

// NewFormatter creates a new formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// NetworkName names the well known networks and falls back to the magic
// number for private ones
func NetworkName(magic uint32) string {
	switch magic {
	case neo.MainNetMagic:
		return "MainNet"
	case neo.TestNetMagic:
		return "TestNet"
	default:
		return strconv.FormatUint(uint64(magic), 10)
	}
}

// FormatGAS renders a fee in fractions of GAS as "GAS 0.00000456"
func FormatGAS(fractions int64) string {
	if fractions < 0 {
		return "GAS -" + formatFixed(-uint64(fractions), GASDecimals)
	}
	return "GAS " + formatFixed(uint64(fractions), GASDecimals)
}

// formatFixed renders u with the given number of decimals
func formatFixed(u uint64, decimals int) string {
	digits := strconv.FormatUint(u, 10)
	if decimals == 0 {
		return digits
	}
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}
	shift := len(digits) - decimals
	return digits[:shift] + "." + digits[shift:]
}

// totalFees adds the fees as uint64, the sum of two valid fees can exceed
// int64
func totalFees(tx *transaction.Transaction) string {
	if tx.SystemFee < 0 || tx.NetworkFee < 0 {
		return FormatGAS(tx.SystemFee + tx.NetworkFee)
	}
	return "GAS " + formatFixed(uint64(tx.SystemFee)+uint64(tx.NetworkFee), GASDecimals)
}

// scriptLines describes a recognized script the way the device does before
// the network and fee screens
func scriptLines(script []byte) []string {
	info := neo.ClassifyScript(script)
	switch info.Kind {
	case neo.ScriptTransfer:
		return []string{
			"Object: System asset transfer",
			"Destination addr: " + address.Uint160ToString(info.To),
			"Token amount: " + info.TokenSymbol() + " " + formatFixed(uint64(info.Amount), info.TokenDecimals()),
		}
	case neo.ScriptVote:
		if info.Candidate == nil {
			return []string{"Object: Retracting vote"}
		}
		return []string{
			"Object: Casting vote",
			"Casting vote for: " + hex.EncodeToString(info.Candidate.Bytes()),
		}
	}
	return nil
}

// FormatTransaction returns the review screens for tx, one "Title: value"
// line each, in the order the device shows them
func (f *Formatter) FormatTransaction(tx *transaction.Transaction, magic uint32) string {
	var sb strings.Builder
	for _, line := range scriptLines(tx.Script) {
		sb.WriteString(line + "\n")
	}
	sb.WriteString(fmt.Sprintf("Target network: %s\n", NetworkName(magic)))
	sb.WriteString(fmt.Sprintf("System fee: %s\n", FormatGAS(tx.SystemFee)))
	sb.WriteString(fmt.Sprintf("Network fee: %s\n", FormatGAS(tx.NetworkFee)))
	sb.WriteString(fmt.Sprintf("Total fees: %s\n", totalFees(tx)))
	sb.WriteString(fmt.Sprintf("Valid until height: %d\n", tx.ValidUntilBlock))

	for i, s := range tx.Signers {
		sb.WriteString(fmt.Sprintf("Signer: %d of %d\n", i+1, len(tx.Signers)))
		sb.WriteString(fmt.Sprintf("Account: %s\n", address.Uint160ToString(s.Account)))
		sb.WriteString(fmt.Sprintf("Scope: %s\n", neo.ScopeDisplay(s.Scopes)))
		for j, c := range s.AllowedContracts {
			sb.WriteString(fmt.Sprintf("Contract %d of %d: %s\n", j+1, len(s.AllowedContracts), c.StringLE()))
		}
		for j, g := range s.AllowedGroups {
			sb.WriteString(fmt.Sprintf("Group %d of %d: %s\n", j+1, len(s.AllowedGroups), hex.EncodeToString(g.Bytes())))
		}
	}
	return sb.String()
}

// FormatResult summarizes a sign-and-verify round trip
func (f *Formatter) FormatResult(result *Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Address: %s\n", result.Address))
	sb.WriteString(fmt.Sprintf("Public key: %s\n", hex.EncodeToString(result.PublicKey)))
	sb.WriteString(fmt.Sprintf("Transaction hash: %s\n", result.TxHash.StringLE()))
	sb.WriteString(fmt.Sprintf("Unsigned transaction: %s\n", hex.EncodeToString(result.UnsignedTx)))
	sb.WriteString(fmt.Sprintf("Signed message: %s\n", hex.EncodeToString(result.Message)))
	sb.WriteString(fmt.Sprintf("Signature: %s\n", hex.EncodeToString(result.Signature)))
	if result.Valid {
		sb.WriteString("Signature valid: true\n")
	} else {
		sb.WriteString("Signature valid: false\n")
	}
	return sb.String()
}

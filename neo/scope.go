package neo

import (
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
)

// ScopeDisplay renders a witness scope the way the Ledger app shows it on
// the signer review screen.
func ScopeDisplay(s transaction.WitnessScope) string {
	switch s {
	case transaction.None:
		return "None"
	case transaction.Global:
		return "Global"
	}
	var parts []string
	if s&transaction.CalledByEntry != 0 {
		parts = append(parts, "By Entry")
	}
	if s&transaction.CustomContracts != 0 {
		parts = append(parts, "Contracts")
	}
	if s&transaction.CustomGroups != 0 {
		parts = append(parts, "Groups")
	}
	return strings.Join(parts, ",")
}

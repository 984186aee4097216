package neo

import (
	"errors"
	"fmt"
	"math"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

var (
	ErrInvalidVersion  = errors.New("unsupported transaction version")
	ErrNoSigners       = errors.New("transaction has no signers")
	ErrEmptyScript     = errors.New("transaction script is empty")
	ErrNegativeFee     = errors.New("transaction fee is negative")
	ErrFeeOverflow     = errors.New("system and network fee sum overflows")
	ErrTooManyAttrs    = errors.New("too many signers and attributes")
	ErrDuplicateSigner = errors.New("duplicate signer account")
	ErrDuplicateAttr   = errors.New("duplicate attribute")
	ErrWitnessCount    = errors.New("witness count does not match signer count")
	ErrRulesScope      = errors.New("witness rules scope is not supported")
)

const validScopes = transaction.CalledByEntry | transaction.CustomContracts |
	transaction.CustomGroups | transaction.Rules | transaction.Global

// Validate checks the protocol constraints a node and the Ledger app
// enforce on an unsigned transaction.
func Validate(tx *transaction.Transaction) error {
	if tx.Version != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, tx.Version)
	}
	if len(tx.Signers) == 0 {
		return ErrNoSigners
	}
	if len(tx.Signers)+len(tx.Attributes) > MaxAttributes {
		return fmt.Errorf("%w: %d", ErrTooManyAttrs, len(tx.Signers)+len(tx.Attributes))
	}
	if tx.SystemFee < 0 || tx.NetworkFee < 0 {
		return ErrNegativeFee
	}
	if tx.SystemFee > math.MaxInt64-tx.NetworkFee {
		return ErrFeeOverflow
	}
	if len(tx.Script) == 0 {
		return ErrEmptyScript
	}
	if len(tx.Script) > MaxScriptLength {
		return fmt.Errorf("script of %d bytes exceeds %d", len(tx.Script), MaxScriptLength)
	}

	seen := make(map[util.Uint160]struct{}, len(tx.Signers))
	for i := range tx.Signers {
		s := &tx.Signers[i]
		if _, ok := seen[s.Account]; ok {
			return fmt.Errorf("%w: 0x%s", ErrDuplicateSigner, s.Account.StringLE())
		}
		seen[s.Account] = struct{}{}
		if err := checkSigner(s); err != nil {
			return fmt.Errorf("signer %d: %w", i, err)
		}
	}

	attrs := make(map[transaction.AttrType]struct{}, len(tx.Attributes))
	for i := range tx.Attributes {
		a := &tx.Attributes[i]
		if err := checkAttribute(a); err != nil {
			return fmt.Errorf("attribute %d: %w", i, err)
		}
		// Conflicts may repeat, every other attribute type may not
		if a.Type == transaction.ConflictsT {
			continue
		}
		if _, ok := attrs[a.Type]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateAttr, attrName(a.Type))
		}
		attrs[a.Type] = struct{}{}
	}

	if len(tx.Scripts) != 0 && len(tx.Scripts) != len(tx.Signers) {
		return fmt.Errorf("%w: %d witnesses, %d signers", ErrWitnessCount, len(tx.Scripts), len(tx.Signers))
	}
	b, err := Serialize(tx)
	if err != nil {
		return err
	}
	if len(b) > MaxTransactionSize {
		return fmt.Errorf("%w: %d bytes", ErrTransactionLimit, len(b))
	}
	return nil
}

// checkEncodable rejects what neo-go would panic on or what the device
// cannot parse, before any bytes are written.
func checkEncodable(tx *transaction.Transaction) error {
	for i := range tx.Signers {
		s := &tx.Signers[i]
		if s.Scopes&transaction.Rules != 0 || len(s.Rules) != 0 {
			return fmt.Errorf("signer %d: %w", i, ErrRulesScope)
		}
		for j, g := range s.AllowedGroups {
			if g == nil {
				return fmt.Errorf("signer %d: allowed group %d is nil", i, j)
			}
		}
	}
	for i := range tx.Attributes {
		if err := checkAttribute(&tx.Attributes[i]); err != nil {
			return fmt.Errorf("attribute %d: %w", i, err)
		}
	}
	return nil
}

func checkSigner(s *transaction.Signer) error {
	if s.Scopes&transaction.Global != 0 && s.Scopes != transaction.Global {
		return errors.New("global scope can not be combined with other scopes")
	}
	if s.Scopes&transaction.Rules != 0 {
		return ErrRulesScope
	}
	if s.Scopes&^validScopes != 0 {
		return fmt.Errorf("invalid witness scope 0x%02x", byte(s.Scopes))
	}
	if len(s.AllowedContracts) > MaxSubitems {
		return fmt.Errorf("too many allowed contracts: %d", len(s.AllowedContracts))
	}
	if len(s.AllowedGroups) > MaxSubitems {
		return fmt.Errorf("too many allowed groups: %d", len(s.AllowedGroups))
	}
	if s.Scopes&transaction.CustomContracts == 0 && len(s.AllowedContracts) > 0 {
		return errors.New("allowed contracts set without CustomContracts scope")
	}
	if s.Scopes&transaction.CustomGroups == 0 && len(s.AllowedGroups) > 0 {
		return errors.New("allowed groups set without CustomGroups scope")
	}
	return nil
}

var attrNames = map[transaction.AttrType]string{
	transaction.HighPriority:    "HighPriority",
	transaction.OracleResponseT: "OracleResponse",
	transaction.NotValidBeforeT: "NotValidBefore",
	transaction.ConflictsT:      "Conflicts",
	transaction.NotaryAssistedT: "NotaryAssisted",
}

func attrName(t transaction.AttrType) string {
	if name, ok := attrNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(t))
}

// checkAttribute makes sure Value matches Type. A nil pointer of the right
// type is rejected as well: neo-go dereferences it while encoding.
func checkAttribute(a *transaction.Attribute) error {
	var ok bool
	switch a.Type {
	case transaction.HighPriority:
		if a.Value != nil {
			return errors.New("HighPriority attribute carries no value")
		}
		return nil
	case transaction.OracleResponseT:
		v, is := a.Value.(*transaction.OracleResponse)
		ok = is && v != nil
	case transaction.NotValidBeforeT:
		v, is := a.Value.(*transaction.NotValidBefore)
		ok = is && v != nil
	case transaction.ConflictsT:
		v, is := a.Value.(*transaction.Conflicts)
		ok = is && v != nil
	case transaction.NotaryAssistedT:
		v, is := a.Value.(*transaction.NotaryAssisted)
		ok = is && v != nil
	default:
		return fmt.Errorf("unsupported attribute type %s", attrName(a.Type))
	}
	if !ok {
		return fmt.Errorf("%s attribute has missing or mismatched value %T", attrName(a.Type), a.Value)
	}
	return nil
}

package neo

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
)

// transactionJSON mirrors the RPC layout without the derived hash, size and
// sender fields, so an unsigned transaction can be written by hand. Fees are
// integer strings in GAS fractions, scripts are base64.
type transactionJSON struct {
	Version         uint8                   `json:"version"`
	Nonce           uint32                  `json:"nonce"`
	SystemFee       string                  `json:"sysfee"`
	NetworkFee      string                  `json:"netfee"`
	ValidUntilBlock uint32                  `json:"validuntilblock"`
	Signers         []transaction.Signer    `json:"signers"`
	Attributes      []transaction.Attribute `json:"attributes"`
	Script          []byte                  `json:"script"`
	Witnesses       []transaction.Witness   `json:"witnesses"`
}

// inputJSON accepts fees both as strings and as bare numbers
type inputJSON struct {
	transactionJSON
	SystemFee  json.Number `json:"sysfee"`
	NetworkFee json.Number `json:"netfee"`
}

// MarshalTransaction encodes tx in the RPC layout
func MarshalTransaction(tx *transaction.Transaction) ([]byte, error) {
	aux := transactionJSON{
		Version:         tx.Version,
		Nonce:           tx.Nonce,
		SystemFee:       strconv.FormatInt(tx.SystemFee, 10),
		NetworkFee:      strconv.FormatInt(tx.NetworkFee, 10),
		ValidUntilBlock: tx.ValidUntilBlock,
		Signers:         tx.Signers,
		Attributes:      tx.Attributes,
		Script:          tx.Script,
		Witnesses:       tx.Scripts,
	}
	if aux.Signers == nil {
		aux.Signers = []transaction.Signer{}
	}
	if aux.Attributes == nil {
		aux.Attributes = []transaction.Attribute{}
	}
	if aux.Witnesses == nil {
		aux.Witnesses = []transaction.Witness{}
	}
	return json.Marshal(aux)
}

// UnmarshalTransaction decodes the layout written by MarshalTransaction
func UnmarshalTransaction(data []byte) (*transaction.Transaction, error) {
	var aux inputJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil, err
	}
	sysFee, err := parseFee(aux.SystemFee)
	if err != nil {
		return nil, fmt.Errorf("sysfee: %w", err)
	}
	netFee, err := parseFee(aux.NetworkFee)
	if err != nil {
		return nil, fmt.Errorf("netfee: %w", err)
	}
	tx := &transaction.Transaction{
		Version:         aux.Version,
		Nonce:           aux.Nonce,
		SystemFee:       sysFee,
		NetworkFee:      netFee,
		ValidUntilBlock: aux.ValidUntilBlock,
		Signers:         aux.Signers,
		Attributes:      aux.Attributes,
		Script:          aux.Script,
		Scripts:         aux.Witnesses,
	}
	if tx.Attributes == nil {
		tx.Attributes = []transaction.Attribute{}
	}
	if tx.Scripts == nil {
		tx.Scripts = []transaction.Witness{}
	}
	return tx, nil
}

func parseFee(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	return n.Int64()
}

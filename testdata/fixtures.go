// Package testdata provides embedded test fixtures for use across all test packages.
package testdata

import _ "embed"

// TransactionJSON is the reference transaction: nonce 123, fees 456 and
// 789, valid until block 1, one CalledByEntry signer and script 0x0102
//
//go:embed transaction.json
var TransactionJSON []byte

// TransactionUnsignedHex is the unsigned serialization of TransactionJSON
const TransactionUnsignedHex = "007b000000c80100000000000015030000000000000100000001" +
	"54a64cac1b1073e662933ef3e30b007cd98d67d70100020102"

// EmulatorKey is the master key file the emulator tests derive from
//
//go:embed emulator.key
var EmulatorKey string

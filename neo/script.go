package neo

import (
	"crypto/elliptic"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/interop/interopnames"
	"github.com/nspcc-dev/neo-go/pkg/core/native/nativenames"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm"
	"github.com/nspcc-dev/neo-go/pkg/vm/emit"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
)

// ScriptKind is what the device recognizes a transaction script as
type ScriptKind int

const (
	// ScriptArbitrary is any script the device can not describe. The app
	// refuses it unless contract scripts are enabled in its settings.
	ScriptArbitrary ScriptKind = iota
	// ScriptTransfer is a single NEO or GAS transfer
	ScriptTransfer
	// ScriptVote casts or retracts a NEO vote
	ScriptVote
)

func (k ScriptKind) String() string {
	switch k {
	case ScriptTransfer:
		return "transfer"
	case ScriptVote:
		return "vote"
	default:
		return "arbitrary"
	}
}

// Native token contracts
var (
	NeoToken = state.CreateNativeContractHash(nativenames.Neo)
	GasToken = state.CreateNativeContractHash(nativenames.Gas)
)

const (
	neoDecimals = 0
	gasDecimals = 8
)

// ScriptInfo describes a recognized script. Fields that do not apply to
// Kind are zero.
type ScriptInfo struct {
	Kind ScriptKind

	// Transfer
	Token  util.Uint160
	From   util.Uint160
	To     util.Uint160
	Amount int64

	// Vote. A nil Candidate retracts the vote of Account.
	Account   util.Uint160
	Candidate *keys.PublicKey
}

// TokenSymbol is "NEO" or "GAS" for transfers
func (s ScriptInfo) TokenSymbol() string {
	if s.Token == NeoToken {
		return "NEO"
	}
	return "GAS"
}

// TokenDecimals is the precision the transferred amount is shown with
func (s ScriptInfo) TokenDecimals() int {
	if s.Token == NeoToken {
		return neoDecimals
	}
	return gasDecimals
}

type instr struct {
	op    opcode.Opcode
	param []byte
}

var errNotRecognized = errors.New("script not recognized")

// ClassifyScript recognizes the two script shapes the device can describe
// on screen: a native NEO or GAS transfer and a NEO vote. Anything else,
// including scripts that fail to parse, is ScriptArbitrary.
func ClassifyScript(script []byte) ScriptInfo {
	ins, err := disassemble(script)
	if err != nil {
		return ScriptInfo{}
	}
	if n := len(ins); n > 0 && ins[n-1].op == opcode.ASSERT {
		ins = ins[:n-1]
	}
	contract, method, args, err := matchContractCall(ins)
	if err != nil {
		return ScriptInfo{}
	}
	switch {
	case method == "transfer" && (contract == NeoToken || contract == GasToken):
		if info, err := matchTransfer(args); err == nil {
			info.Token = contract
			return info
		}
	case method == "vote" && contract == NeoToken:
		if info, err := matchVote(args); err == nil {
			return info
		}
	}
	return ScriptInfo{}
}

func disassemble(script []byte) ([]instr, error) {
	ctx := vm.NewContext(script)
	var ins []instr
	for ctx.NextIP() < len(script) {
		op, param, err := ctx.Next()
		if err != nil {
			return nil, err
		}
		ins = append(ins, instr{op: op, param: param})
	}
	return ins, nil
}

// matchContractCall matches the tail emitted by emit.AppCall:
// PUSHn PACK PUSH15 PUSHDATA1 method PUSHDATA1 hash SYSCALL System.Contract.Call.
// The returned arguments are in push order, i.e. last argument first.
func matchContractCall(ins []instr) (util.Uint160, string, []instr, error) {
	n := len(ins)
	if n < 6 {
		return util.Uint160{}, "", nil, errNotRecognized
	}
	call, hash, method, flags, pack, count := ins[n-1], ins[n-2], ins[n-3], ins[n-4], ins[n-5], ins[n-6]
	if call.op != opcode.SYSCALL || len(call.param) != 4 ||
		binary.LittleEndian.Uint32(call.param) != interopnames.ToID([]byte(interopnames.SystemContractCall)) {
		return util.Uint160{}, "", nil, errNotRecognized
	}
	if hash.op != opcode.PUSHDATA1 || len(hash.param) != util.Uint160Size {
		return util.Uint160{}, "", nil, errNotRecognized
	}
	if method.op != opcode.PUSHDATA1 {
		return util.Uint160{}, "", nil, errNotRecognized
	}
	if f, ok := smallInt(flags); !ok || f != int64(callflag.All) {
		return util.Uint160{}, "", nil, errNotRecognized
	}
	if pack.op != opcode.PACK {
		return util.Uint160{}, "", nil, errNotRecognized
	}
	argc, ok := smallInt(count)
	if !ok || argc != int64(n-6) {
		return util.Uint160{}, "", nil, errNotRecognized
	}
	contract, err := util.Uint160DecodeBytesBE(hash.param)
	if err != nil {
		return util.Uint160{}, "", nil, err
	}
	return contract, string(method.param), ins[:n-6], nil
}

// transfer(from, to, amount, data) with data = null
func matchTransfer(args []instr) (ScriptInfo, error) {
	if len(args) != 4 || args[0].op != opcode.PUSHNULL {
		return ScriptInfo{}, errNotRecognized
	}
	amount, ok := smallInt(args[1])
	if !ok || amount < 0 {
		return ScriptInfo{}, errNotRecognized
	}
	to, err := hashArg(args[2])
	if err != nil {
		return ScriptInfo{}, err
	}
	from, err := hashArg(args[3])
	if err != nil {
		return ScriptInfo{}, err
	}
	return ScriptInfo{Kind: ScriptTransfer, From: from, To: to, Amount: amount}, nil
}

// vote(account, candidate) with candidate = null to retract
func matchVote(args []instr) (ScriptInfo, error) {
	if len(args) != 2 {
		return ScriptInfo{}, errNotRecognized
	}
	account, err := hashArg(args[1])
	if err != nil {
		return ScriptInfo{}, err
	}
	info := ScriptInfo{Kind: ScriptVote, Account: account}
	switch {
	case args[0].op == opcode.PUSHNULL:
	case args[0].op == opcode.PUSHDATA1 && len(args[0].param) == 33:
		pub, err := keys.NewPublicKeyFromBytes(args[0].param, elliptic.P256())
		if err != nil {
			return ScriptInfo{}, fmt.Errorf("vote candidate: %w", err)
		}
		info.Candidate = pub
	default:
		return ScriptInfo{}, errNotRecognized
	}
	return info, nil
}

func hashArg(in instr) (util.Uint160, error) {
	if in.op != opcode.PUSHDATA1 || len(in.param) != util.Uint160Size {
		return util.Uint160{}, errNotRecognized
	}
	return util.Uint160DecodeBytesBE(in.param)
}

func smallInt(in instr) (int64, bool) {
	switch {
	case in.op >= opcode.PUSH0 && in.op <= opcode.PUSH16:
		return int64(in.op - opcode.PUSH0), true
	case in.op == opcode.PUSHM1:
		return -1, true
	case in.op >= opcode.PUSHINT8 && in.op <= opcode.PUSHINT64:
		v := bigint.FromBytes(in.param)
		if !v.IsInt64() {
			return 0, false
		}
		return v.Int64(), true
	}
	return 0, false
}

// NewTransferScript builds the script of a native token transfer
func NewTransferScript(token, from, to util.Uint160, amount int64) ([]byte, error) {
	w := io.NewBufBinWriter()
	emit.AppCall(w.BinWriter, token, "transfer", callflag.All, from, to, amount, nil)
	emit.Opcodes(w.BinWriter, opcode.ASSERT)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// NewVoteScript builds a NEO vote for candidate, or a retraction when
// candidate is nil
func NewVoteScript(account util.Uint160, candidate *keys.PublicKey) ([]byte, error) {
	var arg any
	if candidate != nil {
		arg = candidate.Bytes()
	}
	w := io.NewBufBinWriter()
	emit.AppCall(w.BinWriter, NeoToken, "vote", callflag.All, account, arg)
	emit.Opcodes(w.BinWriter, opcode.ASSERT)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

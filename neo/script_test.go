package neo

import (
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/emit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeTokenHashes(t *testing.T) {
	assert.Equal(t, "ef4073a0f2b305a38ec4050e4d3d28bc40ea63f5", NeoToken.StringLE())
	assert.Equal(t, "d2a4cff31913016155e38e474a2c06d08be276cf", GasToken.StringLE())
}

func TestClassifyTransfer(t *testing.T) {
	from := util.Uint160{1, 2, 3}
	to := util.Uint160{4, 5, 6}

	tests := []struct {
		name     string
		token    util.Uint160
		amount   int64
		symbol   string
		decimals int
	}{
		{"neo small", NeoToken, 5, "NEO", 0},
		{"neo large", NeoToken, 1_000_000, "NEO", 0},
		{"gas", GasToken, 100_000_000, "GAS", 8},
		{"gas zero", GasToken, 0, "GAS", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := NewTransferScript(tt.token, from, to, tt.amount)
			require.NoError(t, err)

			info := ClassifyScript(script)
			require.Equal(t, ScriptTransfer, info.Kind)
			assert.Equal(t, tt.token, info.Token)
			assert.Equal(t, from, info.From)
			assert.Equal(t, to, info.To)
			assert.Equal(t, tt.amount, info.Amount)
			assert.Equal(t, tt.symbol, info.TokenSymbol())
			assert.Equal(t, tt.decimals, info.TokenDecimals())
		})
	}

	t.Run("without assert", func(t *testing.T) {
		w := io.NewBufBinWriter()
		emit.AppCall(w.BinWriter, GasToken, "transfer", callflag.All, from, to, int64(42), nil)
		require.NoError(t, w.Err)

		info := ClassifyScript(w.Bytes())
		require.Equal(t, ScriptTransfer, info.Kind)
		assert.Equal(t, int64(42), info.Amount)
	})
}

func TestClassifyVote(t *testing.T) {
	account := util.Uint160{7, 7, 7}

	t.Run("cast", func(t *testing.T) {
		candidate := mustGroup(t)
		script, err := NewVoteScript(account, candidate)
		require.NoError(t, err)

		info := ClassifyScript(script)
		require.Equal(t, ScriptVote, info.Kind)
		assert.Equal(t, account, info.Account)
		require.NotNil(t, info.Candidate)
		assert.Equal(t, candidate.Bytes(), info.Candidate.Bytes())
	})

	t.Run("retract", func(t *testing.T) {
		script, err := NewVoteScript(account, nil)
		require.NoError(t, err)

		info := ClassifyScript(script)
		require.Equal(t, ScriptVote, info.Kind)
		assert.Equal(t, account, info.Account)
		assert.Nil(t, info.Candidate)
	})
}

func TestClassifyArbitrary(t *testing.T) {
	from := util.Uint160{1}
	to := util.Uint160{2}

	transfer, err := NewTransferScript(GasToken, from, to, 10)
	require.NoError(t, err)

	otherToken, err := NewTransferScript(util.Uint160{0xaa}, from, to, 10)
	require.NoError(t, err)

	voteOnGas := io.NewBufBinWriter()
	emit.AppCall(voteOnGas.BinWriter, GasToken, "vote", callflag.All, from, nil)
	require.NoError(t, voteOnGas.Err)

	balanceOf := io.NewBufBinWriter()
	emit.AppCall(balanceOf.BinWriter, NeoToken, "balanceOf", callflag.All, from)
	require.NoError(t, balanceOf.Err)

	readOnly := io.NewBufBinWriter()
	emit.AppCall(readOnly.BinWriter, NeoToken, "transfer", callflag.ReadOnly, from, to, int64(1), nil)
	require.NoError(t, readOnly.Err)

	negative := io.NewBufBinWriter()
	emit.AppCall(negative.BinWriter, NeoToken, "transfer", callflag.All, from, to, int64(-5), nil)
	require.NoError(t, negative.Err)

	tests := []struct {
		name   string
		script []byte
	}{
		{"empty", nil},
		{"opaque bytes", []byte{0x01, 0x02}},
		{"truncated transfer", transfer[:len(transfer)-3]},
		{"unknown token", otherToken},
		{"vote on gas", voteOnGas.Bytes()},
		{"other method", balanceOf.Bytes()},
		{"read only flags", readOnly.Bytes()},
		{"negative amount", negative.Bytes()},
		{"trailing instruction", append(append([]byte{}, transfer...), 0x11)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ClassifyScript(tt.script)
			assert.Equal(t, ScriptArbitrary, info.Kind)
			assert.Equal(t, "arbitrary", info.Kind.String())
		})
	}
}

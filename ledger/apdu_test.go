package ledger

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandEncode(t *testing.T) {
	require := require.New(t)

	apdu, err := Command{Ins: InsGetPublicKey, P1: P1Display, Data: []byte{1, 2}}.Encode()
	require.NoError(err)
	require.Equal([]byte{0x80, 0x04, 0x01, 0x00, 0x02, 0x01, 0x02}, apdu)

	cla, cmd, err := ParseCommand(apdu)
	require.NoError(err)
	require.Equal(CLA, cla)
	require.Equal(InsGetPublicKey, cmd.Ins)
	require.Equal(P1Display, cmd.P1)
	require.Equal([]byte{1, 2}, cmd.Data)

	_, err = Command{Data: make([]byte, MaxPayload+1)}.Encode()
	require.Error(err)

	_, _, err = ParseCommand([]byte{0x80, 0x00})
	require.Error(err)
	_, _, err = ParseCommand([]byte{0x80, 0x00, 0x00, 0x00, 0x03, 0x01})
	require.Error(err)
}

func TestSplitResponse(t *testing.T) {
	require := require.New(t)

	data, sw, err := SplitResponse([]byte{0xAA, 0x90, 0x00})
	require.NoError(err)
	require.Equal([]byte{0xAA}, data)
	require.Equal(SWOK, sw)

	_, _, err = SplitResponse([]byte{0x90})
	require.ErrorIs(err, ErrShortResponse)

	require.Equal([]byte{0x69, 0x85}, Response(nil, SWDeny))
}

func TestSignTxCommands(t *testing.T) {
	path := MustParsePath(DefaultPath)

	t.Run("small transaction", func(t *testing.T) {
		require := require.New(t)
		tx := []byte{0x01, 0x02, 0x03}
		cmds, err := SignTxCommands(path, 860833102, tx)
		require.NoError(err)
		require.Len(cmds, 3)

		require.Equal(byte(0), cmds[0].P1)
		require.Equal(P2More, cmds[0].P2)
		require.Equal(path.Bytes(), cmds[0].Data)

		require.Equal(byte(1), cmds[1].P1)
		require.Equal(P2More, cmds[1].P2)
		require.Equal("4e454f33", hex.EncodeToString(cmds[1].Data))

		require.Equal(byte(2), cmds[2].P1)
		require.Equal(P2Last, cmds[2].P2)
		require.Equal(tx, cmds[2].Data)
	})

	t.Run("chunked transaction", func(t *testing.T) {
		require := require.New(t)
		tx := bytes.Repeat([]byte{0xAB}, 2*MaxPayload+10)
		cmds, err := SignTxCommands(path, 1, tx)
		require.NoError(err)
		require.Len(cmds, 5)

		var joined []byte
		for i, cmd := range cmds[2:] {
			require.Equal(InsSignTx, cmd.Ins)
			require.Equal(byte(i+2), cmd.P1)
			require.LessOrEqual(len(cmd.Data), MaxPayload)
			joined = append(joined, cmd.Data...)
		}
		require.Equal(tx, joined)
		for _, cmd := range cmds[:4] {
			require.Equal(P2More, cmd.P2)
		}
		require.Equal(P2Last, cmds[4].P2)
	})

	t.Run("errors", func(t *testing.T) {
		require := require.New(t)
		_, err := SignTxCommands(nil, 1, []byte{1})
		require.ErrorIs(err, ErrInvalidPath)

		_, err = SignTxCommands(path, 1, nil)
		require.Error(err)

		_, err = SignTxCommands(path, 1, make([]byte, MaxChunks*MaxPayload))
		require.ErrorIs(err, ErrTransactionTooLarge)
	})
}

func TestDeviceError(t *testing.T) {
	require := require.New(t)

	var err error = &DeviceError{Ins: InsSignTx, SW: SWDeny}
	require.ErrorIs(err, ErrUserRejected)
	require.Contains(err.Error(), "0x6985")
	require.Contains(err.Error(), "rejected by user")

	err = &DeviceError{Ins: InsSignTx, SW: SWTxParsingFail}
	require.NotErrorIs(err, ErrUserRejected)
	require.Equal("unknown status", StatusText(0x1234))
	require.Contains(KnownStatusWords(), SWBadState)
}

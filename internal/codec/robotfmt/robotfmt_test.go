package robotfmt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/world"
)

func sampleRobot() *world.Robot {
	r := world.NewBlankRobot()
	r.Name = "guard"
	r.Char = 'G'
	r.X, r.Y = 3, 9
	r.Used = true
	r.Program = []byte{0xFF, 0x05, 0x01, 0x02, 0x03, 0x04, 0x05, 0x00}
	r.LocalCounters[4] = -12
	r.Stack = []int32{7, 8}
	return r
}

func TestEncodeDecode_Savegame(t *testing.T) {
	var c Codec
	r := sampleRobot()
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, r, true))
	require.Equal(t, c.EncodedSize(r, true), buf.Len())

	got, err := c.Decode(buf.Bytes(), true, world.CurrentVersion)
	require.NoError(t, err)
	require.Equal(t, r.Name, got.Name)
	require.Equal(t, r.Char, got.Char)
	require.Equal(t, r.X, got.X)
	require.Equal(t, r.Program, got.Program)
	require.Equal(t, r.LocalCounters, got.LocalCounters)
	require.Equal(t, r.Stack, got.Stack)
}

func TestLegacyWordLengthBefore284(t *testing.T) {
	var c Codec
	r := sampleRobot()
	var buf bytes.Buffer
	require.NoError(t, c.EncodeLegacy(&buf, r, false, world.V251))

	head := buf.Bytes()[:c.LegacyPartialSize(false, world.V251)]
	size, err := c.LegacySize(head, false, world.V251)
	require.NoError(t, err)
	require.Equal(t, buf.Len(), size)

	got, err := c.DecodeLegacy(buf.Bytes(), false, world.V251)
	require.NoError(t, err)
	require.Equal(t, r.Program, got.Program)
	require.Empty(t, got.Stack)
}

func TestDecodeLegacy_RejectsBadFraming(t *testing.T) {
	var c Codec
	r := sampleRobot()
	r.Program = []byte{1, 2, 3}
	var buf bytes.Buffer
	require.NoError(t, c.EncodeLegacy(&buf, r, false, world.V284))

	_, err := c.DecodeLegacy(buf.Bytes(), false, world.V284)
	require.ErrorIs(t, err, diag.ErrRobotCorrupt)
}

func TestDecode_Truncated(t *testing.T) {
	var c Codec
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, sampleRobot(), false))

	_, err := c.Decode(buf.Bytes()[:buf.Len()-1], false, world.CurrentVersion)
	require.ErrorIs(t, err, diag.ErrRobotCorrupt)

	_, err = c.LegacySize(buf.Bytes()[:10], false, world.V284)
	require.ErrorIs(t, err, diag.ErrRobotCorrupt)
}

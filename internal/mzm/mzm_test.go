package mzm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeuxkit.dev/internal/archive"
	"zeuxkit.dev/internal/codec/robotfmt"
	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/world"
)

func newWorld(width, height int) (*world.World, *world.Board) {
	w := world.New()
	b := world.NewBoard(width, height)
	w.AddBoard(b)
	w.CurrentBoardID = 0
	return w, b
}

func addRobot(t *testing.T, b *world.Board, x, y int, name string, char byte) *world.Robot {
	t.Helper()
	r := world.NewBlankRobot()
	r.Name, r.Char, r.X, r.Y, r.Used = name, char, x, y, true
	r.Program = []byte{0xFF, 0x07, 'h', 'e', 'l', 'l', 'o', 0x00}
	slot := b.FindFreeRobot()
	require.NotEqual(t, -1, slot)
	b.Robots[slot] = r
	off := b.Offset(x, y)
	b.ID[off], b.Param[off], b.Color[off] = byte(world.IDRobot), byte(slot), 0x1F
	return r
}

func robotAt(t *testing.T, b *world.Board, x, y int) *world.Robot {
	t.Helper()
	off := b.Offset(x, y)
	require.Equal(t, byte(world.IDRobot), b.ID[off], "no robot at (%d,%d)", x, y)
	r := b.Robots[b.Param[off]]
	require.NotNil(t, r)
	return r
}

func TestParseHeader(t *testing.T) {
	mzmx := append([]byte("MZMX"), 7, 3)
	mzmx = append(mzmx, make([]byte, 10)...)
	h, err := ParseHeader(mzmx)
	require.NoError(t, err)
	assert.Equal(t, Header{Variant: VariantMZMX, Width: 7, Height: 3, Version: world.V283, Storage: StorageBoard, DataStart: 16}, h)

	mzm2 := []byte("MZM2")
	mzm2 = binary.LittleEndian.AppendUint16(mzm2, 300)
	mzm2 = binary.LittleEndian.AppendUint16(mzm2, 2)
	mzm2 = binary.LittleEndian.AppendUint32(mzm2, 4000)
	mzm2 = append(mzm2, 4, 1, 1, 0xEE)
	h, err = ParseHeader(mzm2)
	require.NoError(t, err)
	assert.Equal(t, Header{
		Variant: VariantMZM2, Width: 300, Height: 2, RobotsLocation: 4000, NumRobots: 4,
		Storage: StorageLayer, SavegameMode: 1, Version: world.V283, DataStart: 16,
	}, h)

	mzm3 := append([]byte("MZM3"), mzm2[4:15]...)
	mzm3 = binary.LittleEndian.AppendUint16(mzm3, 0x0260)
	mzm3 = append(mzm3, 0, 0, 0)
	h, err = ParseHeader(mzm3)
	require.NoError(t, err)
	assert.Equal(t, VariantMZM3, h.Variant)
	assert.Equal(t, 0x0260, h.Version)
	assert.Equal(t, HeaderSize, h.DataStart)

	_, err = ParseHeader(mzmx[:15])
	assert.Error(t, err)
	_, err = ParseHeader(mzm3[:18])
	assert.Error(t, err, "MZM3 needs the full header")
	_, err = ParseHeader(append([]byte("MZM9"), make([]byte, 16)...))
	assert.Error(t, err)
}

func TestCalculateSizeMatchesWrittenBytes(t *testing.T) {
	fill := func(t *testing.T, n int) (*world.World, Rect) {
		w, b := newWorld(20, 20)
		placed := 0
		for y := 2; y < 18 && placed < n; y++ {
			for x := 2; x < 18 && placed < n; x++ {
				addRobot(t, b, x, y, "bot", 'b')
				placed++
			}
		}
		if n < world.MaxRobots {
			// Robots outside the rectangle are not saved.
			addRobot(t, b, 0, 0, "outside", 'o')
		}
		return w, Rect{X: 2, Y: 2, Width: 16, Height: 16}
	}

	for _, n := range []int{0, 1, world.MaxRobots} {
		for _, savegame := range []bool{false, true} {
			w, r := fill(t, n)
			var c Codec
			size, err := c.CalculateSize(w, r, BoardToBoard, savegame)
			require.NoError(t, err)
			data, err := c.SaveBytes(w, r, BoardToBoard, savegame)
			require.NoError(t, err, "n=%d savegame=%v", n, savegame)
			assert.Equal(t, size, len(data), "n=%d savegame=%v", n, savegame)

			h, err := ParseHeader(data)
			require.NoError(t, err)
			assert.Equal(t, n, h.NumRobots)
			if n == 0 {
				assert.Zero(t, h.RobotsLocation)
				assert.Equal(t, HeaderSize+16*16*6, len(data))
			} else {
				assert.Equal(t, HeaderSize+16*16*6, h.RobotsLocation)
			}
		}
	}
}

func TestCalculateSize_LayerModes(t *testing.T) {
	w, b := newWorld(10, 10)
	addRobot(t, b, 1, 1, "ignored", 'r')
	var c Codec
	for _, mode := range []SaveMode{OverlayToLayer, BoardToLayer, VlayerToLayer} {
		size, err := c.CalculateSize(w, Rect{X: 1, Y: 1, Width: 3, Height: 2}, mode, false)
		require.NoError(t, err)
		assert.Equal(t, HeaderSize+3*2*2, size, mode.String())
	}
	_, err := c.CalculateSize(w, Rect{X: 8, Y: 8, Width: 3, Height: 1}, BoardToLayer, false)
	assert.True(t, errors.Is(err, ErrRect))
}

func TestLayerRoundTrip(t *testing.T) {
	src, b := newWorld(8, 8)
	b.SetupOverlay(1)
	for i := range b.Overlay {
		b.Overlay[i] = byte('A' + i%26)
		b.OverlayColor[i] = byte(i)
	}
	for i := range src.Vlayer.Chars {
		src.Vlayer.Chars[i] = byte(i)
		src.Vlayer.Colors[i] = byte(i >> 3)
	}
	r := Rect{X: 2, Y: 3, Width: 4, Height: 4}

	var c Codec
	overlay, err := c.SaveBytes(src, r, OverlayToLayer, false)
	require.NoError(t, err)
	vlayer, err := c.SaveBytes(src, r, VlayerToLayer, false)
	require.NoError(t, err)

	dst, db := newWorld(8, 8)
	require.Zero(t, db.OverlayMode)
	_, err = c.LoadMemory(dst, "overlay", overlay, r.X, r.Y, ToOverlay, false)
	require.NoError(t, err)
	_, err = c.LoadMemory(dst, "vlayer", vlayer, r.X, r.Y, ToVlayer, false)
	require.NoError(t, err)

	assert.Equal(t, byte(3), db.OverlayMode, "overlay is created on demand")
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			off := b.Offset(x, y)
			assert.Equal(t, b.Overlay[off], db.Overlay[off])
			assert.Equal(t, b.OverlayColor[off], db.OverlayColor[off])
			voff := x + y*src.Vlayer.Width
			assert.Equal(t, src.Vlayer.Chars[voff], dst.Vlayer.Chars[voff])
			assert.Equal(t, src.Vlayer.Colors[voff], dst.Vlayer.Colors[voff])
		}
	}
	// Outside the rectangle the destination is untouched.
	assert.Equal(t, byte(' '), db.Overlay[0])
	assert.Equal(t, byte(' '), dst.Vlayer.Chars[0])
}

func TestBoardToLayerThenBoard(t *testing.T) {
	src, b := newWorld(6, 6)
	addRobot(t, b, 1, 1, "face", 0x02)
	b.ID[b.Offset(2, 1)], b.Color[b.Offset(2, 1)] = byte(world.IDSolid), 0x4E

	var c Codec
	data, err := c.SaveBytes(src, Rect{X: 1, Y: 1, Width: 2, Height: 1}, BoardToLayer, false)
	require.NoError(t, err)

	dst, db := newWorld(6, 6)
	db.Scrolls = append(db.Scrolls, &world.Scroll{NumLines: 1, Text: []byte{1, 0}, Used: true})
	db.ID[db.Offset(4, 4)], db.Param[db.Offset(4, 4)] = byte(world.IDSign), 1

	res, err := c.LoadMemory(dst, "mem", data, 3, 4, ToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Width)

	off := db.Offset(3, 4)
	assert.Equal(t, byte(world.IDCustomBlock), db.ID[off])
	assert.Equal(t, byte(0x02), db.Param[off])
	assert.Equal(t, byte(0x1F), db.Color[off])
	assert.Equal(t, byte(0), db.UnderColor[off])

	off = db.Offset(4, 4)
	assert.Equal(t, byte(world.IDCustomBlock), db.ID[off])
	assert.Equal(t, src.IDChar(b, b.Offset(2, 1)), db.Param[off])
	assert.Nil(t, db.Scrolls[1], "the overwritten sign is released")
}

func TestBoardRoundTripWithRobots(t *testing.T) {
	src, b := newWorld(10, 10)
	first := addRobot(t, b, 2, 2, "first", 'F')
	second := addRobot(t, b, 4, 3, "second", 'S')
	b.UnderID[b.Offset(3, 3)] = byte(world.IDSensor)

	var c Codec
	data, err := c.SaveBytes(src, Rect{X: 2, Y: 2, Width: 3, Height: 2}, BoardToBoard, false)
	require.NoError(t, err)

	dst, db := newWorld(10, 10)
	rec := &diag.Recorder{}
	c.Reporter = rec
	res, err := c.LoadMemory(dst, "mem", data, 5, 5, ToBoard, false)
	require.NoError(t, err)
	assert.Empty(t, rec.Errors())
	assert.Equal(t, 2, res.Placed)
	assert.False(t, res.Dummy)

	got := robotAt(t, db, 5, 5)
	assert.Equal(t, first.Name, got.Name)
	assert.Equal(t, first.Program, got.Program)
	assert.Equal(t, 5, got.X)
	assert.Equal(t, 5, got.Y)
	assert.NotSame(t, first, got)

	got = robotAt(t, db, 7, 6)
	assert.Equal(t, second.Name, got.Name)
	assert.Equal(t, byte(0x1F), db.Color[db.Offset(7, 6)])

	// Object ids never survive on the under layer.
	off := db.Offset(6, 6)
	assert.Equal(t, []byte{0, 0, 7}, []byte{db.UnderID[off], db.UnderParam[off], db.UnderColor[off]})
}

func TestPlayerIsSubstitutedAndNeverOverwritten(t *testing.T) {
	src, b := newWorld(8, 8)
	poff := b.Offset(1, 1)
	b.ID[poff], b.Color[poff] = byte(world.IDPlayer), 0x1B
	glyph := src.IDChar(b, poff)
	addRobot(t, b, 2, 1, "beside", 'B')

	var c Codec
	data, err := c.SaveBytes(src, Rect{X: 1, Y: 1, Width: 2, Height: 1}, BoardToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, byte(world.IDPlayer), b.ID[poff], "the source keeps its player")

	dst, db := newWorld(8, 8)
	// Destination player sits where the robot would land.
	dp := db.Offset(5, 4)
	db.ID[dp], db.Color[dp] = byte(world.IDPlayer), 0x1B

	res, err := c.LoadMemory(dst, "mem", data, 4, 4, ToBoard, false)
	require.NoError(t, err)

	off := db.Offset(4, 4)
	assert.Equal(t, byte(world.IDCustomBlock), db.ID[off])
	assert.Equal(t, glyph, db.Param[off])
	assert.Equal(t, byte(0x1B), db.Color[off])

	assert.Equal(t, byte(world.IDPlayer), db.ID[dp])
	assert.Equal(t, 0, res.Placed)
	assert.Equal(t, 1, res.Discarded)
	assert.Zero(t, db.NumRobots())
}

func TestSensorsSignsAndScrollsBecomeCustomBlocks(t *testing.T) {
	src, b := newWorld(4, 1)
	b.Sensors = append(b.Sensors, &world.Sensor{Name: "s", Char: 'x', Used: true})
	b.ID[0], b.Param[0], b.Color[0] = byte(world.IDSensor), 1, 0x0A
	b.Scrolls = append(b.Scrolls, &world.Scroll{Used: true})
	b.ID[1], b.Param[1], b.Color[1] = byte(world.IDScroll), 1, 0x0F

	var c Codec
	data, err := c.SaveBytes(src, Rect{Width: 2, Height: 1}, BoardToBoard, false)
	require.NoError(t, err)
	tiles := data[HeaderSize:]
	assert.Equal(t, []byte{byte(world.IDCustomBlock), 'x', 0x0A}, tiles[0:3])
	assert.Equal(t, []byte{byte(world.IDCustomBlock), src.IDChar(b, 1), 0x0F}, tiles[6:9])
}

func TestExcessRobotCountIsNotPlaced(t *testing.T) {
	src, b := newWorld(8, 8)
	addRobot(t, b, 0, 0, "one", '1')
	addRobot(t, b, 1, 0, "two", '2')

	var c Codec
	data, err := c.SaveBytes(src, Rect{Width: 2, Height: 1}, BoardToBoard, false)
	require.NoError(t, err)
	data[12] = 5

	dst, db := newWorld(8, 8)
	rec := &diag.Recorder{}
	c.Reporter = rec
	res, err := c.LoadMemory(dst, "mem", data, 0, 0, ToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Placed)
	assert.Equal(t, 3, res.Discarded)
	assert.True(t, rec.Has(diag.CodeMZMRobotCorrupt))
	assert.Equal(t, "one", robotAt(t, db, 0, 0).Name)
	assert.Equal(t, "two", robotAt(t, db, 1, 0).Name)
}

func TestClippingNeverWritesPastTheEdge(t *testing.T) {
	src, b := newWorld(8, 8)
	for i := range b.ID {
		b.ID[i], b.Color[i] = byte(world.IDSolid), 0x22
	}
	// Row 0 has a robot in a column that gets clipped; row 1 has one that
	// stays visible.
	addRobot(t, b, 3, 0, "clipped", 'c')
	addRobot(t, b, 0, 1, "kept", 'k')

	var c Codec
	data, err := c.SaveBytes(src, Rect{Width: 4, Height: 4}, BoardToBoard, false)
	require.NoError(t, err)

	dst, db := newWorld(6, 6)
	res, err := c.LoadMemory(dst, "mem", data, 4, 4, ToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Width)
	assert.Equal(t, 2, res.Height)
	assert.Equal(t, 1, res.Placed)
	assert.Equal(t, 1, res.Discarded)

	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			off := db.Offset(x, y)
			inside := x >= 4 && y >= 4
			if inside {
				assert.NotEqual(t, byte(world.IDSpace), db.ID[off], "(%d,%d)", x, y)
			} else {
				assert.Equal(t, byte(world.IDSpace), db.ID[off], "(%d,%d)", x, y)
			}
		}
	}
	// The robot from the clipped column keeps its place in the robot order,
	// so the visible one gets the right program.
	assert.Equal(t, "kept", robotAt(t, db, 4, 5).Name)
}

func TestClippingLayerIntoVlayer(t *testing.T) {
	src, _ := newWorld(4, 4)
	for i := range src.Vlayer.Chars {
		src.Vlayer.Chars[i] = 'v'
	}
	var c Codec
	data, err := c.SaveBytes(src, Rect{Width: 5, Height: 3}, VlayerToLayer, false)
	require.NoError(t, err)

	dst, _ := newWorld(4, 4)
	dst.Vlayer = world.Vlayer{Width: 3, Height: 2, Chars: make([]byte, 6), Colors: make([]byte, 6)}
	res, err := c.LoadMemory(dst, "mem", data, 1, 1, ToVlayer, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Width)
	assert.Equal(t, 1, res.Height)
	assert.Equal(t, []byte{0, 0, 0, 0, 'v', 'v'}, dst.Vlayer.Chars)
}

func TestLoadRejectsOriginOutsideDestination(t *testing.T) {
	src, _ := newWorld(4, 4)
	var c Codec
	data, err := c.SaveBytes(src, Rect{Width: 1, Height: 1}, BoardToBoard, false)
	require.NoError(t, err)
	dst, db := newWorld(4, 4)
	_, err = c.LoadMemory(dst, "mem", data, 4, 0, ToBoard, false)
	assert.True(t, errors.Is(err, ErrRect))
	_, err = c.LoadMemory(dst, "mem", data, -1, 0, ToBoard, false)
	assert.True(t, errors.Is(err, ErrRect))

	_, err = c.LoadMemory(dst, "mem", data, 0, 9, ToOverlay, false)
	assert.True(t, errors.Is(err, ErrRect))
	assert.Equal(t, byte(0), db.OverlayMode, "a rejected load must not create the overlay")
	assert.Nil(t, db.Overlay)
}

func TestShortVlayerIsRefused(t *testing.T) {
	src, _ := newWorld(4, 4)
	var c Codec
	data, err := c.SaveBytes(src, Rect{Width: 4, Height: 4}, VlayerToLayer, false)
	require.NoError(t, err)

	short := world.Vlayer{Width: 10, Height: 10, Chars: []byte("ab"), Colors: []byte{7, 7}}
	dst, _ := newWorld(4, 4)
	dst.Vlayer = short
	_, err = c.LoadMemory(dst, "mem", data, 0, 0, ToVlayer, false)
	assert.True(t, errors.Is(err, ErrRect))
	assert.Equal(t, []byte("ab"), dst.Vlayer.Chars)

	_, err = c.SaveBytes(dst, Rect{Width: 2, Height: 1}, VlayerToLayer, false)
	assert.True(t, errors.Is(err, ErrRect))
	_, err = c.CalculateSize(dst, Rect{Width: 2, Height: 1}, VlayerToLayer, false)
	assert.True(t, errors.Is(err, ErrRect))

	dst.Vlayer.Clamp()
	res, err := c.LoadMemory(dst, "mem", data, 0, 0, ToVlayer, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Width)
	assert.Equal(t, 1, res.Height)
}

func TestVersionAndSavegameWarningsDummyRobots(t *testing.T) {
	build := func(t *testing.T, savegame bool) []byte {
		src, b := newWorld(4, 4)
		addRobot(t, b, 1, 1, "ghost", 'G')
		var c Codec
		data, err := c.SaveBytes(src, Rect{Width: 3, Height: 3}, BoardToBoard, savegame)
		require.NoError(t, err)
		return data
	}

	t.Run("too recent", func(t *testing.T) {
		data := build(t, false)
		binary.LittleEndian.PutUint16(data[15:], uint16(world.CurrentVersion+1))
		dst, db := newWorld(4, 4)
		rec := &diag.Recorder{}
		res, err := (&Codec{Reporter: rec}).LoadMemory(dst, "mem", data, 0, 0, ToBoard, false)
		require.NoError(t, err)
		assert.True(t, rec.Has(diag.CodeMZMVersionTooRecent))
		assert.True(t, res.Dummy)
		off := db.Offset(1, 1)
		assert.Equal(t, byte(world.IDCustomBlock), db.ID[off])
		assert.Equal(t, byte('G'), db.Param[off])
		assert.Equal(t, 0, res.Placed)
	})

	t.Run("from savegame", func(t *testing.T) {
		data := build(t, true)
		dst, db := newWorld(4, 4)
		rec := &diag.Recorder{}
		res, err := (&Codec{Reporter: rec}).LoadMemory(dst, "mem", data, 0, 0, ToBoard, false)
		require.NoError(t, err)
		assert.True(t, rec.Has(diag.CodeMZMFromSavegame))
		assert.True(t, res.Dummy)
		assert.Equal(t, byte(world.IDCustomBlock), db.ID[db.Offset(1, 1)])

		// At runtime the same region installs a live robot.
		dst, db = newWorld(4, 4)
		res, err = (&Codec{}).LoadMemory(dst, "mem", data, 0, 0, ToBoard, true)
		require.NoError(t, err)
		assert.False(t, res.Dummy)
		assert.Equal(t, "ghost", robotAt(t, db, 1, 1).Name)
	})
}

func TestLoadValidation(t *testing.T) {
	src, b := newWorld(4, 4)
	addRobot(t, b, 0, 0, "r", 'r')
	var c Codec
	good, err := c.SaveBytes(src, Rect{Width: 2, Height: 2}, BoardToBoard, false)
	require.NoError(t, err)

	cases := map[string]func(d []byte) []byte{
		"truncated tiles":    func(d []byte) []byte { return d[:HeaderSize+10] },
		"bad savegame mode":  func(d []byte) []byte { d[14] = 2; return d },
		"bad storage mode":   func(d []byte) []byte { d[13] = 2; return d },
		"robots past end":    func(d []byte) []byte { binary.LittleEndian.PutUint32(d[8:], uint32(len(d)+1)); return d },
		"robots inside tile": func(d []byte) []byte { binary.LittleEndian.PutUint32(d[8:], HeaderSize+1); return d },
		"bad magic":          func(d []byte) []byte { d[3] = '7'; return d },
		"too short":          func(d []byte) []byte { return d[:15] },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			data := mutate(append([]byte(nil), good...))
			dst, db := newWorld(4, 4)
			before := append([]byte(nil), db.ID...)
			rec := &diag.Recorder{}
			_, err := (&Codec{Reporter: rec}).LoadMemory(dst, "bad.mzm", data, 0, 0, ToBoard, false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, diag.ErrInvalid))
			assert.Equal(t, diag.CodeMZMFileInvalid, diag.CodeOf(err))
			assert.True(t, rec.Has(diag.CodeMZMFileInvalid))
			assert.Equal(t, before, db.ID, "nothing is written before validation")
		})
	}
}

// legacyRegion builds an MZM2 region whose robots follow the tiles in the
// 2.83 layout.
func legacyRegion(t *testing.T, width, height int, tiles []byte, robots []*world.Robot) []byte {
	t.Helper()
	data := []byte("MZM2")
	data = binary.LittleEndian.AppendUint16(data, uint16(width))
	data = binary.LittleEndian.AppendUint16(data, uint16(height))
	data = binary.LittleEndian.AppendUint32(data, uint32(minHeaderSize+len(tiles)))
	data = append(data, byte(len(robots)), byte(StorageBoard), 0, 0)
	data = append(data, tiles...)
	var buf bytes.Buffer
	for _, r := range robots {
		require.NoError(t, robotfmt.Codec{}.EncodeLegacy(&buf, r, false, world.V283))
	}
	return append(data, buf.Bytes()...)
}

func TestLegacyRobotsAreReadSequentially(t *testing.T) {
	a := world.NewBlankRobot()
	a.Name, a.Char = "alpha", 'a'
	z := world.NewBlankRobot()
	z.Name, z.Char = "omega", 'z'
	tiles := []byte{
		byte(world.IDRobot), 0, 0x0C, 0, 0, 7,
		byte(world.IDRobot), 0, 0x0D, 0, 0, 7,
	}
	data := legacyRegion(t, 2, 1, tiles, []*world.Robot{a, z})

	dst, db := newWorld(4, 4)
	res, err := (&Codec{}).LoadMemory(dst, "old.mzm", data, 1, 1, ToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, world.V283, res.Header.Version)
	assert.Equal(t, 2, res.Placed)
	assert.Equal(t, "alpha", robotAt(t, db, 1, 1).Name)
	assert.Equal(t, "omega", robotAt(t, db, 2, 1).Name)

	// Cutting the second robot short turns it into a dummy.
	data = data[:len(data)-3]
	dst, db = newWorld(4, 4)
	rec := &diag.Recorder{}
	res, err = (&Codec{Reporter: rec}).LoadMemory(dst, "old.mzm", data, 1, 1, ToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Placed)
	assert.True(t, res.Dummy)
	assert.Equal(t, byte(world.IDCustomBlock), db.ID[db.Offset(2, 1)])
	assert.Equal(t, byte(world.DefaultRobotChar), db.Param[db.Offset(2, 1)])
	assert.True(t, rec.Has(diag.CodeMZMRobotCorrupt))
}

func TestArchiveGapYieldsBlankRobot(t *testing.T) {
	tiles := bytes.Repeat([]byte{byte(world.IDRobot), 0, 0x0E, 0, 0, 7}, 3)
	data := []byte("MZM3")
	data = binary.LittleEndian.AppendUint16(data, 3)
	data = binary.LittleEndian.AppendUint16(data, 1)
	data = binary.LittleEndian.AppendUint32(data, uint32(HeaderSize+len(tiles)))
	data = append(data, 3, byte(StorageBoard), 0)
	data = binary.LittleEndian.AppendUint16(data, uint16(world.CurrentVersion))
	data = append(data, 0, 0, 0)
	data = append(data, tiles...)

	buf := bytes.NewBuffer(data)
	zw := archive.OpenMemWrite(buf, int64(len(data)))
	for _, i := range []int{0, 2} {
		r := world.NewBlankRobot()
		r.Name = archive.RobotName(i)
		var payload bytes.Buffer
		require.NoError(t, robotfmt.Codec{}.Encode(&payload, r, false))
		require.NoError(t, zw.WriteEntry(archive.RobotName(i), payload.Bytes()))
	}
	require.NoError(t, zw.WriteEntry("readme", []byte("not a robot")))
	_, err := zw.Close()
	require.NoError(t, err)

	dst, db := newWorld(4, 4)
	rec := &diag.Recorder{}
	res, err := (&Codec{Reporter: rec}).LoadMemory(dst, "gap.mzm", buf.Bytes(), 0, 0, ToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Placed)
	assert.Equal(t, "r00", robotAt(t, db, 0, 0).Name)
	assert.Equal(t, "", robotAt(t, db, 1, 0).Name, "missing entry becomes a blank robot")
	assert.Equal(t, "r02", robotAt(t, db, 2, 0).Name)
	assert.False(t, rec.Has(diag.CodeMZMRobotCorrupt), "sparse ids are not corruption")
	assert.Empty(t, res.Warnings)
}

func TestRobotSlotExhaustionClearsCell(t *testing.T) {
	src, b := newWorld(4, 4)
	addRobot(t, b, 0, 0, "late", 'l')
	var c Codec
	data, err := c.SaveBytes(src, Rect{Width: 1, Height: 1}, BoardToBoard, false)
	require.NoError(t, err)

	dst, db := newWorld(20, 20)
	for i := 0; i < world.MaxRobots; i++ {
		addRobot(t, db, i%20, 5+i/20, "full", 'f')
	}
	rec := &diag.Recorder{}
	res, err := (&Codec{Reporter: rec}).LoadMemory(dst, "mem", data, 0, 0, ToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Placed)
	assert.True(t, rec.Has(diag.CodeRobotSlotExhausted))
	off := db.Offset(0, 0)
	assert.Equal(t, []byte{0, 0, 7}, []byte{db.ID[off], db.Param[off], db.Color[off]})
}

// Robot ids in clipped columns are counted against the robot list even when
// the file declares fewer robots than robot cells.
func TestSkippedColumnMarkerHeuristic(t *testing.T) {
	a := world.NewBlankRobot()
	a.Name = "visible"
	tiles := []byte{
		byte(world.IDRobot), 0, 0x0C, 0, 0, 7,
		byte(world.IDRobot), 0, 0x0C, 0, 0, 7, // clipped, not backed by a robot
	}
	// The file declares one robot and it belongs to the visible cell.
	data := legacyRegion(t, 2, 1, tiles, []*world.Robot{a})
	dst, db := newWorld(2, 2)
	res, err := (&Codec{}).LoadMemory(dst, "mem", data, 1, 0, ToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Width)
	assert.Equal(t, "visible", robotAt(t, db, 1, 0).Name)
}

func TestSaveToStringAndLoadMemory(t *testing.T) {
	w, b := newWorld(5, 5)
	addRobot(t, b, 2, 2, "stringy", 's')
	var c Codec
	require.NoError(t, c.SaveToString(w, "$region", Rect{X: 2, Y: 2, Width: 1, Height: 1}, BoardToBoard, false))
	data, ok := w.GetString("$region")
	require.True(t, ok)

	res, err := c.LoadMemory(w, "$region", data, 0, 0, ToBoard, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Placed)
	assert.Equal(t, "stringy", robotAt(t, b, 0, 0).Name)
	assert.Equal(t, "stringy", robotAt(t, b, 2, 2).Name)
	assert.NotSame(t, robotAt(t, b, 0, 0), robotAt(t, b, 2, 2))
}

func TestFilesAndReadSize(t *testing.T) {
	w, _ := newWorld(9, 7)
	dir := t.TempDir()
	path := filepath.Join(dir, "cut.mzm")
	var c Codec
	require.NoError(t, c.Save(w, path, Rect{X: 1, Y: 1, Width: 6, Height: 5}, BoardToLayer, false))

	width, height := ReadSize(path)
	assert.Equal(t, 6, width)
	assert.Equal(t, 5, height)

	width, height = ReadSize(filepath.Join(dir, "missing.mzm"))
	assert.Equal(t, -1, width)
	assert.Equal(t, -1, height)

	junk := filepath.Join(dir, "junk.mzm")
	require.NoError(t, os.WriteFile(junk, []byte("MZM"), 0o644))
	width, height = ReadSize(junk)
	assert.Equal(t, -1, width)
	assert.Equal(t, -1, height)

	rec := &diag.Recorder{}
	_, err := (&Codec{Reporter: rec}).Load(w, filepath.Join(dir, "missing.mzm"), 0, 0, ToBoard, false)
	assert.True(t, errors.Is(err, diag.ErrFileMissing))
	assert.True(t, rec.Has(diag.CodeMZMDoesNotExist))

	res, err := c.Load(w, path, 0, 0, ToOverlay, false)
	require.NoError(t, err)
	assert.Equal(t, StorageLayer, res.Header.Storage)
}

// Package legacytest builds synthetic legacy worlds and savegames for tests.
package legacytest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"zeuxkit.dev/internal/codec/boardfmt"
	"zeuxkit.dev/internal/codec/robotfmt"
	"zeuxkit.dev/internal/legacy"
	"zeuxkit.dev/internal/world"
)

// Spec describes a file to build. Zero values produce a minimal valid world
// with one 4x4 board.
type Spec struct {
	Savegame bool
	// Version defaults to 2.84.
	Version int
	// Method, when non-zero, is written as the protection byte without
	// encrypting anything.
	Method int
	// Magic overrides the signature (3 bytes for worlds, 5 for savegames).
	Magic []byte
	Name  string

	// Palette components are raw 0-63 values.
	Palette [world.PaletteSize]world.RGB

	Boards      []*world.Board
	GlobalRobot *world.Robot
	// SFX, when non-nil, emits the custom sound effect table.
	SFX []string

	// Savegame-only sections.
	Counters   []world.Counter
	Strings    []world.String
	ModName    string
	InputFile  string
	OutputFile string
	ScreenMode int
	Vlayer     world.Vlayer
}

// File is a built image plus the offsets at which each structural section
// starts. Every boundary lies before the end of the board table.
type File struct {
	Data       []byte
	Boundaries []int
	// TableEnd is the offset right after the board table.
	TableEnd int
}

// DefaultBoard is a small board holding one robot, one sign and the player.
func DefaultBoard() *world.Board {
	b := world.NewBoard(4, 4)
	r := world.NewBlankRobot()
	r.Name = "keeper"
	r.Used = true
	r.X, r.Y = 1, 1
	b.Robots = append(b.Robots, r)
	b.ID[b.Offset(1, 1)], b.Param[b.Offset(1, 1)] = byte(world.IDRobot), 1
	b.Scrolls = append(b.Scrolls, &world.Scroll{NumLines: 1, Text: []byte("\x01hi\x00"), Used: true})
	b.ID[b.Offset(2, 2)], b.Param[b.Offset(2, 2)] = byte(world.IDSign), 1
	b.ID[b.Offset(3, 3)] = byte(world.IDPlayer)
	return b
}

type builder struct {
	buf        bytes.Buffer
	boundaries []int
}

func (b *builder) mark()                  { b.boundaries = append(b.boundaries, b.buf.Len()) }
func (b *builder) u8(v int)               { b.buf.WriteByte(byte(v)) }
func (b *builder) u16(v int)              { b.buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(v))) }
func (b *builder) u32(v int)              { b.buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(v))) }
func (b *builder) raw(p []byte)           { b.buf.Write(p) }
func (b *builder) zeros(n int)            { b.buf.Write(make([]byte, n)) }
func (b *builder) fixed(s string, n int) { b.raw(world.PutCString(s, n)) }

// Build lays the file out section by section.
func Build(s Spec) File {
	var b builder
	savegame := s.Savegame
	version := s.Version
	if version == 0 {
		version = world.LegacyFormatVersion
	}

	b.mark()
	if savegame {
		magic := s.Magic
		if magic == nil {
			magic = legacy.SaveMagicBytes(version)
		}
		b.raw(magic)
		b.mark()
		b.u16(version)
		b.u8(0)
	} else {
		b.fixed(s.Name, world.BoardNameSize)
		b.mark()
		b.u8(s.Method)
		b.mark()
		magic := s.Magic
		if magic == nil {
			magic = legacy.WorldMagicBytes(version)
		}
		b.raw(magic)
	}

	// Block 1: charset, id tables, status counters.
	b.mark()
	b.zeros(world.CharSize * world.CharsetSize)
	ids := world.DefaultIDChars()
	b.raw(ids[:])
	b.zeros(1 + world.IDBulletColorSize + world.IDDmgSize)
	for i := 0; i < world.NumStatusCounters; i++ {
		// Deliberately unterminated.
		b.raw(bytes.Repeat([]byte{'S'}, world.CounterNameSize))
	}

	if savegame {
		b.mark()
		b.zeros(world.NumKeys + 5 + 4*world.NumSavedPositions + world.NumSavedPositions + 4 + 6)
		b.mark()
		b.u16(len(s.ModName))
		b.raw([]byte(s.ModName))
	}

	// Block 2: shared settings and the palette.
	b.mark()
	b.zeros(24)
	for _, c := range s.Palette {
		b.raw([]byte{c.R, c.G, c.B})
	}

	if savegame {
		b.mark()
		b.zeros(world.PaletteSize + 1 + 4 + 3)
		b.mark()
		b.u32(len(s.Counters))
		for _, c := range s.Counters {
			b.u32(int(c.Value))
			b.u32(len(c.Name))
			b.raw([]byte(c.Name))
		}
		b.mark()
		b.u32(len(s.Strings))
		for _, str := range s.Strings {
			b.u32(len(str.Name))
			b.u32(len(str.Value))
			b.raw([]byte(str.Name))
			b.raw(str.Value)
		}
		b.mark()
		b.zeros(4612 + 12)
		b.mark()
		b.u16(len(s.InputFile))
		b.raw([]byte(s.InputFile))
		b.u32(0)
		b.mark()
		b.u16(len(s.OutputFile))
		b.raw([]byte(s.OutputFile))
		b.u32(0)
		b.mark()
		b.u16(s.ScreenMode)
		if s.ScreenMode > 1 {
			b.zeros(768)
		}
		b.mark()
		b.u32(0)
		size := len(s.Vlayer.Chars)
		b.mark()
		b.u32(size)
		b.u16(s.Vlayer.Width)
		b.u16(s.Vlayer.Height)
		b.raw(s.Vlayer.Chars)
		b.raw(s.Vlayer.Colors)
	}

	boards := s.Boards
	if boards == nil {
		boards = []*world.Board{DefaultBoard()}
	}
	global := s.GlobalRobot
	if global == nil {
		global = world.NewBlankRobot()
		global.Name = "global"
	}

	b.mark()
	globalPosAt := b.buf.Len()
	b.u32(0)
	b.mark()
	if s.SFX != nil {
		b.u8(0)
		var table bytes.Buffer
		for i := 0; i < world.NumSFX; i++ {
			var sfx string
			if i < len(s.SFX) {
				sfx = s.SFX[i]
			}
			table.WriteByte(byte(len(sfx)))
			table.WriteString(sfx)
		}
		b.u16(table.Len())
		b.mark()
		b.raw(table.Bytes())
	}
	b.mark()
	b.u8(len(boards))

	b.mark()
	for _, bd := range boards {
		name := ""
		if bd != nil {
			name = bd.Name
		}
		b.fixed(name, world.BoardNameSize)
	}
	b.mark()
	tableAt := b.buf.Len()
	b.zeros(8 * len(boards))
	tableEnd := b.buf.Len()

	// Payloads follow the table; offsets are patched in afterwards.
	var rc robotfmt.Codec
	globalPos := b.buf.Len()
	if err := rc.EncodeLegacy(&b.buf, global, savegame, version); err != nil {
		panic(err)
	}
	bc := boardfmt.Codec{}
	type entry struct{ size, offset int }
	entries := make([]entry, len(boards))
	for i, bd := range boards {
		if bd == nil {
			continue
		}
		data, err := bc.Encode(bd, savegame)
		if err != nil {
			panic(err)
		}
		entries[i] = entry{size: len(data), offset: b.buf.Len()}
		b.raw(data)
	}

	out := b.buf.Bytes()
	binary.LittleEndian.PutUint32(out[globalPosAt:], uint32(globalPos))
	for i, e := range entries {
		binary.LittleEndian.PutUint32(out[tableAt+8*i:], uint32(e.size))
		binary.LittleEndian.PutUint32(out[tableAt+8*i+4:], uint32(e.offset))
	}
	return File{Data: out, Boundaries: b.boundaries, TableEnd: tableEnd}
}

// Write builds s into a file under t.TempDir and returns its path.
func Write(t testing.TB, name string, s Spec) (string, File) {
	t.Helper()
	f := Build(s)
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path, f
}

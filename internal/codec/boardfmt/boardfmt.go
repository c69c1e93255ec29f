// Package boardfmt is the default board payload codec.
//
// A board payload is: width and height words, the overlay mode byte (followed
// by RLE2 char and color planes when non-zero), six RLE2 planes (id, color,
// param, under id, under color, under param), then the robot, scroll and
// sensor tables, each prefixed by a count byte.
package boardfmt

import (
	"bytes"
	"errors"
	"fmt"

	"zeuxkit.dev/internal/binio"
	"zeuxkit.dev/internal/codec/rle"
	"zeuxkit.dev/internal/codec/robotfmt"
	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/world"
)

// MaxCells bounds width*height so a corrupt header cannot force a huge
// allocation.
const MaxCells = 1 << 24

const sensorSize = world.SensorNameSize + 1 + world.RobotNameSize

var ErrBoardCorrupt = errors.New("board payload corrupt")

// Codec decodes and encodes board payloads. Robots that fail to decode but
// whose extent is known are replaced by blank robots and reported.
type Codec struct {
	Robots   robotfmt.Codec
	Reporter diag.Reporter
	// File names diagnostics.
	File string
}

func (c Codec) Decode(data []byte, savegame bool, version int) (*world.Board, error) {
	r := binio.NewBytesReader(data)
	w, err := r.U16()
	if err != nil {
		return nil, corrupt("dimensions", err)
	}
	h, err := r.U16()
	if err != nil {
		return nil, corrupt("dimensions", err)
	}
	if w == 0 || h == 0 || int(w)*int(h) > MaxCells {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrBoardCorrupt, w, h)
	}

	b := world.NewBoard(int(w), int(h))
	n := b.Size()

	mode, err := r.U8()
	if err != nil {
		return nil, corrupt("overlay mode", err)
	}
	if mode != 0 {
		b.OverlayMode = mode
		if b.Overlay, err = plane(r, data, n); err != nil {
			return nil, corrupt("overlay", err)
		}
		if b.OverlayColor, err = plane(r, data, n); err != nil {
			return nil, corrupt("overlay color", err)
		}
	}

	for _, dst := range []*[]byte{&b.ID, &b.Color, &b.Param, &b.UnderID, &b.UnderColor, &b.UnderParam} {
		if *dst, err = plane(r, data, n); err != nil {
			return nil, corrupt("planes", err)
		}
	}

	if err := c.decodeRobots(r, data, b, savegame, version); err != nil {
		return nil, err
	}
	if err := decodeScrolls(r, b); err != nil {
		return nil, err
	}
	if err := decodeSensors(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func plane(r *binio.Reader, data []byte, n int) ([]byte, error) {
	out, used, err := rle.Decode(data[r.Tell():], n)
	if err != nil {
		return nil, err
	}
	return out, r.Skip(int64(used))
}

func (c Codec) decodeRobots(r *binio.Reader, data []byte, b *world.Board, savegame bool, version int) error {
	count, err := r.U8()
	if err != nil {
		return corrupt("robot count", err)
	}
	partial := c.Robots.LegacyPartialSize(savegame, version)
	for i := 1; i <= int(count); i++ {
		pos := int(r.Tell())
		if r.Remaining() < int64(partial) {
			return fmt.Errorf("%w: robot %d header truncated", ErrBoardCorrupt, i)
		}
		size, err := c.Robots.LegacySize(data[pos:pos+partial], savegame, version)
		if err != nil {
			return fmt.Errorf("robot %d: %w", i, err)
		}
		if err := r.Skip(int64(size)); err != nil {
			return corrupt(fmt.Sprintf("robot %d", i), err)
		}
		robot, err := c.Robots.DecodeLegacy(data[pos:pos+size], savegame, version)
		if err != nil {
			diag.OrDiscard(c.Reporter).Report(diag.New(diag.CodeBoardRobotCorrupt, c.File, err))
			robot = world.NewBlankRobot()
			robot.Used = true
		}
		robot.WorldVersion = version
		b.Robots = append(b.Robots, robot)
	}
	return nil
}

func decodeScrolls(r *binio.Reader, b *world.Board) error {
	count, err := r.U8()
	if err != nil {
		return corrupt("scroll count", err)
	}
	for i := 1; i <= int(count); i++ {
		lines, err := r.U16()
		if err != nil {
			return corrupt("scroll", err)
		}
		n, err := r.U16()
		if err != nil {
			return corrupt("scroll", err)
		}
		text, err := r.Bytes(int(n))
		if err != nil {
			return corrupt("scroll text", err)
		}
		b.Scrolls = append(b.Scrolls, &world.Scroll{NumLines: int(lines), Text: text, Used: n > 0})
	}
	return nil
}

func decodeSensors(r *binio.Reader, b *world.Board) error {
	count, err := r.U8()
	if err != nil {
		return corrupt("sensor count", err)
	}
	for i := 1; i <= int(count); i++ {
		raw, err := r.Bytes(sensorSize)
		if err != nil {
			return corrupt("sensor", err)
		}
		b.Sensors = append(b.Sensors, &world.Sensor{
			Name:      world.CString(raw[:world.SensorNameSize]),
			Char:      raw[world.SensorNameSize],
			RobotName: world.CString(raw[world.SensorNameSize+1:]),
			Used:      true,
		})
	}
	return nil
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBoardCorrupt, what, err)
}

// Encode writes b in the current payload layout.
func (c Codec) Encode(b *world.Board, savegame bool) ([]byte, error) {
	if b.Width <= 0 || b.Height <= 0 || b.Width > 0xFFFF || b.Height > 0xFFFF {
		return nil, fmt.Errorf("board %q: bad dimensions %dx%d", b.Name, b.Width, b.Height)
	}
	var buf bytes.Buffer
	putU16(&buf, b.Width)
	putU16(&buf, b.Height)

	buf.WriteByte(b.OverlayMode)
	if b.OverlayMode != 0 {
		buf.Write(rle.Encode(b.Overlay))
		buf.Write(rle.Encode(b.OverlayColor))
	}
	for _, p := range [][]byte{b.ID, b.Color, b.Param, b.UnderID, b.UnderColor, b.UnderParam} {
		buf.Write(rle.Encode(p))
	}

	if err := c.encodeRobots(&buf, b, savegame); err != nil {
		return nil, err
	}

	if len(b.Scrolls)-1 > 0xFF || len(b.Sensors)-1 > 0xFF {
		return nil, fmt.Errorf("board %q: too many objects", b.Name)
	}
	buf.WriteByte(byte(max(len(b.Scrolls)-1, 0)))
	for i := 1; i < len(b.Scrolls); i++ {
		s := b.Scrolls[i]
		if s == nil {
			s = &world.Scroll{}
		}
		putU16(&buf, s.NumLines)
		putU16(&buf, len(s.Text))
		buf.Write(s.Text)
	}

	buf.WriteByte(byte(max(len(b.Sensors)-1, 0)))
	for i := 1; i < len(b.Sensors); i++ {
		s := b.Sensors[i]
		if s == nil {
			s = &world.Sensor{}
		}
		buf.Write(world.PutCString(s.Name, world.SensorNameSize))
		buf.WriteByte(s.Char)
		buf.Write(world.PutCString(s.RobotName, world.RobotNameSize))
	}
	return buf.Bytes(), nil
}

func (c Codec) encodeRobots(buf *bytes.Buffer, b *world.Board, savegame bool) error {
	n := b.NumRobots()
	if n < 0 {
		n = 0
	}
	if n > world.MaxRobots {
		return fmt.Errorf("board %q: %d robots", b.Name, n)
	}
	buf.WriteByte(byte(n))
	for i := 1; i <= n; i++ {
		r := b.Robots[i]
		if r == nil {
			r = world.NewBlankRobot()
		}
		if err := c.Robots.EncodeLegacy(buf, r, savegame, world.LegacyFormatVersion); err != nil {
			return err
		}
	}
	return nil
}

func putU16(buf *bytes.Buffer, v int) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}

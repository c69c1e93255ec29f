// Package robotfmt is the default robot payload codec.
//
// Every robot is a 41-byte fixed part, an optional savegame block (local
// counters and a stack), then the program bytes:
//
//	0  program length (dword; a word plus 2 unused bytes before 2.84)
//	4  name[15]
//	19 char
//	20 cur_prog_line (word)
//	22 pos_within_line, robot_cycle, cycle_count, bullet_type, is_locked,
//	   can_lavawalk, walk_dir, last_touch_dir, last_shot_dir
//	31 xpos (word), ypos (word)
//	35 status, 2 reserved, used
//	39 loop_count (word)
//
// Archive entries use the same layout with a dword program length.
package robotfmt

import (
	"encoding/binary"
	"fmt"
	"io"

	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/world"
)

const (
	FixedSize    = 41
	savegameSize = world.NumLocalCounters*4 + 4
)

// Codec implements the legacy and archive robot layouts.
type Codec struct{}

// LegacyPartialSize is the number of bytes needed before the full size of a
// robot can be computed.
func (Codec) LegacyPartialSize(savegame bool, version int) int {
	if savegame {
		return FixedSize + savegameSize
	}
	return FixedSize
}

// LegacySize computes the full encoded size from a partial header.
func (c Codec) LegacySize(head []byte, savegame bool, version int) (int, error) {
	partial := c.LegacyPartialSize(savegame, version)
	if len(head) < partial {
		return 0, fmt.Errorf("%w: robot header %d of %d bytes", diag.ErrRobotCorrupt, len(head), partial)
	}
	progLen := programLength(head, version)
	if progLen < 0 {
		return 0, fmt.Errorf("%w: program length %d", diag.ErrRobotCorrupt, progLen)
	}
	size := partial + progLen
	if savegame {
		stack := int(int32(binary.LittleEndian.Uint32(head[FixedSize+world.NumLocalCounters*4:])))
		if stack < 0 {
			return 0, fmt.Errorf("%w: stack size %d", diag.ErrRobotCorrupt, stack)
		}
		size += stack * 4
	}
	return size, nil
}

func programLength(head []byte, version int) int {
	if version >= world.V284 {
		return int(int32(binary.LittleEndian.Uint32(head)))
	}
	return int(binary.LittleEndian.Uint16(head))
}

// DecodeLegacy decodes a robot stored in the legacy layout. Legacy programs
// are bytecode and must be framed by 0xFF ... 0x00.
func (c Codec) DecodeLegacy(data []byte, savegame bool, version int) (*world.Robot, error) {
	r, err := c.decode(data, savegame, version)
	if err != nil {
		return nil, err
	}
	p := r.Program
	if len(p) < 2 || p[0] != 0xFF || p[len(p)-1] != 0x00 {
		return nil, fmt.Errorf("%w: bad program framing", diag.ErrRobotCorrupt)
	}
	return r, nil
}

// Decode decodes an archive entry payload.
func (c Codec) Decode(data []byte, savegame bool, version int) (*world.Robot, error) {
	if version <= world.LegacyFormatVersion {
		return c.DecodeLegacy(data, savegame, version)
	}
	return c.decode(data, savegame, world.LegacyFormatVersion)
}

func (c Codec) decode(data []byte, savegame bool, version int) (*world.Robot, error) {
	size, err := c.LegacySize(data, savegame, version)
	if err != nil {
		return nil, err
	}
	if size > len(data) {
		return nil, fmt.Errorf("%w: robot needs %d bytes, have %d", diag.ErrRobotCorrupt, size, len(data))
	}

	le := binary.LittleEndian
	r := &world.Robot{
		Name:          world.CString(data[4 : 4+world.RobotNameSize]),
		Char:          data[19],
		CurProgLine:   int(le.Uint16(data[20:])),
		PosWithinLine: data[22],
		RobotCycle:    data[23],
		CycleCount:    data[24],
		BulletType:    data[25],
		IsLocked:      data[26],
		CanLavaWalk:   data[27],
		WalkDir:       data[28],
		LastTouchDir:  data[29],
		LastShotDir:   data[30],
		X:             int(int16(le.Uint16(data[31:]))),
		Y:             int(int16(le.Uint16(data[33:]))),
		Status:        data[35],
		Used:          data[38] != 0,
		LoopCount:     int(le.Uint16(data[39:])),
	}

	off := FixedSize
	if savegame {
		for i := range r.LocalCounters {
			r.LocalCounters[i] = int32(le.Uint32(data[off:]))
			off += 4
		}
		n := int(int32(le.Uint32(data[off:])))
		off += 4
		r.Stack = make([]int32, n)
		for i := range r.Stack {
			r.Stack[i] = int32(le.Uint32(data[off:]))
			off += 4
		}
	}
	r.Program = append([]byte(nil), data[off:size]...)
	return r, nil
}

// EncodedSize is the exact size Encode writes for r.
func (c Codec) EncodedSize(r *world.Robot, savegame bool) int {
	size := FixedSize + len(r.Program)
	if savegame {
		size += savegameSize + 4*len(r.Stack)
	}
	return size
}

// Encode writes r in the archive layout.
func (c Codec) Encode(w io.Writer, r *world.Robot, savegame bool) error {
	return c.EncodeLegacy(w, r, savegame, world.LegacyFormatVersion)
}

// EncodeLegacy writes r in the legacy layout of version.
func (c Codec) EncodeLegacy(w io.Writer, r *world.Robot, savegame bool, version int) error {
	buf := make([]byte, c.EncodedSize(r, savegame))
	le := binary.LittleEndian
	if version >= world.V284 {
		le.PutUint32(buf, uint32(len(r.Program)))
	} else {
		if len(r.Program) > 0xFFFF {
			return fmt.Errorf("robot %q: program of %d bytes exceeds the legacy limit", r.Name, len(r.Program))
		}
		le.PutUint16(buf, uint16(len(r.Program)))
	}
	copy(buf[4:], world.PutCString(r.Name, world.RobotNameSize))
	buf[19] = r.Char
	le.PutUint16(buf[20:], uint16(r.CurProgLine))
	buf[22] = r.PosWithinLine
	buf[23] = r.RobotCycle
	buf[24] = r.CycleCount
	buf[25] = r.BulletType
	buf[26] = r.IsLocked
	buf[27] = r.CanLavaWalk
	buf[28] = r.WalkDir
	buf[29] = r.LastTouchDir
	buf[30] = r.LastShotDir
	le.PutUint16(buf[31:], uint16(r.X))
	le.PutUint16(buf[33:], uint16(r.Y))
	buf[35] = r.Status
	if r.Used {
		buf[38] = 1
	}
	le.PutUint16(buf[39:], uint16(r.LoopCount))

	off := FixedSize
	if savegame {
		for _, v := range r.LocalCounters {
			le.PutUint32(buf[off:], uint32(v))
			off += 4
		}
		le.PutUint32(buf[off:], uint32(len(r.Stack)))
		off += 4
		for _, v := range r.Stack {
			le.PutUint32(buf[off:], uint32(v))
			off += 4
		}
	}
	copy(buf[off:], r.Program)
	_, err := w.Write(buf)
	return err
}

package mzm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"zeuxkit.dev/internal/binio"
	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/world"
)

// Target is the plane a region is loaded into.
type Target int

const (
	ToBoard Target = iota
	ToOverlay
	ToVlayer
)

func (t Target) String() string {
	switch t {
	case ToBoard:
		return "board"
	case ToOverlay:
		return "overlay"
	case ToVlayer:
		return "vlayer"
	}
	return fmt.Sprintf("target(%d)", int(t))
}

// NotPlaced is the X position of a robot whose cell fell outside the
// destination.
const NotPlaced = -1

// Result summarizes a load that was not rejected outright.
type Result struct {
	Header Header
	// Width and Height are the clipped extent that was written.
	Width, Height int
	// Placed is the number of robots installed on the destination board;
	// Discarded counts the rest.
	Placed    int
	Discarded int
	// Dummy is set when robots were reduced to inert custom blocks.
	Dummy bool
	// Warnings are the diagnostics reported during the load.
	Warnings []error
}

// Load reads the region at path into w at (x, y).
func (c *Codec) Load(w *world.World, path string, x, y int, target Target, savegame bool) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		e := diag.New(diag.CodeMZMDoesNotExist, path, fmt.Errorf("%w: %v", diag.ErrFileMissing, err))
		c.reporter().Report(e)
		return Result{}, e
	}
	return c.LoadMemory(w, path, data, x, y, target, savegame)
}

// LoadMemory loads a region held in data. name labels diagnostics. The
// header is validated before anything is modified; robot failures only
// produce a warning once all robots have been processed.
func (c *Codec) LoadMemory(w *world.World, name string, data []byte, x, y int, target Target, savegame bool) (Result, error) {
	h, err := ParseHeader(data)
	if err == nil {
		err = h.validate(len(data))
	}
	if err != nil {
		return Result{}, c.invalid(name, err)
	}

	dst, err := destination(w, target, x, y)
	if err != nil {
		return Result{}, err
	}

	l := &loader{
		codec:    c,
		w:        w,
		name:     name,
		data:     data,
		r:        binio.NewBytesReader(data),
		h:        h,
		x:        x,
		y:        y,
		savegame: savegame,
		res:      Result{Header: h},
	}
	if h.Version > world.CurrentVersion {
		l.warn(diag.WithVersion(diag.CodeMZMVersionTooRecent, name, h.Version, diag.ErrVersionTooNew))
	}
	if h.SavegameMode > savegameInt(savegame) {
		l.warn(diag.New(diag.CodeMZMFromSavegame, name, errors.New("region holds runtime robots")))
	}
	if err := l.r.Seek(int64(h.DataStart)); err != nil {
		return Result{}, c.invalid(name, err)
	}

	// Clipping: a rectangle reaching the far edge is cut back to it.
	l.res.Width, l.res.Height = h.Width, h.Height
	if l.res.Width+x >= dst.width {
		l.res.Width = dst.width - x
	}
	if l.res.Height+y >= dst.height {
		l.res.Height = dst.height - y
	}

	switch {
	case target == ToBoard && h.Storage == StorageBoard:
		err = l.boardToBoard(dst.board)
	case target == ToBoard:
		err = l.layerToBoard(dst.board)
	default:
		err = l.toLayer(dst)
	}
	if err != nil {
		// Validation guarantees the tile payload is present.
		return l.res, c.invalid(name, err)
	}
	return l.res, nil
}

func savegameInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (c *Codec) invalid(name string, err error) error {
	e := diag.New(diag.CodeMZMFileInvalid, name, fmt.Errorf("%w: %v", diag.ErrInvalid, err))
	c.reporter().Report(e)
	return e
}

type plane struct {
	board         *world.Board
	chars, colors []byte
	width, height int
}

// destination resolves the plane a load writes to. Nothing is modified
// unless (x, y) lies inside it.
func destination(w *world.World, t Target, x, y int) (plane, error) {
	var p plane
	switch t {
	case ToVlayer:
		v := &w.Vlayer
		if !v.Fits() {
			return plane{}, errVlayer(v)
		}
		p = plane{chars: v.Chars, colors: v.Colors, width: v.Width, height: v.Height}
	case ToBoard, ToOverlay:
		b := w.CurrentBoard()
		if b == nil {
			return plane{}, fmt.Errorf("mzm: no current board")
		}
		p = plane{board: b, width: b.Width, height: b.Height}
	default:
		return plane{}, fmt.Errorf("mzm: unknown load target %d", int(t))
	}
	if x < 0 || y < 0 || x >= p.width || y >= p.height {
		return plane{}, fmt.Errorf("%w: origin (%d,%d) outside %dx%d %s", ErrRect, x, y, p.width, p.height, t)
	}
	if t == ToOverlay {
		if p.board.OverlayMode == 0 {
			p.board.SetupOverlay(3)
		}
		p.chars, p.colors = p.board.Overlay, p.board.OverlayColor
	}
	return p, nil
}

type loader struct {
	codec    *Codec
	w        *world.World
	name     string
	data     []byte
	r        *binio.Reader
	h        Header
	x, y     int
	savegame bool
	res      Result
}

func (l *loader) warn(err error) {
	l.res.Warnings = append(l.res.Warnings, err)
	l.codec.reporter().Report(err)
}

type location struct{ x, y int }

func (l *loader) boardToBoard(b *world.Board) error {
	var robots []location
	skipped := l.h.Width - l.res.Width
	for dy := 0; dy < l.res.Height; dy++ {
		off := b.Offset(l.x, l.y+dy)
		for dx := 0; dx < l.res.Width; dx, off = dx+1, off+1 {
			raw, err := l.r.Bytes(6)
			if err != nil {
				return err
			}
			id := world.Thing(raw[0])
			if id >= world.IDSensor {
				if id.IsRobot() {
					robots = append(robots, location{l.x + dx, l.y + dy})
				} else {
					// Objects without their tables are meaningless here.
					id = world.IDSpace
				}
			}

			b.ReleaseCell(off)
			if world.Thing(b.ID[off]) == world.IDPlayer {
				continue
			}
			b.ID[off], b.Param[off], b.Color[off] = byte(id), raw[1], raw[2]
			b.UnderID[off], b.UnderParam[off], b.UnderColor[off] = raw[3], raw[4], raw[5]
			if world.Thing(b.UnderID[off]) >= world.IDSensor {
				b.UnderID[off], b.UnderParam[off], b.UnderColor[off] = 0, 0, 7
			}
		}

		// Clipped columns still hold robots that the robot data lists in
		// order. Any robot id there is taken to be one of them.
		for i := 0; i < skipped; i++ {
			raw, err := l.r.Bytes(6)
			if err != nil {
				return err
			}
			if world.Thing(raw[0]).IsRobot() {
				robots = append(robots, location{NotPlaced, 0})
			}
		}
	}

	if l.h.NumRobots == 0 {
		return nil
	}
	l.placeRobots(b, robots)
	return nil
}

func (l *loader) placeRobots(b *world.Board, locs []location) {
	acc := &robotErrors{}
	src := newRobotSource(l.codec.robots(), l.data, l.h, acc)
	defer src.close()

	dummy := l.h.SavegameMode > savegameInt(l.savegame) || l.h.Version > world.CurrentVersion
	for i := 0; i < l.h.NumRobots; i++ {
		loc := location{NotPlaced, 0}
		if i < len(locs) {
			loc = locs[i]
		}
		r, gone := src.next(i)
		if gone {
			dummy = true
		}

		if dummy {
			l.res.Dummy = true
			l.res.Discarded++
			if loc.x != NotPlaced {
				off := b.Offset(loc.x, loc.y)
				if world.Thing(b.ID[off]) != world.IDPlayer {
					b.ID[off], b.Param[off] = byte(world.IDCustomBlock), r.Char
				}
			}
			continue
		}

		r.WorldVersion = l.w.Version
		if loc.x == NotPlaced {
			l.res.Discarded++
			continue
		}
		off := b.Offset(loc.x, loc.y)
		if world.Thing(b.ID[off]) == world.IDPlayer {
			l.res.Discarded++
			continue
		}
		slot := b.FindFreeRobot()
		if slot == -1 {
			l.res.Discarded++
			b.ID[off], b.Param[off], b.Color[off] = byte(world.IDSpace), 0, 7
			l.warn(diag.New(diag.CodeRobotSlotExhausted, l.name,
				fmt.Errorf("%w: robot %d at (%d,%d)", diag.ErrRobotSlotExhausted, i, loc.x, loc.y)))
			continue
		}
		r.X, r.Y = loc.x, loc.y
		r.Used = true
		b.Robots[slot] = r
		b.Param[off] = byte(slot)
		l.res.Placed++
	}

	if err := acc.err(); err != nil {
		l.warn(diag.New(diag.CodeMZMRobotCorrupt, l.name, fmt.Errorf("%w: %v", diag.ErrRobotCorrupt, err)))
	}
}

func (l *loader) layerToBoard(b *world.Board) error {
	skip := int64(l.h.Width-l.res.Width) * 2
	for dy := 0; dy < l.res.Height; dy++ {
		off := b.Offset(l.x, l.y+dy)
		for dx := 0; dx < l.res.Width; dx, off = dx+1, off+1 {
			raw, err := l.r.Bytes(2)
			if err != nil {
				return err
			}
			b.ReleaseCell(off)
			if world.Thing(b.ID[off]) == world.IDPlayer {
				continue
			}
			b.ID[off], b.Param[off], b.Color[off] = byte(world.IDCustomBlock), raw[0], raw[1]
			b.UnderID[off], b.UnderParam[off], b.UnderColor[off] = 0, 0, 0
		}
		if err := l.r.Skip(skip); err != nil {
			return err
		}
	}
	return nil
}

// toLayer writes chars and colors; board storage contributes its params as
// chars.
func (l *loader) toLayer(p plane) error {
	stride := l.h.Storage.Stride()
	skip := int64(l.h.Width-l.res.Width) * int64(stride)
	for dy := 0; dy < l.res.Height; dy++ {
		off := l.x + (l.y+dy)*p.width
		for dx := 0; dx < l.res.Width; dx, off = dx+1, off+1 {
			raw, err := l.r.Bytes(stride)
			if err != nil {
				return err
			}
			if l.h.Storage == StorageBoard {
				raw = raw[1:3]
			}
			p.chars[off], p.colors[off] = raw[0], raw[1]
		}
		if err := l.r.Skip(skip); err != nil {
			return err
		}
	}
	return nil
}

// ReadSize peeks at the dimensions stored in the region header at path. It
// returns -1, -1 when the file cannot be read or has no valid header.
func ReadSize(path string) (width, height int) {
	f, err := os.Open(path)
	if err != nil {
		return -1, -1
	}
	defer f.Close()
	buf := make([]byte, HeaderSize)
	n, _ := io.ReadFull(f, buf)
	h, err := ParseHeader(buf[:n])
	if err != nil {
		return -1, -1
	}
	return h.Width, h.Height
}

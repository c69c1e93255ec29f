package mzm

import (
	"errors"
	"fmt"
	"os"

	"zeuxkit.dev/internal/archive"
	"zeuxkit.dev/internal/binio"
	"zeuxkit.dev/internal/codec/robotfmt"
	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/world"
)

// SaveMode selects what a region is cut from and how it is stored.
type SaveMode int

const (
	BoardToBoard SaveMode = iota
	OverlayToLayer
	BoardToLayer
	VlayerToLayer
)

func (m SaveMode) String() string {
	switch m {
	case BoardToBoard:
		return "board"
	case OverlayToLayer:
		return "overlay"
	case BoardToLayer:
		return "board-layer"
	case VlayerToLayer:
		return "vlayer"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Storage is the tile layout a save in this mode produces.
func (m SaveMode) Storage() Storage {
	if m == BoardToBoard {
		return StorageBoard
	}
	return StorageLayer
}

// Rect is a region of a board, overlay or vlayer.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Codec saves and loads regions. The zero value uses the default robot
// codec and discards diagnostics.
type Codec struct {
	Robots   RobotCodec
	Reporter diag.Reporter
}

func (c *Codec) robots() RobotCodec {
	if c.Robots == nil {
		return robotfmt.Codec{}
	}
	return c.Robots
}

func (c *Codec) reporter() diag.Reporter { return diag.OrDiscard(c.Reporter) }

// ErrRect is returned for rectangles outside their source or destination.
var ErrRect = errors.New("mzm: rectangle out of bounds")

func errVlayer(v *world.Vlayer) error {
	return fmt.Errorf("%w: vlayer %dx%d has %d chars and %d colors", ErrRect, v.Width, v.Height, len(v.Chars), len(v.Colors))
}

// source returns the plane dimensions a save in mode reads from.
func source(w *world.World, mode SaveMode) (width, height int, err error) {
	if mode == VlayerToLayer {
		if !w.Vlayer.Fits() {
			return 0, 0, errVlayer(&w.Vlayer)
		}
		return w.Vlayer.Width, w.Vlayer.Height, nil
	}
	b := w.CurrentBoard()
	if b == nil {
		return 0, 0, errors.New("mzm: no current board")
	}
	return b.Width, b.Height, nil
}

func checkRect(w *world.World, r Rect, mode SaveMode) error {
	if mode < BoardToBoard || mode > VlayerToLayer {
		return fmt.Errorf("mzm: unknown save mode %d", int(mode))
	}
	sw, sh, err := source(w, mode)
	if err != nil {
		return err
	}
	if r.Width <= 0 || r.Height <= 0 || r.X < 0 || r.Y < 0 ||
		r.X+r.Width > sw || r.Y+r.Height > sh || r.Width > 0xFFFF || r.Height > 0xFFFF {
		return fmt.Errorf("%w: %dx%d at (%d,%d) in %dx%d", ErrRect, r.Width, r.Height, r.X, r.Y, sw, sh)
	}
	return nil
}

// regionRobots lists the robots referenced by robot cells inside r, in
// row-major order. Cells whose slot is empty contribute a blank robot.
func regionRobots(b *world.Board, r Rect) []*world.Robot {
	var out []*world.Robot
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			off := b.Offset(x, y)
			if !world.Thing(b.ID[off]).IsRobot() {
				continue
			}
			p := int(b.Param[off])
			if p < len(b.Robots) && b.Robots[p] != nil {
				out = append(out, b.Robots[p])
			} else {
				out = append(out, world.NewBlankRobot())
			}
		}
	}
	return out
}

// CalculateSize is the exact number of bytes a save of r in mode produces.
func (c *Codec) CalculateSize(w *world.World, r Rect, mode SaveMode, savegame bool) (int, error) {
	if err := checkRect(w, r, mode); err != nil {
		return 0, err
	}
	size := HeaderSize + r.Width*r.Height*mode.Storage().Stride()
	if mode == BoardToBoard {
		robots := regionRobots(w.CurrentBoard(), r)
		if len(robots) > world.MaxRobots {
			return 0, fmt.Errorf("mzm: %d robots in region", len(robots))
		}
		for _, rb := range robots {
			size += c.robots().EncodedSize(rb, savegame)
		}
		if len(robots) > 0 {
			size += archive.BoundTotalHeaderUsage(len(robots), robotNameLen)
		}
	}
	return size, nil
}

// SaveBytes cuts r out of the current board, its overlay or the vlayer.
func (c *Codec) SaveBytes(w *world.World, r Rect, mode SaveMode, savegame bool) ([]byte, error) {
	size, err := c.CalculateSize(w, r, mode, savegame)
	if err != nil {
		return nil, err
	}
	out := binio.NewWriter(make([]byte, size))
	h := Header{
		Variant: VariantMZM3,
		Width:   r.Width,
		Height:  r.Height,
		Storage: mode.Storage(),
		Version: world.CurrentVersion,
	}
	if err := h.put(out); err != nil {
		return nil, fmt.Errorf("mzm: header: %w", err)
	}

	switch mode {
	case BoardToBoard:
		err = c.saveBoard(w, out, h, r, savegame)
	case OverlayToLayer:
		b := w.CurrentBoard()
		if b.OverlayMode == 0 {
			b.SetupOverlay(3)
		}
		err = saveLayer(out, b.Overlay, b.OverlayColor, b.Width, r)
	case VlayerToLayer:
		err = saveLayer(out, w.Vlayer.Chars, w.Vlayer.Colors, w.Vlayer.Width, r)
	case BoardToLayer:
		err = saveBoardChars(w, out, r)
	}
	if err != nil {
		return nil, fmt.Errorf("mzm: save %s: %w", mode, err)
	}
	return out.Bytes(), nil
}

func (c *Codec) saveBoard(w *world.World, out *binio.Writer, h Header, r Rect, savegame bool) error {
	b := w.CurrentBoard()
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			off := b.Offset(x, y)
			id := world.Thing(b.ID[off])
			cell := []byte{byte(id), b.Param[off], b.Color[off], b.UnderID[off], b.UnderParam[off], b.UnderColor[off]}
			switch {
			case id.IsRobot():
				cell[1] = 0
			case id == world.IDSensor || id.IsSignScroll() || id == world.IDPlayer:
				// Objects become inert custom blocks showing the same glyph.
				cell[0], cell[1], cell[2] = byte(world.IDCustomBlock), w.IDChar(b, off), w.IDColor(b, off)
			}
			if _, err := out.Write(cell); err != nil {
				return err
			}
		}
	}
	robots := regionRobots(b, r)
	if len(robots) == 0 {
		return nil
	}

	h.RobotsLocation = out.Tell()
	h.NumRobots = len(robots)
	if savegame {
		h.SavegameMode = 1
	}
	if err := out.Seek(0); err != nil {
		return err
	}
	if err := h.put(out); err != nil {
		return err
	}
	if err := out.Seek(h.RobotsLocation); err != nil {
		return err
	}

	zw := archive.OpenMemWrite(out, int64(h.RobotsLocation))
	for i, rb := range robots {
		dst, err := zw.Create(archive.RobotName(i))
		if err != nil {
			return err
		}
		if err := c.robots().Encode(dst, rb, savegame); err != nil {
			return fmt.Errorf("robot %d: %w", i, err)
		}
	}
	_, err := zw.Close()
	return err
}

func saveLayer(out *binio.Writer, chars, colors []byte, width int, r Rect) error {
	for y := r.Y; y < r.Y+r.Height; y++ {
		off := r.X + y*width
		for x := 0; x < r.Width; x, off = x+1, off+1 {
			if _, err := out.Write([]byte{chars[off], colors[off]}); err != nil {
				return err
			}
		}
	}
	return nil
}

func saveBoardChars(w *world.World, out *binio.Writer, r Rect) error {
	b := w.CurrentBoard()
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			off := b.Offset(x, y)
			if _, err := out.Write([]byte{w.IDChar(b, off), w.IDColor(b, off)}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Save writes a region to path.
func (c *Codec) Save(w *world.World, path string, r Rect, mode SaveMode, savegame bool) error {
	data, err := c.SaveBytes(w, r, mode, savegame)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("mzm: write %s: %w", path, err)
	}
	return nil
}

// SaveToString stores a region in the world string name.
func (c *Codec) SaveToString(w *world.World, name string, r Rect, mode SaveMode, savegame bool) error {
	data, err := c.SaveBytes(w, r, mode, savegame)
	if err != nil {
		return err
	}
	w.SetString(name, data)
	return nil
}

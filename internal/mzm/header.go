// Package mzm saves and loads rectangular regions of a board, its overlay or
// the world vlayer.
//
// A region is a header, a tile payload of 6 bytes per cell (board storage:
// id, param, color, under id, under param, under color) or 2 bytes per cell
// (layer storage: char, color), and, for board storage cut from a board, an
// archive of the robots inside the rectangle.
package mzm

import (
	"errors"
	"fmt"

	"zeuxkit.dev/internal/binio"
	"zeuxkit.dev/internal/world"
)

// Storage is the tile layout of a region.
type Storage byte

const (
	StorageBoard Storage = 0
	StorageLayer Storage = 1
)

// Stride is the number of bytes per cell.
func (s Storage) Stride() int {
	if s == StorageLayer {
		return 2
	}
	return 6
}

func (s Storage) String() string {
	switch s {
	case StorageBoard:
		return "board"
	case StorageLayer:
		return "layer"
	}
	return fmt.Sprintf("storage(%d)", byte(s))
}

// Variant is the header generation selected by the magic.
type Variant int

const (
	VariantMZMX Variant = iota + 1
	VariantMZM2
	VariantMZM3
)

func (v Variant) String() string {
	switch v {
	case VariantMZMX:
		return "MZMX"
	case VariantMZM2:
		return "MZM2"
	case VariantMZM3:
		return "MZM3"
	}
	return "unknown"
}

const (
	// HeaderSize is the size of the header every save writes.
	HeaderSize = 20
	// minHeaderSize is the size of the oldest header.
	minHeaderSize = 16

	robotNameLen = 3
)

// Header is the canonical form of every header generation. Older variants
// leave the fields they lack at the documented defaults: version 2.83, board
// storage, no robots.
type Header struct {
	Variant Variant
	Width   int
	Height  int
	// RobotsLocation is the offset of the robot data, 0 when there is none.
	RobotsLocation int
	NumRobots      int
	Storage        Storage
	SavegameMode   int
	Version        int
	// DataStart is where the tile payload begins.
	DataStart int
}

// DataSize is the size of the tile payload.
func (h Header) DataSize() int { return h.Width * h.Height * h.Storage.Stride() }

var errHeader = errors.New("unrecognized region header")

type headerReader func(r *binio.Reader, h *Header) error

var headerReaders = map[string]struct {
	variant Variant
	minSize int
	read    headerReader
}{
	"MZMX": {VariantMZMX, minHeaderSize, readMZMX},
	"MZM2": {VariantMZM2, minHeaderSize, readMZM2},
	"MZM3": {VariantMZM3, HeaderSize, readMZM3},
}

// ParseHeader decodes the header at the start of buf.
func ParseHeader(buf []byte) (Header, error) {
	h := Header{Version: world.V283, Storage: StorageBoard}
	if len(buf) < minHeaderSize {
		return h, fmt.Errorf("%w: %d bytes", errHeader, len(buf))
	}
	v, ok := headerReaders[string(buf[:4])]
	if !ok {
		return h, fmt.Errorf("%w: magic %q", errHeader, buf[:4])
	}
	if len(buf) < v.minSize {
		return h, fmt.Errorf("%w: %s needs %d bytes, have %d", errHeader, v.variant, v.minSize, len(buf))
	}
	h.Variant = v.variant
	r := binio.NewBytesReader(buf)
	if err := r.Seek(4); err != nil {
		return h, err
	}
	if err := v.read(r, &h); err != nil {
		return h, fmt.Errorf("%w: %s: %v", errHeader, v.variant, err)
	}
	h.DataStart = int(r.Tell())
	return h, nil
}

func readMZMX(r *binio.Reader, h *Header) error {
	w, err := r.U8()
	if err != nil {
		return err
	}
	ht, err := r.U8()
	if err != nil {
		return err
	}
	h.Width, h.Height = int(w), int(ht)
	return r.Skip(10)
}

// readCommon reads the fields MZM2 and MZM3 share.
func readCommon(r *binio.Reader, h *Header) error {
	w, err1 := r.U16()
	ht, err2 := r.U16()
	loc, err3 := r.U32()
	n, err4 := r.U8()
	mode, err5 := r.U8()
	save, err6 := r.U8()
	if err := errors.Join(err1, err2, err3, err4, err5, err6); err != nil {
		return err
	}
	h.Width, h.Height = int(w), int(ht)
	h.RobotsLocation = int(loc)
	h.NumRobots = int(n)
	h.Storage = Storage(mode)
	h.SavegameMode = int(save)
	return nil
}

func readMZM2(r *binio.Reader, h *Header) error {
	if err := readCommon(r, h); err != nil {
		return err
	}
	return r.Skip(1)
}

func readMZM3(r *binio.Reader, h *Header) error {
	if err := readCommon(r, h); err != nil {
		return err
	}
	v, err := r.U16()
	if err != nil {
		return err
	}
	h.Version = int(v)
	return r.Skip(3)
}

// validate checks the declarations against a buffer of size bytes.
func (h Header) validate(size int) error {
	switch {
	case h.SavegameMode < 0 || h.SavegameMode > 1:
		return fmt.Errorf("savegame mode %d", h.SavegameMode)
	case h.Storage != StorageBoard && h.Storage != StorageLayer:
		return fmt.Errorf("storage mode %d", h.Storage)
	case size-h.DataStart < h.DataSize():
		return fmt.Errorf("tile data needs %d bytes, %d remain", h.DataSize(), size-h.DataStart)
	case size < h.RobotsLocation:
		return fmt.Errorf("robot data at %d is past the end (%d)", h.RobotsLocation, size)
	case h.RobotsLocation != 0 && h.DataStart+h.DataSize() > h.RobotsLocation:
		return fmt.Errorf("robot data at %d overlaps tile data ending at %d", h.RobotsLocation, h.DataStart+h.DataSize())
	}
	return nil
}

func (h Header) put(w *binio.Writer) error {
	if _, err := w.Write([]byte("MZM3")); err != nil {
		return err
	}
	return errors.Join(
		w.PutU16(uint16(h.Width)),
		w.PutU16(uint16(h.Height)),
		w.PutU32(uint32(h.RobotsLocation)),
		w.PutU8(byte(h.NumRobots)),
		w.PutU8(byte(h.Storage)),
		w.PutU8(byte(h.SavegameMode)),
		w.PutU16(uint16(h.Version)),
		w.PutU8(0), w.PutU8(0), w.PutU8(0),
	)
}

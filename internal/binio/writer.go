package binio

import (
	"encoding/binary"
	"fmt"
)

// Writer is a fixed-capacity cursor over a preallocated buffer. Writing past
// the capacity fails instead of growing, so callers that pre-size a buffer
// learn immediately when the size computation was wrong.
type Writer struct {
	buf []byte
	pos int
	end int
}

func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) Tell() int      { return w.pos }
func (w *Writer) Len() int       { return w.end }
func (w *Writer) Cap() int       { return len(w.buf) }
func (w *Writer) Bytes() []byte  { return w.buf[:w.end] }
func (w *Writer) Buffer() []byte { return w.buf }

func (w *Writer) Seek(off int) error {
	if off < 0 || off > len(w.buf) {
		return fmt.Errorf("%w: seek %d (cap %d)", ErrOutOfBounds, off, len(w.buf))
	}
	w.pos = off
	return nil
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) > len(w.buf)-w.pos {
		return 0, fmt.Errorf("%w: write %d at %d (cap %d)", ErrOutOfBounds, len(p), w.pos, len(w.buf))
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	if w.pos > w.end {
		w.end = w.pos
	}
	return n, nil
}

func (w *Writer) PutU8(v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func (w *Writer) PutU16(v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func (w *Writer) PutU32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// Package binio provides little-endian cursors over bounded byte sources.
//
// Unlike os.File, a Reader never seeks past the end of its source: every skip
// and read is checked against the declared size, so structural scans can tell
// a truncated file from a short field.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var ErrOutOfBounds = errors.New("binio: out of bounds")

// Reader is a seekable cursor over an io.ReaderAt of known size.
type Reader struct {
	r    io.ReaderAt
	size int64
	pos  int64
	buf  [4]byte
}

func NewReader(r io.ReaderAt, size int64) *Reader {
	return &Reader{r: r, size: size}
}

// NewBytesReader wraps an in-memory buffer.
func NewBytesReader(b []byte) *Reader {
	return &Reader{r: bytesAt(b), size: int64(len(b))}
}

func (r *Reader) Size() int64 { return r.size }
func (r *Reader) Tell() int64 { return r.pos }

// Remaining is the number of bytes between the cursor and the end.
func (r *Reader) Remaining() int64 { return r.size - r.pos }

// Seek moves the cursor to an absolute offset. Offsets past the end fail.
func (r *Reader) Seek(off int64) error {
	if off < 0 || off > r.size {
		return fmt.Errorf("%w: seek %d (size %d)", ErrOutOfBounds, off, r.size)
	}
	r.pos = off
	return nil
}

// Skip moves the cursor forward (or backward for negative n).
func (r *Reader) Skip(n int64) error {
	return r.Seek(r.pos + n)
}

// Read fills p completely or fails without moving the cursor.
func (r *Reader) Read(p []byte) error {
	if int64(len(p)) > r.Remaining() {
		return fmt.Errorf("%w: read %d at %d (size %d)", ErrOutOfBounds, len(p), r.pos, r.size)
	}
	if len(p) == 0 {
		return nil
	}
	n, err := r.r.ReadAt(p, r.pos)
	if n < len(p) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	r.pos += int64(n)
	return nil
}

// Bytes reads n bytes into a new slice.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrOutOfBounds, n)
	}
	if int64(n) > r.Remaining() {
		return nil, fmt.Errorf("%w: %d bytes at %d, %d remain", ErrOutOfBounds, n, r.Tell(), r.Remaining())
	}
	p := make([]byte, n)
	if err := r.Read(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.Read(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

func (r *Reader) U16() (uint16, error) {
	if err := r.Read(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.buf[:2]), nil
}

func (r *Reader) U32() (uint32, error) {
	if err := r.Read(r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.buf[:4]), nil
}

// I32 reads a signed dword; legacy counts and lengths are signed on disk.
func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

type bytesAt []byte

func (b bytesAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Package rle implements the RLE2 plane encoding used by board payloads.
//
// A byte with the high bit set is a run: its low 7 bits are the run length and
// the next byte is the value. Any other byte is a literal. Literals with the
// high bit set are written as runs of one.
package rle

import (
	"bytes"
	"errors"
	"fmt"
)

const maxRun = 0x7F

var ErrTruncated = errors.New("rle: truncated plane")

// Encode run-length encodes one plane.
func Encode(plane []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(plane) / 2)

	i := 0
	for i < len(plane) {
		b := plane[i]
		run := 1
		for j := i + 1; j < len(plane) && plane[j] == b && run < maxRun; j++ {
			run++
		}

		if run == 1 && b&0x80 == 0 {
			buf.WriteByte(b)
		} else {
			buf.WriteByte(0x80 | byte(run))
			buf.WriteByte(b)
		}

		i += run
	}
	return buf.Bytes()
}

// Decode expands exactly n bytes from data and returns them with the number
// of input bytes consumed. A run that would overflow n is clipped.
func Decode(data []byte, n int) ([]byte, int, error) {
	out := make([]byte, 0, n)
	i := 0
	for len(out) < n {
		if i >= len(data) {
			return nil, i, fmt.Errorf("%w: %d of %d bytes", ErrTruncated, len(out), n)
		}
		c := data[i]
		i++
		if c&0x80 == 0 {
			out = append(out, c)
			continue
		}
		if i >= len(data) {
			return nil, i, fmt.Errorf("%w: run without value at %d", ErrTruncated, i-1)
		}
		v := data[i]
		i++
		run := int(c & 0x7F)
		if run > n-len(out) {
			run = n - len(out)
		}
		for k := 0; k < run; k++ {
			out = append(out, v)
		}
	}
	return out, i, nil
}

// Package archive is the named-entry container that carries robot payloads
// inside region buffers. Entries are stored uncompressed so the container
// overhead is known exactly before writing.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/klauspost/compress/zip"
)

const (
	localHeaderSize   = 30
	dataDescriptorLen = 16
	centralHeaderSize = 46
	endRecordSize     = 22
)

// BoundTotalHeaderUsage is the container overhead for entries stored entries
// whose names are at most nameLen bytes long.
func BoundTotalHeaderUsage(entries, nameLen int) int {
	if entries <= 0 {
		return endRecordSize
	}
	per := localHeaderSize + dataDescriptorLen + centralHeaderSize + 2*nameLen
	return entries*per + endRecordSize
}

// Kind classifies an entry by its name.
type Kind int

const (
	KindOther Kind = iota
	KindRobot
)

// Prop is the parsed identity of an entry.
type Prop struct {
	Kind Kind
	ID   int
	Name string
}

// RobotName is the entry name for the robot stored at index id.
func RobotName(id int) string {
	return fmt.Sprintf("r%02X", byte(id))
}

// ParseName recovers the kind and id encoded in an entry name.
func ParseName(name string) Prop {
	p := Prop{Kind: KindOther, Name: name}
	if len(name) == 3 && name[0] == 'r' {
		if v, err := strconv.ParseUint(name[1:], 16, 8); err == nil {
			p.Kind, p.ID = KindRobot, int(v)
		}
	}
	return p
}

// Writer appends a container to a stream that already holds offset bytes.
type Writer struct {
	zw *zip.Writer
	cw *countingWriter
}

// OpenMemWrite starts a container whose recorded offsets begin at offset, so
// the result can follow other data in the same buffer.
func OpenMemWrite(w io.Writer, offset int64) *Writer {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	zw.SetOffset(offset)
	return &Writer{zw: zw, cw: cw}
}

// Create opens a stored entry for writing.
func (w *Writer) Create(name string) (io.Writer, error) {
	return w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
}

// WriteEntry writes one complete entry.
func (w *Writer) WriteEntry(name string, payload []byte) error {
	dst, err := w.Create(name)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", name, err)
	}
	if _, err := dst.Write(payload); err != nil {
		return fmt.Errorf("archive: write %s: %w", name, err)
	}
	return nil
}

// Close finalizes the central directory and returns the number of bytes the
// container occupies.
func (w *Writer) Close() (int64, error) {
	if err := w.zw.Close(); err != nil {
		return w.cw.n, err
	}
	return w.cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var ErrNoEntry = errors.New("archive: no current entry")

// Reader walks the entries of a container in (kind, id) order. Next peeks
// the current entry; Skip and Read consume it.
type Reader struct {
	files []*zip.File
	props []Prop
	pos   int
}

// OpenMemRead opens the container at the end of buf.
func OpenMemRead(buf []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	r := &Reader{files: zr.File, props: make([]Prop, len(zr.File))}
	for i, f := range zr.File {
		r.props[i] = ParseName(f.Name)
	}
	sort.Stable(byProp{r})
	return r, nil
}

type byProp struct{ r *Reader }

func (s byProp) Len() int { return len(s.r.files) }
func (s byProp) Less(i, j int) bool {
	a, b := s.r.props[i], s.r.props[j]
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.ID < b.ID
}
func (s byProp) Swap(i, j int) {
	s.r.files[i], s.r.files[j] = s.r.files[j], s.r.files[i]
	s.r.props[i], s.r.props[j] = s.r.props[j], s.r.props[i]
}

// Len is the number of entries in the container.
func (r *Reader) Len() int { return len(r.files) }

// Next returns the current entry without consuming it, or io.EOF.
func (r *Reader) Next() (Prop, error) {
	if r.pos >= len(r.files) {
		return Prop{}, io.EOF
	}
	return r.props[r.pos], nil
}

// Skip consumes the current entry.
func (r *Reader) Skip() {
	if r.pos < len(r.files) {
		r.pos++
	}
}

// Read consumes the current entry and returns its contents.
func (r *Reader) Read() ([]byte, error) {
	if r.pos >= len(r.files) {
		return nil, ErrNoEntry
	}
	f := r.files[r.pos]
	r.pos++
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", f.Name, err)
	}
	return data, nil
}

func (r *Reader) Close() error {
	r.files, r.props, r.pos = nil, nil, 0
	return nil
}

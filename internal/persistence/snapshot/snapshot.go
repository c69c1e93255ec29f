// Package snapshot stores a decoded world as a JSON header line followed by
// a gob body, zstd-compressed.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"zeuxkit.dev/internal/world"
)

const Version = 1

type Header struct {
	Version       int    `json:"version"`
	Name          string `json:"name"`
	FormatVersion int    `json:"format_version"`
	Boards        int    `json:"boards"`
	Source        string `json:"source,omitempty"`
}

// Slot is one entry of an object table; empty slots keep their position.
type Slot[T any] struct {
	Present bool
	Value   T
}

// BoardV1 is a board with its object tables flattened. Robot slot 0 belongs
// to the world and is not stored.
type BoardV1 struct {
	Present bool
	Board   world.Board
	Robots  []Slot[world.Robot]
	Scrolls []Slot[world.Scroll]
	Sensors []Slot[world.Sensor]
}

type SnapshotV1 struct {
	Header Header
	World  world.World
	Boards []BoardV1
}

func slots[T any](in []*T) []Slot[T] {
	out := make([]Slot[T], len(in))
	for i, v := range in {
		if v != nil {
			out[i] = Slot[T]{Present: true, Value: *v}
		}
	}
	return out
}

func unslot[T any](in []Slot[T]) []*T {
	out := make([]*T, len(in))
	for i := range in {
		if in[i].Present {
			v := in[i].Value
			out[i] = &v
		}
	}
	return out
}

// FromWorld captures w. The world is not modified.
func FromWorld(w *world.World, source string) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{
			Version:       Version,
			Name:          w.Name,
			FormatVersion: w.Version,
			Boards:        len(w.Boards),
			Source:        source,
		},
		World: *w,
	}
	snap.World.Boards = nil
	if w.GlobalRobot == nil {
		snap.World.GlobalRobot = world.NewBlankRobot()
	}
	for _, b := range w.Boards {
		if b == nil {
			snap.Boards = append(snap.Boards, BoardV1{})
			continue
		}
		bv := BoardV1{Present: true, Board: *b}
		bv.Board.Robots, bv.Board.Scrolls, bv.Board.Sensors = nil, nil, nil
		if len(b.Robots) > 1 {
			bv.Robots = slots(b.Robots[1:])
		}
		bv.Scrolls = slots(b.Scrolls)
		bv.Sensors = slots(b.Sensors)
		snap.Boards = append(snap.Boards, bv)
	}
	return snap
}

// ToWorld rebuilds the world, binding every board to the global robot.
func (s SnapshotV1) ToWorld() *world.World {
	w := s.World
	w.Boards = nil
	for _, bv := range s.Boards {
		if !bv.Present {
			w.Boards = append(w.Boards, nil)
			continue
		}
		b := bv.Board
		b.Robots = append([]*world.Robot{w.GlobalRobot}, unslot(bv.Robots)...)
		b.Scrolls = unslot(bv.Scrolls)
		b.Sensors = unslot(bv.Sensors)
		w.Boards = append(w.Boards, &b)
	}
	return &w
}

func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func open(path string) (*os.File, *zstd.Decoder, *bufio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, nil, err
	}
	return f, dec, bufio.NewReaderSize(dec, 256*1024), nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, dec, br, err := open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	defer dec.Close()

	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, dec, br, err := open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	defer dec.Close()

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot version %d not supported", snap.Header.Version)
	}
	return snap, nil
}

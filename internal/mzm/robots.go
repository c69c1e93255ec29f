package mzm

import (
	"errors"
	"fmt"
	"io"

	"zeuxkit.dev/internal/archive"
	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/world"
)

// RobotCodec reads and writes robot payloads for regions.
type RobotCodec interface {
	LegacyPartialSize(savegame bool, version int) int
	LegacySize(head []byte, savegame bool, version int) (int, error)
	DecodeLegacy(data []byte, savegame bool, version int) (*world.Robot, error)
	EncodedSize(r *world.Robot, savegame bool) int
	Encode(w io.Writer, r *world.Robot, savegame bool) error
	Decode(data []byte, savegame bool, version int) (*world.Robot, error)
}

// robotErrors collects the per-robot failures of one region load.
type robotErrors struct {
	errs []error
}

func (a *robotErrors) add(i int, err error) {
	a.errs = append(a.errs, fmt.Errorf("robot %d: %w", i, err))
}

func (a *robotErrors) err() error {
	if len(a.errs) == 0 {
		return nil
	}
	return errors.Join(a.errs...)
}

// robotSource yields the embedded robots of a region in index order. A nil
// robot is never returned; failures produce blank robots. dummy reports that
// this and every later robot can no longer be trusted.
type robotSource interface {
	next(i int) (r *world.Robot, dummy bool)
	close()
}

// legacySource walks robots stored back to back in the legacy layout.
type legacySource struct {
	codec    RobotCodec
	data     []byte
	pos      int
	savegame bool
	version  int
	partial  int
	acc      *robotErrors
	dummy    bool
}

func newLegacySource(codec RobotCodec, data []byte, h Header, acc *robotErrors) *legacySource {
	savegame := h.SavegameMode != 0
	return &legacySource{
		codec:    codec,
		data:     data,
		pos:      h.RobotsLocation,
		savegame: savegame,
		version:  h.Version,
		partial:  codec.LegacyPartialSize(savegame, h.Version),
		acc:      acc,
	}
}

func (s *legacySource) next(i int) (*world.Robot, bool) {
	if s.dummy || s.pos+s.partial > len(s.data) {
		return s.exhaust(i)
	}
	size, err := s.codec.LegacySize(s.data[s.pos:s.pos+s.partial], s.savegame, s.version)
	if err != nil || s.pos+size > len(s.data) {
		return s.exhaust(i)
	}
	raw := s.data[s.pos : s.pos+size]
	s.pos += size
	r, err := s.codec.DecodeLegacy(raw, s.savegame, s.version)
	if err != nil {
		s.acc.add(i, err)
		return world.NewBlankRobot(), false
	}
	return r, false
}

// exhaust moves to the end of the data; everything from here on is a dummy.
func (s *legacySource) exhaust(i int) (*world.Robot, bool) {
	if !s.dummy {
		s.acc.add(i, fmt.Errorf("%w: truncated at %d", diag.ErrRobotCorrupt, s.pos))
	}
	s.pos = len(s.data)
	s.dummy = true
	return world.NewBlankRobot(), true
}

func (s *legacySource) close() {}

// archiveSource takes robots from the archive container in ascending id
// order. Entries that are not robots, or that precede the wanted index, are
// skipped; a gap yields a blank robot.
type archiveSource struct {
	codec    RobotCodec
	zr       *archive.Reader
	savegame bool
	version  int
	acc      *robotErrors
}

func newArchiveSource(codec RobotCodec, data []byte, h Header, acc *robotErrors) *archiveSource {
	s := &archiveSource{codec: codec, savegame: h.SavegameMode != 0, version: h.Version, acc: acc}
	zr, err := archive.OpenMemRead(data)
	if err != nil {
		acc.add(0, err)
		return s
	}
	s.zr = zr
	return s
}

func (s *archiveSource) next(i int) (*world.Robot, bool) {
	if s.zr == nil {
		return world.NewBlankRobot(), true
	}
	for {
		p, err := s.zr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("%w: no entry %s", diag.ErrRobotMissing, archive.RobotName(i))
			}
			s.acc.add(i, err)
			return world.NewBlankRobot(), true
		}
		switch {
		case p.Kind != archive.KindRobot || p.ID < i:
			s.zr.Skip()
			continue
		case p.ID > i:
			// A gap in the ids is a missing robot, not a corrupt one.
			return world.NewBlankRobot(), false
		}
		data, err := s.zr.Read()
		if err != nil {
			s.acc.add(i, err)
			return world.NewBlankRobot(), false
		}
		r, err := s.codec.Decode(data, s.savegame, s.version)
		if err != nil {
			s.acc.add(i, err)
			return world.NewBlankRobot(), false
		}
		return r, false
	}
}

func (s *archiveSource) close() {
	if s.zr != nil {
		_ = s.zr.Close()
	}
}

// newRobotSource picks the sourcing strategy once per load.
func newRobotSource(codec RobotCodec, data []byte, h Header, acc *robotErrors) robotSource {
	if h.Version <= world.LegacyFormatVersion {
		return newLegacySource(codec, data, h, acc)
	}
	return newArchiveSource(codec, data, h, acc)
}

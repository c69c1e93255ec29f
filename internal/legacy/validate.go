package legacy

import (
	"errors"
	"fmt"
	"os"

	"zeuxkit.dev/internal/binio"
	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/world"
)

// Result is the coarse outcome of a validation.
type Result int

const (
	Success Result = iota
	Missing
	Invalid
	VersionMismatch
	Protected
	Aborted
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Missing:
		return "missing"
	case Invalid:
		return "invalid"
	case VersionMismatch:
		return "version_mismatch"
	case Protected:
		return "protected"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// Validation describes a scanned file. Version is set once a signature was
// recognized; Method once the protection byte was read; Boards once the
// board table was reached.
type Validation struct {
	Result  Result
	Version int
	Method  int
	Boards  int
	Err     error
}

// Validate structurally scans a world (savegame=false) or savegame without
// modifying it. Every diagnostic is also sent to rep.
func Validate(path string, savegame bool, rep diag.Reporter) Validation {
	rep = diag.OrDiscard(rep)
	v := validate(path, savegame)
	if v.Err != nil {
		rep.Report(v.Err)
	}
	return v
}

func validate(path string, savegame bool) Validation {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return Validation{Result: Missing, Err: diag.New(diag.CodeFileDoesNotExist, path, diag.ErrFileMissing)}
	}
	f, err := os.Open(path)
	if err != nil {
		return Validation{Result: Missing, Err: diag.New(diag.CodeFileDoesNotExist, path, diag.ErrFileMissing)}
	}
	defer f.Close()

	s := &scan{r: binio.NewReader(f, st.Size()), path: path, savegame: savegame}
	return s.run()
}

type scan struct {
	r        *binio.Reader
	path     string
	savegame bool
	out      Validation
}

// errSection marks which part of the layout failed.
type errSection struct {
	section string
	err     error
}

func (e *errSection) Error() string {
	if e.err == nil {
		return e.section
	}
	return e.section + ": " + e.err.Error()
}

func (e *errSection) Unwrap() error { return e.err }

func fail(section string, err error) error { return &errSection{section: section, err: err} }

func (s *scan) run() Validation {
	var err error
	if s.savegame {
		err = s.saveBody()
	} else {
		err = s.worldBody()
	}
	if err == nil && s.out.Result == Success {
		err = s.tail()
	}
	if err != nil {
		code := diag.CodeWorldFileInvalid
		if s.savegame {
			code = diag.CodeSaveFileInvalid
		}
		s.out.Result = Invalid
		s.out.Err = diag.New(code, s.path, fmt.Errorf("%w: %v", diag.ErrInvalid, err))
	}
	return s.out
}

func (s *scan) version(v int, tooOld, tooNew string, minimum int) bool {
	s.out.Version = v
	switch {
	case v > world.LegacyFormatVersion:
		s.out.Result = VersionMismatch
		s.out.Err = diag.WithVersion(tooNew, s.path, v, diag.ErrVersionTooNew)
	case v < minimum:
		s.out.Result = VersionMismatch
		s.out.Err = diag.WithVersion(tooOld, s.path, v, diag.ErrVersionTooOld)
	default:
		return true
	}
	return false
}

func (s *scan) saveBody() error {
	r := s.r
	magic, err := r.Bytes(5)
	if err != nil {
		return fail("magic", err)
	}
	v := SaveMagic(magic)
	if v == 0 {
		return fail("magic", nil)
	}
	// Only 2.84 savegames load; older ones carry incompatible runtime state.
	if !s.version(v, diag.CodeSaveVersionOld, diag.CodeSaveVersionTooRecent, world.LegacyFormatVersion) {
		return nil
	}

	if err := s.skips("pre-counters", saveHeaderSize-5, Block1Size, saveBlockSize); err != nil {
		return err
	}
	if err := s.wordBlock("pre-counters"); err != nil {
		return err
	}
	if err := s.skips("pre-counters", Block2Size, saveRuntimeSize); err != nil {
		return err
	}

	n, err := s.count("counter count")
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := r.Skip(4); err != nil {
			return fail("counters", err)
		}
		if err := s.dwordBlock("counters"); err != nil {
			return err
		}
	}

	n, err = s.count("string count")
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		name, err1 := r.I32()
		value, err2 := r.I32()
		if err := errors.Join(err1, err2); err != nil {
			return fail("strings", err)
		}
		if name < 0 || value < 0 {
			return fail("strings", fmt.Errorf("negative length %d/%d", name, value))
		}
		if err := s.skips("strings", int(name), int(value)); err != nil {
			return err
		}
	}

	if err := s.skips("post strings", spriteBlockSize, miscBlockSize); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if err := s.wordBlock("post strings"); err != nil {
			return err
		}
		if err := s.skips("post strings", 4); err != nil {
			return err
		}
	}

	mode, err := r.U16()
	if err != nil {
		return fail("screen mode", err)
	}
	if mode > 3 {
		return fail("screen mode", fmt.Errorf("mode %d", mode))
	}
	if mode > 1 {
		if err := s.skips("smzx palette", smzxPaletteSize); err != nil {
			return err
		}
	}

	if err := s.skips("vlayer", 4); err != nil {
		return err
	}
	size, err := r.I32()
	if err != nil {
		return fail("vlayer", err)
	}
	if size < 0 {
		return fail("vlayer", fmt.Errorf("negative size %d", size))
	}
	return s.skips("vlayer", 4, int(size), int(size))
}

func (s *scan) worldBody() error {
	r := s.r
	if err := r.Seek(GlobalOffsetOffset); err != nil {
		return fail("truncated header", err)
	}
	if err := r.Seek(protectionOffset); err != nil {
		return fail("protection", err)
	}
	method, err := r.U8()
	if err != nil {
		return fail("protection", err)
	}
	s.out.Method = int(method)
	if method > 0 {
		if method > 3 {
			return fail("protection", fmt.Errorf("method %d", method))
		}
		s.out.Result = Protected
		s.out.Err = diag.New(diag.CodeWorldPasswordProtected, s.path, diag.ErrProtected)
		return nil
	}

	magic, err := r.Bytes(3)
	if err != nil {
		return fail("magic", err)
	}
	v := WorldMagic(magic)
	if v == 0 {
		return fail("magic", nil)
	}
	if !s.version(v, diag.CodeWorldVersionOld, diag.CodeWorldVersionTooRecent, world.V251) {
		return nil
	}

	if err := r.Seek(paletteOffset); err != nil {
		return fail("palette", err)
	}
	pal, err := r.Bytes(48)
	if err != nil {
		return fail("palette", err)
	}
	for i, c := range pal {
		if c > 63 {
			return fail("palette", fmt.Errorf("component %d is %d", i, c))
		}
	}
	return nil
}

// tail checks the SFX table and the board table; both layouts share it.
func (s *scan) tail() error {
	r := s.r
	if err := s.skips("global robot", 4); err != nil {
		return err
	}
	boards, err := r.U8()
	if err != nil {
		return fail("board count", err)
	}
	if boards == 0 {
		size, err := r.U16()
		if err != nil {
			return fail("sfx", err)
		}
		start := r.Tell()
		for i := 0; i < world.NumSFX; i++ {
			n, err := r.U8()
			if err != nil {
				return fail("sfx", err)
			}
			if n > world.LegacySFXSize {
				return fail("sfx", fmt.Errorf("effect %d is %d bytes", i, n))
			}
			if err := r.Skip(int64(n)); err != nil {
				return fail("sfx", err)
			}
		}
		if got := r.Tell() - start; got != int64(size) {
			return fail("sfx", fmt.Errorf("table spans %d bytes, declared %d", got, size))
		}
		if boards, err = r.U8(); err != nil {
			return fail("board count", err)
		}
	}
	if boards == 0 {
		return fail("board count", errors.New("no boards"))
	}
	s.out.Boards = int(boards)

	start := r.Tell()
	if err := s.skips("board table", int(boards)*nameSize, int(boards)*8); err != nil {
		return err
	}
	if r.Tell()-start != int64(boards)*boardTableEntrySize {
		return fail("board table", nil)
	}
	return nil
}

func (s *scan) skips(section string, sizes ...int) error {
	for _, n := range sizes {
		if err := s.r.Skip(int64(n)); err != nil {
			return fail(section, err)
		}
	}
	return nil
}

func (s *scan) wordBlock(section string) error {
	n, err := s.r.U16()
	if err != nil {
		return fail(section, err)
	}
	return s.skips(section, int(n))
}

func (s *scan) dwordBlock(section string) error {
	n, err := s.r.I32()
	if err != nil {
		return fail(section, err)
	}
	if n < 0 {
		return fail(section, fmt.Errorf("negative length %d", n))
	}
	return s.skips(section, int(n))
}

func (s *scan) count(section string) (int, error) {
	n, err := s.r.I32()
	if err != nil {
		return 0, fail(section, err)
	}
	if n < 0 {
		return 0, fail(section, fmt.Errorf("negative count %d", n))
	}
	return int(n), nil
}

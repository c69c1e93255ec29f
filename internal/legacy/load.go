package legacy

import (
	"errors"
	"fmt"
	"io"
	"os"

	"zeuxkit.dev/internal/binio"
	"zeuxkit.dev/internal/codec/boardfmt"
	"zeuxkit.dev/internal/codec/robotfmt"
	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/world"
)

// BoardCodec decodes one board payload.
type BoardCodec interface {
	Decode(data []byte, savegame bool, version int) (*world.Board, error)
}

// RobotCodec decodes robots stored in the legacy layout.
type RobotCodec interface {
	LegacyPartialSize(savegame bool, version int) int
	LegacySize(head []byte, savegame bool, version int) (int, error)
	DecodeLegacy(data []byte, savegame bool, version int) (*world.Robot, error)
}

// BoardStore takes ownership of each board once it is fully loaded.
type BoardStore interface {
	Store(b *world.Board)
}

// Options wires the decoder's collaborators. Nil fields use the defaults.
type Options struct {
	Boards   BoardCodec
	Robots   RobotCodec
	Store    BoardStore
	Reporter diag.Reporter
}

// Load decodes the validated, unprotected file at path.
func Load(path string, savegame bool, opts Options) (*world.World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, diag.New(diag.CodeFileDoesNotExist, path, fmt.Errorf("%w: %v", diag.ErrFileMissing, err))
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, diag.New(diag.CodeIORead, path, fmt.Errorf("%w: %v", diag.ErrIO, err))
	}
	return Decode(f, st.Size(), path, savegame, opts)
}

// Decode reads a world from r. A failure in the fixed preamble aborts the
// load; later per-board, per-robot and per-name failures are reported and
// degrade the result instead. A returned error means the world must be
// discarded.
func Decode(r io.ReaderAt, size int64, name string, savegame bool, opts Options) (*world.World, error) {
	d := &decoder{
		r:        binio.NewReader(r, size),
		file:     name,
		savegame: savegame,
		boards:   opts.Boards,
		robots:   opts.Robots,
		store:    opts.Store,
		rep:      diag.OrDiscard(opts.Reporter),
	}
	if d.robots == nil {
		d.robots = robotfmt.Codec{}
	}
	if d.boards == nil {
		d.boards = boardfmt.Codec{Reporter: d.rep, File: name}
	}

	w, err := d.decode()
	if err != nil {
		e := diag.New(diag.CodeIORead, name, fmt.Errorf("%w: %v", diag.ErrIO, err))
		d.rep.Report(e)
		return nil, e
	}
	return w, nil
}

type decoder struct {
	r        *binio.Reader
	file     string
	savegame bool
	version  int
	boards   BoardCodec
	robots   RobotCodec
	store    BoardStore
	rep      diag.Reporter

	// err latches the first fixed-field read failure.
	err error
}

func (d *decoder) u8() byte {
	v, err := d.r.U8()
	d.latch(err)
	return v
}

func (d *decoder) u16() int {
	v, err := d.r.U16()
	d.latch(err)
	return int(v)
}

func (d *decoder) i32() int32 {
	v, err := d.r.I32()
	d.latch(err)
	return v
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return make([]byte, max(n, 0))
	}
	b, err := d.r.Bytes(n)
	d.latch(err)
	if err != nil {
		return make([]byte, max(n, 0))
	}
	return b
}

func (d *decoder) latch(err error) {
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("at offset %d: %w", d.r.Tell(), err)
	}
}

// check returns the latched failure annotated with the section being read.
func (d *decoder) check(section string) error {
	if d.err != nil {
		return fmt.Errorf("%s: %w", section, d.err)
	}
	return nil
}

func (d *decoder) decode() (*world.World, error) {
	w := world.New()

	if d.savegame {
		d.latch(d.r.Seek(5))
		w.Version = d.u16()
		w.CurrentBoardID = int(d.u8())
	} else {
		head := d.bytes(worldHeaderSize)
		if err := d.check("header"); err != nil {
			return nil, err
		}
		w.Name = world.CString(head[:nameSize-1])
		w.Version = WorldMagic(head[nameSize+1:])
		if w.Version == 0 {
			return nil, errors.New("header: unrecognized signature")
		}
		w.CurrentBoardID = 0
	}
	d.version = w.Version

	w.Charset = d.bytes(world.CharSize * world.CharsetSize)
	copy(w.IDChars[:], d.bytes(world.LegacyIDCharsSize))
	w.MissileColor = d.u8()
	copy(w.BulletColor[:], d.bytes(world.IDBulletColorSize))
	copy(w.IDDmg[:], d.bytes(world.IDDmgSize))

	// Stored names are not reliably terminated.
	status := d.bytes(world.NumStatusCounters * world.CounterNameSize)
	for i := range w.StatusCounters {
		off := i * world.CounterNameSize
		w.StatusCounters[i] = world.CString(status[off : off+world.CounterNameSize-1])
	}
	if err := d.check("tables"); err != nil {
		return nil, err
	}

	if d.savegame {
		d.savedPlayer(w)
		if err := d.check("saved player"); err != nil {
			return nil, err
		}
	}

	d.shared(w)
	if err := d.check("world settings"); err != nil {
		return nil, err
	}

	if d.savegame {
		if err := d.runtime(w); err != nil {
			return nil, err
		}
	}

	return w, d.tail(w)
}

func (d *decoder) savedPlayer(w *world.World) {
	copy(w.Keys[:], d.bytes(world.NumKeys))
	w.BlindDur = d.u8()
	w.FirewalkerDur = d.u8()
	w.FreezeTimeDur = d.u8()
	w.SlowTimeDur = d.u8()
	w.WindDur = d.u8()
	for i := range w.PlSavedX {
		w.PlSavedX[i] = d.u16()
	}
	for i := range w.PlSavedY {
		w.PlSavedY[i] = d.u16()
	}
	copy(w.PlSavedBoard[:], d.bytes(world.NumSavedPositions))
	w.SavedPlColor = d.u8()
	w.UnderPlayerID = d.u8()
	w.UnderPlayerColor = d.u8()
	w.UnderPlayerParam = d.u8()
	w.MesgEdges = d.u8()
	w.ScrollBaseColor = d.u8()
	w.ScrollCornerColor = d.u8()
	w.ScrollPointerColor = d.u8()
	w.ScrollTitleColor = d.u8()
	w.ScrollArrowColor = d.u8()
	w.RealModPlaying = d.path()
}

// path reads a word-prefixed file name, keeping at most MaxPath-1 bytes.
func (d *decoder) path() string {
	n := d.u16()
	raw := d.bytes(n)
	if len(raw) >= world.MaxPath {
		raw = raw[:world.MaxPath-1]
	}
	return world.CString(raw)
}

func (d *decoder) shared(w *world.World) {
	w.EdgeColor = d.u8()
	w.FirstBoard = d.u8()
	w.EndgameBoard = d.u8()
	w.DeathBoard = d.u8()
	w.EndgameX = d.u16()
	w.EndgameY = d.u16()
	w.GameOverSFX = d.u8()
	w.DeathX = d.u16()
	w.DeathY = d.u16()
	w.StartingLives = d.u16()
	w.LivesLimit = d.u16()
	w.StartingHealth = d.u16()
	w.HealthLimit = d.u16()
	w.EnemyHurtEnemy = d.u8()
	w.ClearOnExit = d.u8()
	w.OnlyFromSwap = d.u8()
	d.palette(w.Palette[:world.PaletteSize])
}

func (d *decoder) palette(dst []world.RGB) {
	for i := range dst {
		rgb := d.bytes(3)
		dst[i] = world.RGB{R: scale(rgb[0]), G: scale(rgb[1]), B: scale(rgb[2])}
	}
}

// scale maps a 0-63 component to 0-255.
func scale(c byte) byte {
	if c > 63 {
		c = 63
	}
	return byte(int(c) * 255 / 63)
}

func (d *decoder) runtime(w *world.World) error {
	copy(w.Intensity[:], d.bytes(world.PaletteSize))
	w.Faded = d.u8() != 0
	w.PlayerRestartX = d.u16()
	w.PlayerRestartY = d.u16()
	w.UnderPlayerID = d.u8()
	w.UnderPlayerColor = d.u8()
	w.UnderPlayerParam = d.u8()
	if err := d.check("runtime state"); err != nil {
		return err
	}

	n := d.i32()
	for i := int32(0); i < n && d.err == nil; i++ {
		value := d.i32()
		length := d.i32()
		name := d.bytes(int(length))
		switch {
		case strncasecmp(name, "mzx_speed", int(length)) == 0:
			w.MZXSpeed = value
		case strncasecmp(name, "_____lock_speed", int(length)) == 0:
			w.LockSpeed = value
		default:
			w.Counters = append(w.Counters, world.Counter{Name: world.CString(name), Value: value})
		}
	}
	if err := d.check("counters"); err != nil {
		return err
	}

	n = d.i32()
	for i := int32(0); i < n && d.err == nil; i++ {
		nameLen := d.i32()
		valueLen := d.i32()
		name := d.bytes(int(nameLen))
		value := d.bytes(int(valueLen))
		w.Strings = append(w.Strings, world.String{Name: world.CString(name), Value: value})
	}
	if err := d.check("strings"); err != nil {
		return err
	}

	for i := range w.Sprites {
		s := &w.Sprites[i]
		s.X, s.Y = d.u16(), d.u16()
		s.RefX, s.RefY = d.u16(), d.u16()
		s.Color = d.u8()
		s.Flags = d.u8()
		s.Width = d.u8()
		s.Height = d.u8()
		s.ColX = d.u8()
		s.ColY = d.u8()
		s.ColWidth = d.u8()
		s.ColHeight = d.u8()
	}
	w.ActiveSprites = d.u8()
	w.SpriteYOrder = d.u8()
	w.CollisionCount = d.u16()
	for i := range w.CollisionList {
		w.CollisionList[i] = d.u16()
	}
	if err := d.check("sprites"); err != nil {
		return err
	}

	w.Multiplier = d.u16()
	w.Divider = d.u16()
	w.CDivisions = d.u16()
	w.FreadDelimiter = d.u16()
	w.FwriteDelimiter = d.u16()
	w.BiShootStatus = d.u8()
	w.BiMesgStatus = d.u8()

	w.InputFileName = d.path()
	w.TempInputPos = d.i32()
	w.OutputFileName = d.path()
	w.TempOutputPos = d.i32()

	w.ScreenMode = d.u16()
	if w.ScreenMode > 1 {
		d.palette(w.Palette[:])
	}
	w.Commands = d.i32()
	if err := d.check("engine state"); err != nil {
		return err
	}

	size := int(d.i32())
	w.Vlayer.Width = d.u16()
	w.Vlayer.Height = d.u16()
	w.Vlayer.Chars = d.bytes(size)
	w.Vlayer.Colors = d.bytes(size)
	if err := d.check("vlayer"); err != nil {
		return err
	}
	// The declared dimensions are stored apart from the plane size.
	w.Vlayer.Clamp()
	return nil
}

// strncasecmp compares at most n bytes of a NUL-terminated a and b ignoring
// ASCII case. A zero-length stored name therefore matches any reserved name.
func strncasecmp(a []byte, b string, n int) int {
	for i := 0; i < n; i++ {
		var ca, cb byte
		if i < len(a) {
			ca = lower(a[i])
		}
		if i < len(b) {
			cb = lower(b[i])
		}
		if ca != cb {
			return int(ca) - int(cb)
		}
		if ca == 0 {
			return 0
		}
	}
	return 0
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

func (d *decoder) tail(w *world.World) error {
	globalPos := int64(uint32(d.i32()))
	boards := int(d.u8())
	if boards == 0 {
		w.CustomSFXOn = true
		d.u16()
		for i := range w.CustomSFX {
			n := int(d.u8())
			sfx := d.bytes(n)
			if len(sfx) > world.LegacySFXSize-1 {
				sfx = sfx[:world.LegacySFXSize-1]
			}
			w.CustomSFX[i] = world.CString(sfx)
		}
		boards = int(d.u8())
	}
	if err := d.check("sfx"); err != nil {
		return err
	}
	if boards == 0 {
		return errors.New("board count: no boards")
	}

	namesPos := d.r.Tell()
	d.latch(d.r.Skip(int64(boards * nameSize)))
	sizes := make([]int64, boards)
	offsets := make([]int64, boards)
	for i := 0; i < boards; i++ {
		sizes[i] = int64(uint32(d.i32()))
		offsets[i] = int64(uint32(d.i32()))
	}
	if err := d.check("board table"); err != nil {
		return err
	}

	w.Boards = make([]*world.Board, boards)
	for i := 0; i < boards; i++ {
		b := d.board(i, offsets[i], sizes[i])
		if b == nil {
			continue
		}
		b.BindGlobalRobot(w.GlobalRobot)
		b.OptimizeNullObjects()
		w.Boards[i] = b
		if d.store != nil {
			d.store.Store(b)
		}
	}

	d.globalRobot(w, globalPos)

	// Names are read last, one at a time.
	if err := d.r.Seek(namesPos); err == nil {
		for i := 0; i < boards; i++ {
			raw, err := d.r.Bytes(nameSize)
			if w.Boards[i] == nil {
				continue
			}
			if err != nil {
				w.Boards[i].Name = ""
				continue
			}
			w.Boards[i].Name = world.CString(raw[:nameSize-1])
		}
	}
	return nil
}

// board loads board i. A zero size marks a deleted slot; anything that fails
// to decode becomes a dummy board.
func (d *decoder) board(i int, offset, size int64) *world.Board {
	if size == 0 {
		return nil
	}
	data, err := d.readAt(offset, size)
	if err == nil {
		var b *world.Board
		if b, err = d.boards.Decode(data, d.savegame, d.version); err == nil {
			return b
		}
	}
	e := diag.New(diag.CodeBoardDummy, d.file, fmt.Errorf("board %d: %w", i, err))
	e.Size = int(size)
	d.rep.Report(e)
	return world.NewDummyBoard()
}

func (d *decoder) readAt(offset, size int64) ([]byte, error) {
	if err := d.r.Seek(offset); err != nil {
		return nil, err
	}
	if size > d.r.Remaining() {
		return nil, fmt.Errorf("%w: %d bytes at %d", binio.ErrOutOfBounds, size, offset)
	}
	return d.r.Bytes(int(size))
}

// globalRobot decodes the global robot in place so every board's slot 0
// keeps pointing at it. Failures leave a blank robot. It is always used.
func (d *decoder) globalRobot(w *world.World, pos int64) {
	defer func() { w.GlobalRobot.Used = true }()

	r, err := d.robotAt(pos)
	if err != nil {
		d.rep.Report(diag.New(diag.CodeWorldRobotMissing, d.file, fmt.Errorf("%w: global robot: %v", diag.ErrRobotMissing, err)))
		return
	}
	r.WorldVersion = w.Version
	*w.GlobalRobot = *r
}

func (d *decoder) robotAt(pos int64) (*world.Robot, error) {
	if err := d.r.Seek(pos); err != nil {
		return nil, err
	}
	partial := d.robots.LegacyPartialSize(d.savegame, d.version)
	head, err := d.readAt(pos, int64(partial))
	if err != nil {
		return nil, err
	}
	size, err := d.robots.LegacySize(head, d.savegame, d.version)
	if err != nil {
		return nil, err
	}
	data, err := d.readAt(pos, int64(size))
	if err != nil {
		return nil, err
	}
	return d.robots.DecodeLegacy(data, d.savegame, d.version)
}

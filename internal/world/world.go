// Package world holds the in-memory model that legacy files decode into and
// regions are cut from.
package world

const (
	CharSize          = 14
	CharsetSize       = 256
	LegacyIDCharsSize = 323
	IDBulletColorSize = 3
	IDDmgSize         = 128
	NumStatusCounters = 6
	CounterNameSize   = 15
	NumKeys           = 16
	NumSavedPositions = 8
	MaxSprites        = 256
	NumSFX            = 50
	LegacySFXSize     = 69
	PaletteSize       = 16
	SMZXPaletteSize   = 256
	MaxPath           = 512
)

type RGB struct{ R, G, B byte }

type Counter struct {
	Name  string
	Value int32
}

type String struct {
	Name  string
	Value []byte
}

type Sprite struct {
	X, Y       int
	RefX, RefY int
	Color      byte
	Flags      byte
	Width      byte
	Height     byte
	ColX, ColY byte
	ColWidth   byte
	ColHeight  byte
}

// Vlayer is the world-wide background plane.
type Vlayer struct {
	Width  int
	Height int
	Chars  []byte
	Colors []byte
}

func (v *Vlayer) cells() int { return min(len(v.Chars), len(v.Colors)) }

// Fits reports whether both planes hold Width*Height cells.
func (v *Vlayer) Fits() bool {
	return v.Width >= 0 && v.Height >= 0 && v.Width*v.Height <= v.cells()
}

// Clamp shrinks Width and Height until the planes hold every cell.
func (v *Vlayer) Clamp() {
	if v.Fits() {
		return
	}
	n := v.cells()
	v.Width = min(max(v.Width, 0), n)
	if v.Width == 0 {
		v.Height = 0
		return
	}
	v.Height = min(max(v.Height, 0), n/v.Width)
}

// World is the aggregate produced by a load.
type World struct {
	Name           string
	Version        int
	CurrentBoardID int

	Charset        []byte
	IDChars        [LegacyIDCharsSize]byte
	MissileColor   byte
	BulletColor    [IDBulletColorSize]byte
	IDDmg          [IDDmgSize]byte
	StatusCounters [NumStatusCounters]string

	Keys          [NumKeys]byte
	BlindDur      byte
	FirewalkerDur byte
	FreezeTimeDur byte
	SlowTimeDur   byte
	WindDur       byte
	PlSavedX      [NumSavedPositions]int
	PlSavedY      [NumSavedPositions]int
	PlSavedBoard  [NumSavedPositions]byte

	SavedPlColor       byte
	UnderPlayerID      byte
	UnderPlayerColor   byte
	UnderPlayerParam   byte
	MesgEdges          byte
	ScrollBaseColor    byte
	ScrollCornerColor  byte
	ScrollPointerColor byte
	ScrollTitleColor   byte
	ScrollArrowColor   byte
	RealModPlaying     string

	EdgeColor      byte
	FirstBoard     byte
	EndgameBoard   byte
	DeathBoard     byte
	EndgameX       int
	EndgameY       int
	GameOverSFX    byte
	DeathX         int
	DeathY         int
	StartingLives  int
	LivesLimit     int
	StartingHealth int
	HealthLimit    int
	EnemyHurtEnemy byte
	ClearOnExit    byte
	OnlyFromSwap   byte

	// Palette entries are scaled to 0-255.
	Palette    [SMZXPaletteSize]RGB
	Intensity  [PaletteSize]byte
	Faded      bool
	ScreenMode int

	PlayerRestartX int
	PlayerRestartY int

	Counters []Counter
	Strings  []String
	// MZXSpeed and LockSpeed come from reserved counter names.
	MZXSpeed  int32
	LockSpeed int32

	Sprites        [MaxSprites]Sprite
	ActiveSprites  byte
	SpriteYOrder   byte
	CollisionCount int
	CollisionList  [MaxSprites]int

	Multiplier      int
	Divider         int
	CDivisions      int
	FreadDelimiter  int
	FwriteDelimiter int
	BiShootStatus   byte
	BiMesgStatus    byte

	InputFileName  string
	TempInputPos   int32
	OutputFileName string
	TempOutputPos  int32
	Commands       int32

	Vlayer Vlayer

	CustomSFXOn bool
	CustomSFX   [NumSFX]string

	GlobalRobot *Robot
	Boards      []*Board
}

// New returns an empty world with a used global robot and the default
// vlayer.
func New() *World {
	w := &World{
		Version:     CurrentVersion,
		Charset:     make([]byte, CharSize*CharsetSize),
		IDChars:     DefaultIDChars(),
		GlobalRobot: NewBlankRobot(),
		Vlayer: Vlayer{
			Width:  256,
			Height: 128,
			Chars:  make([]byte, 256*128),
			Colors: make([]byte, 256*128),
		},
	}
	w.GlobalRobot.Used = true
	for i := range w.Vlayer.Chars {
		w.Vlayer.Chars[i] = ' '
		w.Vlayer.Colors[i] = 7
	}
	return w
}

// CurrentBoard returns the active board or nil.
func (w *World) CurrentBoard() *Board {
	if w.CurrentBoardID < 0 || w.CurrentBoardID >= len(w.Boards) {
		return nil
	}
	return w.Boards[w.CurrentBoardID]
}

// AddBoard appends b and binds its global robot slot.
func (w *World) AddBoard(b *Board) int {
	b.BindGlobalRobot(w.GlobalRobot)
	w.Boards = append(w.Boards, b)
	return len(w.Boards) - 1
}

// SetString creates or replaces the string named name.
func (w *World) SetString(name string, value []byte) {
	for i := range w.Strings {
		if w.Strings[i].Name == name {
			w.Strings[i].Value = value
			return
		}
	}
	w.Strings = append(w.Strings, String{Name: name, Value: value})
}

// GetString returns the value of the string named name.
func (w *World) GetString(name string) ([]byte, bool) {
	for _, s := range w.Strings {
		if s.Name == name {
			return s.Value, true
		}
	}
	return nil, false
}

// IDChar is the glyph shown for the cell at off.
func (w *World) IDChar(b *Board, off int) byte {
	param := b.Param[off]
	switch t := Thing(b.ID[off]); {
	case t.IsRobot():
		if int(param) < len(b.Robots) && b.Robots[param] != nil {
			return b.Robots[param].Char
		}
		return DefaultRobotChar
	case t == IDSensor:
		if int(param) < len(b.Sensors) && b.Sensors[param] != nil {
			return b.Sensors[param].Char
		}
		return param
	default:
		if c := w.IDChars[t]; c != IDCharFromParam {
			return c
		}
		return param
	}
}

// IDColor is the color shown for the cell at off.
func (w *World) IDColor(b *Board, off int) byte {
	return b.Color[off]
}

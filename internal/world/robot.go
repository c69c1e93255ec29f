package world

const (
	RobotNameSize    = 15
	NumLocalCounters = 32
	MaxRobots        = 255
	DefaultRobotChar = 'R'
)

// Robot is one script unit. The program is opaque bytecode or source.
type Robot struct {
	Name          string
	Char          byte
	X, Y          int
	Used          bool
	Program       []byte
	CurProgLine   int
	PosWithinLine byte
	RobotCycle    byte
	CycleCount    byte
	BulletType    byte
	IsLocked      byte
	CanLavaWalk   byte
	WalkDir       byte
	LastTouchDir  byte
	LastShotDir   byte
	Status        byte
	LoopCount     int
	LocalCounters [NumLocalCounters]int32
	Stack         []int32

	// WorldVersion is the version of the world the robot was loaded into.
	WorldVersion int
}

// NewBlankRobot returns an unused robot with an empty program.
func NewBlankRobot() *Robot {
	return &Robot{
		Char:       DefaultRobotChar,
		BulletType: 1,
		Program:    BlankProgram(),
	}
}

// BlankProgram is the smallest valid program: start and end markers.
func BlankProgram() []byte {
	return []byte{0xFF, 0x00}
}

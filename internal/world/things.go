package world

// Thing is the id stored in a board's id plane.
type Thing uint8

const (
	IDSpace       Thing = 0
	IDNormal      Thing = 1
	IDSolid       Thing = 2
	IDTree        Thing = 3
	IDLine        Thing = 4
	IDCustomBlock Thing = 5
	IDBreakaway   Thing = 6
	IDCustomBreak Thing = 7
	IDBoulder     Thing = 8
	IDCrate       Thing = 9
	IDCustomPush  Thing = 10
	IDBox         Thing = 11
	IDCustomBox   Thing = 12
	IDFake        Thing = 13
	IDCarpet      Thing = 14
	IDFloor       Thing = 15
	IDTiles       Thing = 16
	IDCustomFloor Thing = 17
	IDWater       Thing = 20
	IDLava        Thing = 25
	IDText        Thing = 77
	IDGate        Thing = 47

	// Ids from Sensor upwards reference per-board object tables.
	IDSensor        Thing = 122
	IDRobotPushable Thing = 123
	IDRobot         Thing = 124
	IDSign          Thing = 125
	IDScroll        Thing = 126
	IDPlayer        Thing = 127
)

func (t Thing) IsRobot() bool      { return t == IDRobot || t == IDRobotPushable }
func (t Thing) IsSignScroll() bool { return t == IDSign || t == IDScroll }

// IsObject reports ids that own an entry in a board object table (or are the
// player).
func (t Thing) IsObject() bool { return t >= IDSensor }

// IDCharFromParam marks an id char table entry whose glyph is the cell param.
const IDCharFromParam = 255

// DefaultIDChars returns the stock glyph table for the first 128 ids; the
// remaining bytes (animation frames and the like) are zero.
func DefaultIDChars() [LegacyIDCharsSize]byte {
	var t [LegacyIDCharsSize]byte
	t[IDSpace] = ' '
	t[IDNormal] = 178
	t[IDSolid] = 219
	t[IDTree] = 6
	t[IDLine] = 205
	t[IDCustomBlock] = IDCharFromParam
	t[IDBreakaway] = 177
	t[IDCustomBreak] = IDCharFromParam
	t[IDBoulder] = 233
	t[IDCrate] = 254
	t[IDCustomPush] = IDCharFromParam
	t[IDBox] = 254
	t[IDCustomBox] = IDCharFromParam
	t[IDFake] = 178
	t[IDCarpet] = 177
	t[IDFloor] = 176
	t[IDTiles] = 254
	t[IDCustomFloor] = IDCharFromParam
	t[IDWater] = 176
	t[IDLava] = 176
	t[IDGate] = 22
	t[IDText] = IDCharFromParam
	t[IDSensor] = IDCharFromParam
	t[IDRobotPushable] = IDCharFromParam
	t[IDRobot] = IDCharFromParam
	t[IDSign] = 226
	t[IDScroll] = 232
	t[IDPlayer] = 2
	return t
}

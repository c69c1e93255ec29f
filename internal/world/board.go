package world

const (
	BoardNameSize  = 25
	SensorNameSize = 15
)

// Scroll is the text payload behind a sign or scroll cell.
type Scroll struct {
	NumLines int
	Text     []byte
	Used     bool
}

// Sensor is the state behind a sensor cell.
type Sensor struct {
	Name      string
	Char      byte
	RobotName string
	Used      bool
}

// Board is one map. Cell planes are width*height bytes, row major.
//
// Robots, Scrolls and Sensors are slot tables indexed by the param byte of
// the matching cells. Slot 0 of Scrolls and Sensors is never used; slot 0 of
// Robots holds the world's global robot and is not owned by the board.
type Board struct {
	Name   string
	Width  int
	Height int

	ID         []byte
	Param      []byte
	Color      []byte
	UnderID    []byte
	UnderParam []byte
	UnderColor []byte

	OverlayMode  byte
	Overlay      []byte
	OverlayColor []byte

	Robots  []*Robot
	Scrolls []*Scroll
	Sensors []*Sensor

	// Dummy marks a placeholder for a board that could not be decoded.
	Dummy bool
}

// NewBoard allocates an empty board filled with spaces.
func NewBoard(width, height int) *Board {
	n := width * height
	b := &Board{
		Width:      width,
		Height:     height,
		ID:         make([]byte, n),
		Param:      make([]byte, n),
		Color:      make([]byte, n),
		UnderID:    make([]byte, n),
		UnderParam: make([]byte, n),
		UnderColor: make([]byte, n),
		Robots:     []*Robot{nil},
		Scrolls:    []*Scroll{nil},
		Sensors:    []*Sensor{nil},
	}
	for i := 0; i < n; i++ {
		b.Color[i] = 7
		b.UnderColor[i] = 7
	}
	return b
}

// NewDummyBoard is the 1x1 stand-in used when a board fails to load.
func NewDummyBoard() *Board {
	b := NewBoard(1, 1)
	b.Dummy = true
	return b
}

func (b *Board) Size() int { return b.Width * b.Height }

func (b *Board) Offset(x, y int) int { return x + y*b.Width }

func (b *Board) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.Width && y < b.Height
}

// NumRobots is the number of robot slots, excluding the global slot.
func (b *Board) NumRobots() int { return len(b.Robots) - 1 }

// BindGlobalRobot points slot 0 at the world's global robot.
func (b *Board) BindGlobalRobot(g *Robot) {
	if len(b.Robots) == 0 {
		b.Robots = []*Robot{g}
		return
	}
	b.Robots[0] = g
}

// SetupOverlay allocates the overlay plane if missing and sets its mode.
func (b *Board) SetupOverlay(mode byte) {
	n := b.Size()
	if len(b.Overlay) != n || len(b.OverlayColor) != n {
		b.Overlay = make([]byte, n)
		b.OverlayColor = make([]byte, n)
		for i := 0; i < n; i++ {
			b.Overlay[i] = ' '
			b.OverlayColor[i] = 7
		}
	}
	b.OverlayMode = mode
}

// FindFreeRobot returns the lowest empty robot slot, growing the table when
// every slot is taken. It returns -1 once MaxRobots slots exist.
func (b *Board) FindFreeRobot() int {
	if len(b.Robots) == 0 {
		b.Robots = []*Robot{nil}
	}
	for i := 1; i < len(b.Robots); i++ {
		if b.Robots[i] == nil {
			return i
		}
	}
	if b.NumRobots() >= MaxRobots {
		return -1
	}
	b.Robots = append(b.Robots, nil)
	return len(b.Robots) - 1
}

func (b *Board) ClearRobotID(id byte) {
	if int(id) > 0 && int(id) < len(b.Robots) {
		b.Robots[id] = nil
	}
}

func (b *Board) ClearScrollID(id byte) {
	if int(id) > 0 && int(id) < len(b.Scrolls) {
		b.Scrolls[id] = nil
	}
}

func (b *Board) ClearSensorID(id byte) {
	if int(id) > 0 && int(id) < len(b.Sensors) {
		b.Sensors[id] = nil
	}
}

// ReleaseCell frees whatever object the cell at off references.
func (b *Board) ReleaseCell(off int) {
	switch t := Thing(b.ID[off]); {
	case t == IDSensor:
		b.ClearSensorID(b.Param[off])
	case t.IsSignScroll():
		b.ClearScrollID(b.Param[off])
	case t.IsRobot():
		b.ClearRobotID(b.Param[off])
	}
}

// OptimizeNullObjects compacts the object tables, dropping empty and unused
// slots and renumbering the params of the cells that reference them. Cells
// whose object was dropped become spaces.
func (b *Board) OptimizeNullObjects() {
	if len(b.Robots) == 0 {
		b.Robots = []*Robot{nil}
	}
	if len(b.Scrolls) == 0 {
		b.Scrolls = []*Scroll{nil}
	}
	if len(b.Sensors) == 0 {
		b.Sensors = []*Sensor{nil}
	}
	robotMap := compact(len(b.Robots), func(i int) bool {
		return b.Robots[i] != nil && b.Robots[i].Used
	}, func(dst, src int) { b.Robots[dst] = b.Robots[src] })
	b.Robots = b.Robots[:len(robotMap.kept)]

	scrollMap := compact(len(b.Scrolls), func(i int) bool {
		return b.Scrolls[i] != nil && b.Scrolls[i].Used
	}, func(dst, src int) { b.Scrolls[dst] = b.Scrolls[src] })
	b.Scrolls = b.Scrolls[:len(scrollMap.kept)]

	sensorMap := compact(len(b.Sensors), func(i int) bool {
		return b.Sensors[i] != nil && b.Sensors[i].Used
	}, func(dst, src int) { b.Sensors[dst] = b.Sensors[src] })
	b.Sensors = b.Sensors[:len(sensorMap.kept)]

	for off := range b.ID {
		var m slotMap
		switch t := Thing(b.ID[off]); {
		case t.IsRobot():
			m = robotMap
		case t.IsSignScroll():
			m = scrollMap
		case t == IDSensor:
			m = sensorMap
		default:
			continue
		}
		if n, ok := m.remap(b.Param[off]); ok {
			b.Param[off] = n
		} else {
			b.ID[off], b.Param[off], b.Color[off] = byte(IDSpace), 0, 7
		}
	}
}

type slotMap struct {
	kept []int
	to   map[int]int
}

func (m slotMap) remap(p byte) (byte, bool) {
	n, ok := m.to[int(p)]
	return byte(n), ok && n > 0
}

// compact keeps slot 0 plus every slot for which keep is true, moving kept
// slots down in order.
func compact(n int, keep func(int) bool, move func(dst, src int)) slotMap {
	m := slotMap{kept: []int{0}, to: map[int]int{0: 0}}
	for i := 1; i < n; i++ {
		if !keep(i) {
			continue
		}
		dst := len(m.kept)
		move(dst, i)
		m.kept = append(m.kept, i)
		m.to[i] = dst
	}
	return m
}

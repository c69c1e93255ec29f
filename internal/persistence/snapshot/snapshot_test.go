package snapshot

import (
	"path/filepath"
	"reflect"
	"testing"

	"zeuxkit.dev/internal/world"
)

func sampleWorld() *world.World {
	w := world.New()
	w.Name = "Caverns"
	w.Version = world.V284
	w.Palette[1] = world.RGB{R: 255, G: 85}
	w.Counters = []world.Counter{{Name: "gold", Value: 12}}
	w.SetString("$motto", []byte("onward"))
	w.CustomSFXOn = true
	w.CustomSFX[3] = "c-d-e"

	b := world.NewBoard(3, 2)
	b.Name = "Entrance"
	r := world.NewBlankRobot()
	r.Name, r.X, r.Y, r.Used = "keeper", 1, 1, true
	r.Stack = []int32{7, 8}
	b.Robots = append(b.Robots, nil, r)
	b.ID[b.Offset(1, 1)], b.Param[b.Offset(1, 1)] = byte(world.IDRobot), 2
	b.Scrolls = append(b.Scrolls, &world.Scroll{NumLines: 1, Text: []byte("hi\n"), Used: true})
	b.Sensors = append(b.Sensors, nil, &world.Sensor{Name: "s", Char: 'x', Used: true})
	b.SetupOverlay(1)

	w.AddBoard(b)
	w.Boards = append(w.Boards, nil)
	w.AddBoard(world.NewDummyBoard())
	return w
}

func TestSnapshot_RoundTrip(t *testing.T) {
	w := sampleWorld()
	path := filepath.Join(t.TempDir(), "snaps", "caverns.snap.zst")
	if err := WriteSnapshot(path, FromWorld(w, "caverns.mzx")); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h != (Header{Version: Version, Name: "Caverns", FormatVersion: world.V284, Boards: 3, Source: "caverns.mzx"}) {
		t.Fatalf("header mismatch: %+v", h)
	}

	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := snap.ToWorld()
	if !reflect.DeepEqual(got, w) {
		t.Fatalf("world differs after round trip")
	}
	if got.Boards[1] != nil {
		t.Fatalf("nil board slot not preserved")
	}
	for i, b := range got.Boards {
		if b != nil && b.Robots[0] != got.GlobalRobot {
			t.Fatalf("board %d does not share the global robot", i)
		}
	}
	if got.Boards[0].Robots[1] != nil || got.Boards[0].Robots[2].Name != "keeper" {
		t.Fatalf("robot slots shifted: %+v", got.Boards[0].Robots)
	}
}

func TestSnapshot_FromWorldLeavesSourceAlone(t *testing.T) {
	w := sampleWorld()
	before := len(w.Boards[0].Robots)
	snap := FromWorld(w, "")
	if len(w.Boards[0].Robots) != before || w.Boards[0].Robots[0] != w.GlobalRobot {
		t.Fatalf("source world modified")
	}
	if len(snap.Boards) != 3 || snap.Boards[1].Present || len(snap.Boards[0].Robots) != 2 {
		t.Fatalf("unexpected snapshot boards: %+v", snap.Boards)
	}
}

func TestSnapshot_ReadErrors(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "missing.snap.zst")); err == nil {
		t.Fatalf("missing snapshot should fail")
	}
	if _, err := ReadHeader(filepath.Join(t.TempDir(), "missing.snap.zst")); err == nil {
		t.Fatalf("missing header should fail")
	}
}

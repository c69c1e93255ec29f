// Package report describes a scanned world or savegame as JSON.
package report

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"lukechampine.com/blake3"

	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/legacy"
	"zeuxkit.dev/internal/world"
)

type Report struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Digest  string `json:"digest,omitempty"`
	Size    int64  `json:"size"`
	Result  string `json:"result"`
	Version string `json:"version,omitempty"`
	// Method is the protection method byte, 0 when unprotected.
	Method int      `json:"method"`
	Codes  []string `json:"codes"`
	Error  string   `json:"error,omitempty"`

	World *WorldSummary `json:"world,omitempty"`
}

type WorldSummary struct {
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	CurrentBoard int            `json:"current_board"`
	Counters     int            `json:"counters"`
	Strings      int            `json:"strings"`
	CustomSFX    bool           `json:"custom_sfx"`
	GlobalRobot  RobotSummary   `json:"global_robot"`
	Boards       []BoardSummary `json:"boards"`
}

type BoardSummary struct {
	Index   int            `json:"index"`
	Missing bool           `json:"missing,omitempty"`
	Dummy   bool           `json:"dummy,omitempty"`
	Name    string         `json:"name,omitempty"`
	Width   int            `json:"width,omitempty"`
	Height  int            `json:"height,omitempty"`
	Overlay int            `json:"overlay_mode,omitempty"`
	Robots  []RobotSummary `json:"robots,omitempty"`
	Scrolls int            `json:"scrolls"`
	Sensors int            `json:"sensors"`
}

type RobotSummary struct {
	Slot    int    `json:"slot"`
	Name    string `json:"name"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Program int    `json:"program_bytes"`
}

func kind(savegame bool) string {
	if savegame {
		return "savegame"
	}
	return "world"
}

// Inspect validates path and, when it is readable, decodes it. The file is
// never modified, so protected worlds are only described. Diagnostics go to
// rep as well as into the report.
func Inspect(path string, savegame bool, rep diag.Reporter) Report {
	rec := &diag.Recorder{}
	rep = diag.Tee(rec, rep)

	r := Report{Path: path, Kind: kind(savegame)}
	if data, err := os.ReadFile(path); err == nil {
		sum := blake3.Sum256(data)
		r.Digest = hex.EncodeToString(sum[:])
		r.Size = int64(len(data))
	}

	v := legacy.Validate(path, savegame, rep)
	r.Result = v.Result.String()
	r.Method = v.Method
	if v.Version != 0 {
		r.Version = world.VersionString(v.Version)
	}
	if v.Err != nil {
		r.Error = v.Err.Error()
	}
	if v.Result == legacy.Success {
		w, err := legacy.Load(path, savegame, legacy.Options{Reporter: rep})
		if err != nil {
			r.Error = err.Error()
		} else {
			r.World = Summarize(w)
		}
	}
	r.Codes = rec.Codes()
	return r
}

func robotSummary(slot int, rb *world.Robot) RobotSummary {
	return RobotSummary{
		Slot:    slot,
		Name:    world.DisplayName(rb.Name),
		X:       rb.X,
		Y:       rb.Y,
		Program: len(rb.Program),
	}
}

func countUsed[T any](slots []*T) int {
	n := 0
	for i, s := range slots {
		if i > 0 && s != nil {
			n++
		}
	}
	return n
}

// Summarize describes w. Names are decoded from CP437.
func Summarize(w *world.World) *WorldSummary {
	s := &WorldSummary{
		Name:         world.DisplayName(w.Name),
		Version:      world.VersionString(w.Version),
		CurrentBoard: w.CurrentBoardID,
		Counters:     len(w.Counters),
		Strings:      len(w.Strings),
		CustomSFX:    w.CustomSFXOn,
		Boards:       make([]BoardSummary, 0, len(w.Boards)),
	}
	if w.GlobalRobot != nil {
		s.GlobalRobot = robotSummary(0, w.GlobalRobot)
	}
	for i, b := range w.Boards {
		if b == nil {
			s.Boards = append(s.Boards, BoardSummary{Index: i, Missing: true})
			continue
		}
		bs := BoardSummary{
			Index:   i,
			Dummy:   b.Dummy,
			Name:    world.DisplayName(b.Name),
			Width:   b.Width,
			Height:  b.Height,
			Overlay: int(b.OverlayMode),
			Scrolls: countUsed(b.Scrolls),
			Sensors: countUsed(b.Sensors),
		}
		for slot := 1; slot < len(b.Robots); slot++ {
			if rb := b.Robots[slot]; rb != nil {
				bs.Robots = append(bs.Robots, robotSummary(slot, rb))
			}
		}
		s.Boards = append(s.Boards, bs)
	}
	return s
}

// Write encodes r as indented JSON.
func Write(out io.Writer, r Report) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

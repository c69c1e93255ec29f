package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"zeuxkit.dev/internal/mzm"
	"zeuxkit.dev/internal/persistence/indexdb"
	"zeuxkit.dev/internal/persistence/snapshot"
	"zeuxkit.dev/internal/world"
)

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated integers, got %q", n, s)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad integer %q", p)
		}
		out[i] = v
	}
	return out, nil
}

func parseMode(s string) (mzm.SaveMode, error) {
	for m := mzm.BoardToBoard; m <= mzm.VlayerToLayer; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func parseTarget(s string) (mzm.Target, error) {
	for t := mzm.ToBoard; t <= mzm.ToVlayer; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown target %q", s)
}

func selectBoard(w *world.World, id int) error {
	if id < 0 {
		return nil
	}
	if id >= len(w.Boards) || w.Boards[id] == nil {
		return fmt.Errorf("no board %d", id)
	}
	w.CurrentBoardID = id
	return nil
}

// recordRegion adds the operation to the sqlite index when one is
// configured.
func (a *app) recordRegion(row indexdb.RegionRow) {
	if a.cfg.IndexPath == "" {
		return
	}
	idx, err := indexdb.OpenSQLite(a.cfg.IndexPath)
	if err != nil {
		a.log.WithError(err).Warn("index open")
		return
	}
	idx.RecordRegion(row)
	if err := idx.Close(); err != nil {
		a.log.WithError(err).Warn("index close")
	}
}

func mzmSaveCmd(a *app, args []string) int {
	fs := newFlagSet(a, "mzm-save")
	worldPath := fs.String("world", "", "world, savegame or snapshot to cut from")
	isSave := fs.Bool("savegame", false, "world file is a savegame")
	board := fs.Int("board", -1, "board index (default: current board)")
	rect := fs.String("rect", "", "X,Y,W,H")
	modeName := fs.String("mode", "board", "board, overlay, board-layer or vlayer")
	runtime := fs.Bool("runtime", a.cfg.SavegameRobots, "store robots with their runtime state")
	out := fs.String("out", "", "region file to write")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *worldPath == "" || *out == "" || *rect == "" {
		fs.Usage()
		return 2
	}
	r, err := parseInts(*rect, 4)
	if err != nil {
		fmt.Fprintln(a.stderr, "bad -rect:", err)
		return 2
	}
	mode, err := parseMode(*modeName)
	if err != nil {
		fmt.Fprintln(a.stderr, "bad -mode:", err)
		return 2
	}

	o := a.begin("mzm-save", *out)
	o.detail["world"] = *worldPath
	w, err := loadWorld(a, *worldPath, *isSave, o.reporter())
	if err != nil {
		return o.finish("", err)
	}
	if err := selectBoard(w, *board); err != nil {
		return o.finish("", err)
	}
	c := mzm.Codec{Reporter: o.reporter()}
	if err := c.Save(w, *out, mzm.Rect{X: r[0], Y: r[1], Width: r[2], Height: r[3]}, mode, *runtime); err != nil {
		return o.finish("", err)
	}

	data, err := os.ReadFile(*out)
	if err != nil {
		return o.finish("", err)
	}
	h, err := mzm.ParseHeader(data)
	if err != nil {
		return o.finish("", err)
	}
	o.detail["robots"] = h.NumRobots
	o.detail["size"] = len(data)
	a.recordRegion(indexdb.RegionRow{
		Op: "mzm-save", Path: *out, Width: h.Width, Height: h.Height,
		Storage: h.Storage.String(), Robots: h.NumRobots,
	})
	fmt.Fprintf(a.stdout, "%s\t%dx%d\t%s\t%d robots\n", *out, h.Width, h.Height, h.Storage, h.NumRobots)
	return o.finish("success", nil)
}

func mzmLoadCmd(a *app, args []string) int {
	fs := newFlagSet(a, "mzm-load")
	worldPath := fs.String("world", "", "world, savegame or snapshot to load into")
	isSave := fs.Bool("savegame", false, "world file is a savegame")
	board := fs.Int("board", -1, "board index (default: current board)")
	in := fs.String("in", "", "region file")
	at := fs.String("at", "0,0", "X,Y")
	targetName := fs.String("target", "board", "board, overlay or vlayer")
	runtime := fs.Bool("runtime", a.cfg.SavegameRobots, "accept robots saved with runtime state")
	out := fs.String("out", "", "snapshot to write the result to (optional)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *worldPath == "" || *in == "" {
		fs.Usage()
		return 2
	}
	xy, err := parseInts(*at, 2)
	if err != nil {
		fmt.Fprintln(a.stderr, "bad -at:", err)
		return 2
	}
	target, err := parseTarget(*targetName)
	if err != nil {
		fmt.Fprintln(a.stderr, "bad -target:", err)
		return 2
	}

	o := a.begin("mzm-load", *in)
	o.detail["world"] = *worldPath
	w, err := loadWorld(a, *worldPath, *isSave, o.reporter())
	if err != nil {
		return o.finish("", err)
	}
	if err := selectBoard(w, *board); err != nil {
		return o.finish("", err)
	}
	c := mzm.Codec{Reporter: o.reporter()}
	res, err := c.Load(w, *in, xy[0], xy[1], target, *runtime)
	if err != nil {
		return o.finish("", err)
	}
	o.detail["placed"] = res.Placed
	o.detail["discarded"] = res.Discarded
	o.detail["dummy"] = res.Dummy
	a.recordRegion(indexdb.RegionRow{
		Op: "mzm-load", Path: *in, Width: res.Width, Height: res.Height,
		Storage: res.Header.Storage.String(), Robots: res.Header.NumRobots,
		Placed: res.Placed, Discarded: res.Discarded,
	})
	fmt.Fprintf(a.stdout, "%s\t%dx%d at %d,%d\tplaced %d\tdiscarded %d\n",
		*in, res.Width, res.Height, xy[0], xy[1], res.Placed, res.Discarded)

	if *out != "" {
		if err := snapshot.WriteSnapshot(*out, snapshot.FromWorld(w, *worldPath)); err != nil {
			return o.finish("", fmt.Errorf("write snapshot: %w", err))
		}
		o.detail["out"] = *out
	}
	result := "success"
	if len(res.Warnings) > 0 {
		result = "warning"
	}
	return o.finish(result, nil)
}

var errNoHeader = errors.New("no region header")

func mzmSizeCmd(a *app, args []string) int {
	fs := newFlagSet(a, "mzm-size")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	status := 0
	for _, path := range fs.Args() {
		o := a.begin("mzm-size", path)
		w, h := mzm.ReadSize(path)
		fmt.Fprintf(a.stdout, "%s\t%d\t%d\n", path, w, h)
		if w < 0 {
			o.finish("", fmt.Errorf("%s: %w", path, errNoHeader))
			status = 1
			continue
		}
		o.detail["width"], o.detail["height"] = w, h
		o.finish("success", nil)
	}
	return status
}

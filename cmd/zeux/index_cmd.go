package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/legacy"
	"zeuxkit.dev/internal/mzm"
	"zeuxkit.dev/internal/persistence/indexdb"
	"zeuxkit.dev/internal/persistence/journal"
	"zeuxkit.dev/internal/world"
)

// fileKind maps an extension to the kind of file the indexer scans.
func fileKind(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mzx":
		return "world"
	case ".sav":
		return "savegame"
	case ".mzm":
		return "region"
	}
	return ""
}

func scanFile(path, kind string, rep diag.Reporter) indexdb.FileRow {
	row := indexdb.FileRow{Path: path, Kind: kind}
	if kind == "region" {
		data, err := os.ReadFile(path)
		if err != nil {
			row.Result = "missing"
			return row
		}
		h, err := mzm.ParseHeader(data)
		if err != nil {
			rep.Report(diag.New(diag.CodeMZMFileInvalid, path, err))
			row.Result = "invalid"
			return row
		}
		row.Result = "success"
		row.Version = h.Version
		return row
	}
	v := legacy.Validate(path, kind == "savegame", rep)
	row.Result = v.Result.String()
	row.Version = v.Version
	row.Boards = v.Boards
	return row
}

func indexCmd(a *app, args []string) int {
	flags := newFlagSet(a, "index")
	dbPath := flags.String("db", a.cfg.IndexPath, "sqlite index path")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 || *dbPath == "" {
		flags.Usage()
		return 2
	}
	root := flags.Arg(0)
	idx, err := indexdb.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(a.stderr, "index:", err)
		return 1
	}

	scanned := 0
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		kind := fileKind(path)
		if d.IsDir() || kind == "" {
			return nil
		}
		o := a.begin("index", path)
		row := scanFile(path, kind, o.reporter())
		digest, size, err := indexdb.DigestFile(path)
		if err != nil {
			o.finish(row.Result, err)
			return nil
		}
		row.Digest, row.Size = digest, size
		row.Codes = o.rec.Codes()
		idx.RecordFile(row)
		scanned++
		o.detail["kind"] = kind
		o.detail["digest"] = digest
		o.finish(row.Result, nil)
		return nil
	})
	if err := idx.Close(); err != nil {
		fmt.Fprintln(a.stderr, "index:", err)
		return 1
	}
	if walkErr != nil {
		fmt.Fprintln(a.stderr, "index:", walkErr)
		return 1
	}

	rows, err := indexdb.ListFiles(context.Background(), *dbPath)
	if err != nil {
		fmt.Fprintln(a.stderr, "index:", err)
		return 1
	}
	for _, r := range rows {
		version := "-"
		if r.Version != 0 {
			version = world.VersionString(r.Version)
		}
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%s\t%s\n", r.Path, r.Kind, r.Result, version, r.Digest[:min(12, len(r.Digest))])
	}
	a.log.WithField("scanned", scanned).WithField("indexed", len(rows)).Info("index updated")
	return 0
}

func journalCmd(a *app, args []string) int {
	fs := newFlagSet(a, "journal")
	dir := fs.String("dir", a.cfg.JournalDir, "journal directory")
	op := fs.String("op", "", "only show this operation")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dir == "" {
		fs.Usage()
		return 2
	}
	entries, err := journal.ReadDir(*dir)
	if err != nil {
		fmt.Fprintln(a.stderr, "journal:", err)
		return 1
	}
	for _, e := range entries {
		if *op != "" && e.Op != *op {
			continue
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s", e.Time, e.Op, e.Result, e.Path)
		if len(e.Codes) > 0 {
			line += "\t" + strings.Join(e.Codes, ",")
		}
		if e.Error != "" {
			line += "\t" + e.Error
		}
		fmt.Fprintln(a.stdout, line)
	}
	return 0
}

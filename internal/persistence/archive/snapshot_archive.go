// Package archive keeps copies of converted world snapshots, one directory
// per distinct source file.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"zeuxkit.dev/internal/persistence/snapshot"
)

type Meta struct {
	Name          string `json:"name"`
	FormatVersion int    `json:"format_version"`
	Boards        int    `json:"boards"`
	Source        string `json:"source,omitempty"`
	Digest        string `json:"digest"`
	Snapshot      string `json:"snapshot"`
	CreatedAt     string `json:"created_at"`
}

// ArchiveSnapshot copies snapshotPath into `dir/archives/<name>_<digest>/`.
// digest identifies the source file the snapshot was made from. It returns
// (archivedPath, archived=true) when a copy was made and archived=false when
// the directory already holds that source.
func ArchiveSnapshot(dir, snapshotPath, digest string) (archivedPath string, archived bool, err error) {
	if len(digest) < 12 {
		return "", false, fmt.Errorf("archive: digest %q too short", digest)
	}
	h, err := snapshot.ReadHeader(snapshotPath)
	if err != nil {
		return "", false, err
	}

	archiveDir := filepath.Join(dir, "archives", dirName(h.Name)+"_"+digest[:12])
	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if _, err := os.Stat(filepath.Join(archiveDir, "meta.json")); err == nil {
		return dst, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, err
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := Meta{
		Name:          h.Name,
		FormatVersion: h.FormatVersion,
		Boards:        h.Boards,
		Source:        h.Source,
		Digest:        digest,
		Snapshot:      filepath.Base(dst),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// ReadMeta reads the meta file of an archived snapshot.
func ReadMeta(archivedPath string) (Meta, error) {
	var m Meta
	b, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func dirName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, strings.TrimSpace(name))
	if name == "" {
		return "world"
	}
	return name
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

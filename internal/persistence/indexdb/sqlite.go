// Package indexdb keeps a sqlite index of scanned files and region
// operations.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// FileRow is one scanned world, savegame or region file.
type FileRow struct {
	Path    string
	Kind    string
	Digest  string
	Size    int64
	Result  string
	Version int
	Boards  int
	Codes   []string
}

// RegionRow is one region save or load.
type RegionRow struct {
	Op        string
	Path      string
	Width     int
	Height    int
	Storage   string
	Robots    int
	Placed    int
	Discarded int
}

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	failed atomic.Int64
}

type reqKind int

const (
	reqFile reqKind = iota + 1
	reqRegion
)

type req struct {
	kind   reqKind
	at     string
	file   FileRow
	region RegionRow
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 1024),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			digest TEXT NOT NULL,
			size INTEGER NOT NULL,
			result TEXT NOT NULL,
			version INTEGER NOT NULL,
			boards INTEGER NOT NULL,
			codes TEXT NOT NULL,
			scanned_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_files_digest ON files(digest);`,
		`CREATE TABLE IF NOT EXISTS regions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			op TEXT NOT NULL,
			path TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			storage TEXT NOT NULL,
			robots INTEGER NOT NULL,
			placed INTEGER NOT NULL,
			discarded INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue, commits and closes the database.
func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
		if err == nil {
			if n := s.failed.Load(); n > 0 {
				err = fmt.Errorf("indexdb: %d rows failed to write", n)
			}
		}
	})
	return err
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// RecordFile queues a file row. Rows for the same path replace each other.
func (s *SQLiteIndex) RecordFile(r FileRow) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqFile, at: now(), file: r}
}

// RecordRegion queues a region operation row.
func (s *SQLiteIndex) RecordRegion(r RegionRow) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqRegion, at: now(), region: r}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertFile, _ := s.db.Prepare(`INSERT OR REPLACE INTO files(path,kind,digest,size,result,version,boards,codes,scanned_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertRegion, _ := s.db.Prepare(`INSERT INTO regions(op,path,width,height,storage,robots,placed,discarded,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertFile != nil {
			_ = insertFile.Close()
		}
		if insertRegion != nil {
			_ = insertRegion.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 500
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(int64(opCount))
		}
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.failed.Add(1)
			continue
		}
		var err error
		switch r.kind {
		case reqFile:
			f := r.file
			if insertFile == nil {
				err = fmt.Errorf("no file statement")
				break
			}
			_, err = tx.Stmt(insertFile).Exec(f.Path, f.Kind, f.Digest, f.Size, f.Result, f.Version, f.Boards, strings.Join(f.Codes, ","), r.at)
		case reqRegion:
			g := r.region
			if insertRegion == nil {
				err = fmt.Errorf("no region statement")
				break
			}
			_, err = tx.Stmt(insertRegion).Exec(g.Op, g.Path, g.Width, g.Height, g.Storage, g.Robots, g.Placed, g.Discarded, r.at)
		}
		if err != nil {
			s.failed.Add(1)
			continue
		}
		opCount++
		if opCount >= commitEvery {
			commit()
		}
	}
	commit()
}

// ListFiles reads the files table of the index at path, ordered by path.
// Rows queued on an open SQLiteIndex are visible once it is closed.
func ListFiles(ctx context.Context, path string) ([]FileRow, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT path,kind,digest,size,result,version,boards,codes FROM files ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FileRow
	for rows.Next() {
		var (
			f     FileRow
			codes string
		)
		if err := rows.Scan(&f.Path, &f.Kind, &f.Digest, &f.Size, &f.Result, &f.Version, &f.Boards, &codes); err != nil {
			return nil, err
		}
		if codes != "" {
			f.Codes = strings.Split(codes, ",")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Digest is the hex blake3-256 sum of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestFile streams path through blake3 and returns its sum and size.
func DigestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

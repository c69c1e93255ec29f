package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/legacy"
	"zeuxkit.dev/internal/persistence/archive"
	"zeuxkit.dev/internal/persistence/indexdb"
	"zeuxkit.dev/internal/persistence/snapshot"
	"zeuxkit.dev/internal/report"
	"zeuxkit.dev/internal/world"
)

// linePrompter asks on out and reads a y/n answer from in.
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p linePrompter) Confirm(question string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", question)
	line, _ := p.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func validateCmd(a *app, args []string) int {
	fs := newFlagSet(a, "validate")
	savegame := fs.Bool("savegame", false, "files are savegames")
	unlock := fs.Bool("unlock", false, "decrypt protected worlds as the config policy allows")
	prompt := fs.Bool("prompt", false, "with -unlock, ask before decrypting")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	var prompter legacy.Prompter
	if *prompt {
		prompter = linePrompter{in: bufio.NewReader(a.stdin), out: a.stderr}
	}

	status := 0
	for _, path := range fs.Args() {
		o := a.begin("validate", path)
		var v legacy.Validation
		if *unlock {
			p := a.cfg.Policy(prompter)
			p.Reporter = o.reporter()
			v = legacy.ValidateWithPolicy(path, *savegame, p)
		} else {
			v = legacy.Validate(path, *savegame, o.reporter())
		}
		if v.Version != 0 {
			o.detail["version"] = world.VersionString(v.Version)
		}
		if v.Result != legacy.Success {
			o.detail["method"] = v.Method
			status = 1
		}
		fmt.Fprintf(a.stdout, "%s\t%s\n", path, v.Result)
		o.finish(v.Result.String(), nil)
	}
	return status
}

func decryptCmd(a *app, args []string) int {
	fs := newFlagSet(a, "decrypt")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	path := fs.Arg(0)
	o := a.begin("decrypt", path)
	rep := o.reporter()

	if v := legacy.Validate(path, false, rep); v.Result != legacy.Protected {
		return o.finish(v.Result.String(), fmt.Errorf("%s is not a protected world (%s)", path, v.Result))
	}
	if err := legacy.Decrypt(path, legacy.DecryptOptions{MaxPath: a.cfg.MaxPath}); err != nil {
		rep.Report(err)
		return o.finish("", err)
	}
	v := legacy.Validate(path, false, rep)
	if v.Version != 0 {
		o.detail["version"] = world.VersionString(v.Version)
	}
	fmt.Fprintf(a.stdout, "%s\t%s\n", path, v.Result)
	if v.Result != legacy.Success {
		return o.finish(v.Result.String(), fmt.Errorf("decrypted file does not validate: %w", v.Err))
	}
	return o.finish(v.Result.String(), nil)
}

func lockCmd(a *app, args []string) int {
	fs := newFlagSet(a, "lock")
	password := fs.String("password", "", "password, at most 15 bytes")
	method := fs.Int("method", 1, "protection method 1-3")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	src, dst := fs.Arg(0), fs.Arg(1)
	o := a.begin("lock", src)
	o.detail["out"] = dst
	o.detail["method"] = *method

	if v := legacy.Validate(src, false, o.reporter()); v.Result != legacy.Success {
		return o.finish(v.Result.String(), fmt.Errorf("%s: %s", src, v.Result))
	}
	if err := legacy.Protect(src, dst, []byte(*password), *method); err != nil {
		return o.finish("", err)
	}
	fmt.Fprintln(a.stdout, dst)
	return o.finish("success", nil)
}

func inspectCmd(a *app, args []string) int {
	fs := newFlagSet(a, "inspect")
	savegame := fs.Bool("savegame", false, "file is a savegame")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	path := fs.Arg(0)
	o := a.begin("inspect", path)
	r := report.Inspect(path, *savegame, o.reporter())
	if err := report.Write(a.stdout, r); err != nil {
		return o.finish("", err)
	}
	o.detail["digest"] = r.Digest
	status := o.finish(r.Result, nil)
	if r.Result != "success" && r.Result != "protected" {
		status = 1
	}
	return status
}

func convertCmd(a *app, args []string) int {
	fs := newFlagSet(a, "convert")
	savegame := fs.Bool("savegame", false, "file is a savegame")
	out := fs.String("out", "", "snapshot path (.snap.zst)")
	archiveDir := fs.String("archive", "", "also keep a copy under DIR/archives, once per source digest")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || *out == "" {
		fs.Usage()
		return 2
	}
	path := fs.Arg(0)
	o := a.begin("convert", path)
	w, err := loadWorld(a, path, *savegame, o.reporter())
	if err != nil {
		return o.finish("", err)
	}
	if err := snapshot.WriteSnapshot(*out, snapshot.FromWorld(w, path)); err != nil {
		return o.finish("", fmt.Errorf("write snapshot: %w", err))
	}
	o.detail["out"] = *out
	o.detail["boards"] = len(w.Boards)
	fmt.Fprintf(a.stdout, "%s\t%d boards\n", *out, len(w.Boards))

	if *archiveDir != "" {
		digest, _, err := indexdb.DigestFile(path)
		if err != nil {
			return o.finish("", err)
		}
		dst, archived, err := archive.ArchiveSnapshot(*archiveDir, *out, digest)
		if err != nil {
			return o.finish("", fmt.Errorf("archive snapshot: %w", err))
		}
		o.detail["archived"] = archived
		if archived {
			fmt.Fprintf(a.stdout, "archived\t%s\n", dst)
		}
	}
	return o.finish("success", nil)
}

const snapshotSuffix = ".snap.zst"

var errNotLoadable = errors.New("file does not validate")

// loadWorld reads a snapshot, or validates and decodes a legacy file.
// Protected worlds are unlocked as the config policy allows, without a
// prompt.
func loadWorld(a *app, path string, savegame bool, rep diag.Reporter) (*world.World, error) {
	if strings.HasSuffix(path, snapshotSuffix) {
		snap, err := snapshot.ReadSnapshot(path)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		return snap.ToWorld(), nil
	}
	p := a.cfg.Policy(nil)
	p.Standalone = true
	p.Reporter = rep
	v := legacy.ValidateWithPolicy(path, savegame, p)
	if v.Result != legacy.Success {
		return nil, fmt.Errorf("%w: %s: %s", errNotLoadable, path, v.Result)
	}
	return legacy.Load(path, savegame, legacy.Options{Reporter: rep})
}

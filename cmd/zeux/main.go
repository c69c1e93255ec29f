package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"

	"zeuxkit.dev/internal/config"
	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/persistence/journal"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type command struct {
	usage string
	run   func(a *app, args []string) int
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"validate": {"validate [-savegame] [-unlock] FILE...", validateCmd},
		"decrypt":  {"decrypt FILE", decryptCmd},
		"lock":     {"lock -password PW [-method N] SRC DST", lockCmd},
		"inspect":  {"inspect [-savegame] FILE", inspectCmd},
		"convert":  {"convert [-savegame] [-archive DIR] -out SNAPSHOT FILE", convertCmd},
		"mzm-save": {"mzm-save -world FILE -out MZM -rect X,Y,W,H [-mode board|overlay|board-layer|vlayer]", mzmSaveCmd},
		"mzm-load": {"mzm-load -world FILE -in MZM -at X,Y [-target board|overlay|vlayer] [-out SNAPSHOT]", mzmLoadCmd},
		"mzm-size": {"mzm-size MZM...", mzmSizeCmd},
		"index":    {"index [-db PATH] DIR", indexCmd},
		"journal":  {"journal [-dir DIR]", journalCmd},
	}
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// suggest returns the commands within a small edit distance of name.
func suggest(name string) []string {
	var out []string
	for _, n := range commandNames() {
		limit := 2
		if len(n) <= 4 {
			limit = 1
		}
		if levenshtein.ComputeDistance(strings.ToLower(name), n) <= limit || strings.HasPrefix(n, name) && name != "" {
			out = append(out, n)
		}
	}
	return out
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: zeux [-config FILE] COMMAND [flags] ARGS")
	for _, n := range commandNames() {
		fmt.Fprintln(w, "  zeux", commands[n].usage)
	}
}

// app carries what every command shares.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	rep     diag.Reporter
	journal *journal.Journal

	stdin          io.Reader
	stdout, stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("zeux", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("ZEUX_CONFIG"), "yaml config file (optional)")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return 2
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		if s := suggest(name); len(s) > 0 {
			fmt.Fprintf(stderr, "did you mean: %s?\n", strings.Join(s, ", "))
		}
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 2
	}
	log := diag.NewLogger(cfg.Log.Level, cfg.Log.Format, stderr)
	a := &app{
		cfg:     cfg,
		log:     log,
		rep:     diag.NewLogReporter(log),
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}
	if cfg.JournalDir != "" {
		a.journal = journal.Open(cfg.JournalDir)
	}
	defer func() {
		if err := a.journal.Close(); err != nil {
			log.WithError(err).Warn("journal close")
		}
	}()
	return cmd.run(a, rest)
}

// op tracks one journaled operation and the diagnostics it produced.
type op struct {
	a      *app
	name   string
	path   string
	rec    *diag.Recorder
	detail map[string]any
}

func (a *app) begin(name, path string) *op {
	return &op{a: a, name: name, path: path, rec: &diag.Recorder{}, detail: map[string]any{}}
}

// reporter sends diagnostics to the log and to the journal entry.
func (o *op) reporter() diag.Reporter { return diag.Tee(o.rec, o.a.rep) }

// finish journals the outcome and returns the exit status for it.
func (o *op) finish(result string, err error) int {
	e := journal.Entry{
		Op:     o.name,
		Path:   o.path,
		Result: result,
		Codes:  o.rec.Codes(),
	}
	if err != nil {
		e.Error = err.Error()
		if e.Result == "" {
			e.Result = "error"
		}
	}
	if len(o.detail) > 0 {
		e.Detail = o.detail
	}
	if jerr := o.a.journal.Append(e); jerr != nil {
		o.a.log.WithError(jerr).Warn("journal append")
	}
	if err != nil {
		fmt.Fprintf(o.a.stderr, "%s: %v\n", o.name, err)
		return 1
	}
	return 0
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "usage: zeux", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

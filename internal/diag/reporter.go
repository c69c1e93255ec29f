package diag

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Reporter receives every diagnostic raised while validating, decoding or
// exchanging files. Warnings and errors share the sink; the caller decides
// what a code means for its workflow.
type Reporter interface {
	Report(err error)
}

// NewLogger builds a logrus logger. LOG_LEVEL and LOG_FORMAT override the
// passed values when set.
func NewLogger(level, format string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = v
	}
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok {
		format = v
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)
	return l
}

// LogReporter writes diagnostics as structured log entries.
type LogReporter struct {
	Log logrus.FieldLogger
}

func NewLogReporter(l logrus.FieldLogger) *LogReporter {
	return &LogReporter{Log: l}
}

func (r *LogReporter) Report(err error) {
	if r == nil || r.Log == nil || err == nil {
		return
	}
	fields := logrus.Fields{}
	var e *Error
	if errors.As(err, &e) {
		fields["code"] = e.Code
		if e.File != "" {
			fields["file"] = e.File
		}
		if e.Version != 0 {
			fields["version"] = e.Version
		}
		if e.Size != 0 {
			fields["size"] = e.Size
		}
	}
	entry := r.Log.WithFields(fields)
	if IsWarning(err) {
		entry.Warn(err.Error())
		return
	}
	entry.Error(err.Error())
}

// IsWarning reports codes after which the operation still produced a result.
func IsWarning(err error) bool {
	switch CodeOf(err) {
	case CodeBoardDummy, CodeWorldRobotMissing, CodeBoardRobotCorrupt, CodeRobotSlotExhausted,
		CodeMZMVersionTooRecent, CodeMZMFromSavegame, CodeMZMRobotCorrupt, CodeWorldPasswordProtected:
		return true
	}
	return false
}

type discard struct{}

func (discard) Report(error) {}

// Discard drops every diagnostic.
var Discard Reporter = discard{}

// Recorder keeps diagnostics in memory.
type Recorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *Recorder) Report(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *Recorder) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.errs))
	for _, err := range r.errs {
		out = append(out, CodeOf(err))
	}
	return out
}

// Has reports whether a diagnostic with code was recorded.
func (r *Recorder) Has(code string) bool {
	for _, c := range r.Codes() {
		if c == code {
			return true
		}
	}
	return false
}

// OrDiscard returns r, or Discard when r is nil.
func OrDiscard(r Reporter) Reporter {
	if r == nil {
		return Discard
	}
	return r
}

type tee []Reporter

func (t tee) Report(err error) {
	for _, r := range t {
		r.Report(err)
	}
}

// Tee sends every diagnostic to each non-nil reporter.
func Tee(rs ...Reporter) Reporter {
	var out tee
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

package diag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFileMissing        = errors.New("file missing")
	ErrInvalid            = errors.New("structurally invalid")
	ErrVersionTooOld      = errors.New("version too old")
	ErrVersionTooNew      = errors.New("version too new")
	ErrProtected          = errors.New("password protected")
	ErrLocked             = errors.New("world is still locked")
	ErrWriteProtected     = errors.New("write protected")
	ErrIO                 = errors.New("read failure")
	ErrRobotCorrupt       = errors.New("robot payload corrupt")
	ErrRobotMissing       = errors.New("robot missing")
	ErrRobotSlotExhausted = errors.New("no free robot slot")
)

// Error carries a diagnostic code plus the context needed to render it.
// Version and Size are zero when they do not apply.
type Error struct {
	Code    string
	File    string
	Version int
	Size    int
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.File != "" {
		fmt.Fprintf(&b, " %s", e.File)
	}
	if e.Version != 0 {
		fmt.Fprintf(&b, " (version %d.%02d)", e.Version>>8, e.Version&0xFF)
	}
	if e.Size != 0 {
		fmt.Fprintf(&b, " (size %d)", e.Size)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(code, file string, err error) *Error {
	return &Error{Code: code, File: file, Err: err}
}

func WithVersion(code, file string, version int, err error) *Error {
	return &Error{Code: code, File: file, Version: version, Err: err}
}

// CodeOf returns the diagnostic code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

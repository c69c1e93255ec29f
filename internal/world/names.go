package world

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
)

// CString returns b up to its first NUL.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// PutCString copies s into a fixed field of n bytes, truncating so the last
// byte is always NUL.
func PutCString(s string, n int) []byte {
	out := make([]byte, n)
	if n > 0 {
		copy(out[:n-1], s)
	}
	return out
}

// DisplayName decodes a CP437 name as stored on disk into UTF-8.
func DisplayName(s string) string {
	out, err := charmap.CodePage437.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

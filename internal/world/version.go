package world

import "fmt"

// File format versions, encoded as major<<8 | minor.
const (
	V100 = 0x0100
	V200 = 0x0200
	V251 = 0x0205
	V283 = 0x0253
	V284 = 0x0254

	// LegacyFormatVersion is the last version written in the legacy layout.
	LegacyFormatVersion = V284
	// CurrentVersion is the version this program writes.
	CurrentVersion = 0x025D
)

// VersionString renders a version word as "M.mm".
func VersionString(v int) string {
	return fmt.Sprintf("%d.%02d", v>>8, v&0xFF)
}

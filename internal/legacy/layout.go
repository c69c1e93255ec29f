// Package legacy validates, decrypts and decodes worlds and savegames stored
// in the legacy (2.51 to 2.84) layout.
package legacy

import "zeuxkit.dev/internal/world"

// Fixed offsets and block sizes of the legacy layout.
const (
	GlobalOffsetOffset = 4230
	Block1Size         = 4129
	Block2Size         = 72
	DecryptBufferSize  = 8192

	nameSize         = world.BoardNameSize
	protectionOffset = nameSize
	worldHeaderSize  = nameSize + 1 + 3
	paletteOffset    = GlobalOffsetOffset - 48
	saveHeaderSize   = 8

	saveBlockSize       = 71
	saveRuntimeSize     = 24
	spriteBlockSize     = 4612
	miscBlockSize       = 12
	smzxPaletteSize     = 768
	boardTableEntrySize = nameSize + 8
)

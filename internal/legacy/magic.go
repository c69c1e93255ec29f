package legacy

import "zeuxkit.dev/internal/world"

// WorldMagic maps the 3-byte world signature to a version, or 0.
func WorldMagic(m []byte) int {
	if len(m) < 3 || m[0] != 'M' {
		return 0
	}
	if m[1] == 'Z' {
		switch m[2] {
		case 'X':
			return world.V100
		case '2':
			return world.V200
		case 'A':
			return world.V251
		}
		return 0
	}
	if m[1] > 1 && m[1] < 10 {
		return int(m[1])<<8 | int(m[2])
	}
	return 0
}

// SaveMagic maps the 5-byte savegame signature to a version, or 0.
func SaveMagic(m []byte) int {
	if len(m) < 5 || m[0] != 'M' || m[1] != 'Z' {
		return 0
	}
	switch m[2] {
	case 'S':
		if m[3] == 'V' && m[4] == '2' {
			return world.V251
		}
		if m[3] >= 2 && m[3] <= 10 {
			return int(m[3])<<8 | int(m[4])
		}
	case 'X':
		if m[3] == 'S' && m[4] == 'A' {
			return world.V251
		}
	}
	return 0
}

// WorldMagicBytes is the signature written for version.
func WorldMagicBytes(version int) []byte {
	return []byte{'M', byte(version >> 8), byte(version)}
}

// SaveMagicBytes is the savegame signature written for version.
func SaveMagicBytes(version int) []byte {
	return []byte{'M', 'Z', 'S', byte(version >> 8), byte(version)}
}

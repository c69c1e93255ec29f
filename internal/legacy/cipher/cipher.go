// Package cipher derives the XOR keystream of password-protected legacy
// worlds.
package cipher

import "bytes"

// PasswordSize is the fixed width of the stored password field.
const PasswordSize = 15

// MaxMethod is the highest valid protection method.
const MaxMethod = 3

var secret = [PasswordSize]byte{
	0xE6, 0x52, 0xEB, 0xF2, 0x6D, 0x4D, 0x4A, 0xB7,
	0x87, 0xB2, 0x92, 0x88, 0xDE, 0x91, 0x24,
}

// Key is a derived keystream value with its word and dword replications.
type Key struct {
	Byte  byte
	Word  uint16
	Dword uint32
}

// Derive computes the key for a plaintext password and protection method.
// Bytes after the first NUL are ignored; shorter passwords are zero padded.
func Derive(password []byte, method int) Key {
	var pw [PasswordSize]byte
	if i := bytes.IndexByte(password, 0); i >= 0 {
		password = password[:i]
	}
	copy(pw[:], password)

	work := int32(85)
	for i := 0; i < PasswordSize; i++ {
		work = roll(work)
		c := int32(int8(pw[i]))
		if i&1 != 0 {
			work = wrap(work + c)
		} else {
			work ^= c
		}
	}
	work = roll(wrap(work + int32(method)))

	// Password bytes widen as signed chars, so the accumulator can leave
	// 0-255. Only its low byte is the key.
	b := byte(work)
	if b == 0 {
		b = 86
	}
	return Key{
		Byte:  b,
		Word:  uint16(b) * 0x0101,
		Dword: uint32(b) * 0x01010101,
	}
}

func roll(work int32) int32 { return wrap(work << 1) }

func wrap(work int32) int32 {
	if work > 255 {
		work ^= 257
	}
	return work
}

// XOR applies the byte key to p in place.
func (k Key) XOR(p []byte) {
	for i := range p {
		p[i] ^= k.Byte
	}
}

// NormalizePassword turns a stored password field back into plaintext.
func NormalizePassword(stored []byte, method int) []byte {
	out := make([]byte, PasswordSize)
	copy(out, stored)
	for i := range out {
		out[i] ^= secret[i]
		out[i] -= byte(0x12 + method)
		out[i] ^= 0x8D
	}
	return out
}

// ObfuscatePassword is the inverse of NormalizePassword.
func ObfuscatePassword(password []byte, method int) []byte {
	out := make([]byte, PasswordSize)
	copy(out, password)
	for i := range out {
		out[i] ^= 0x8D
		out[i] += byte(0x12 + method)
		out[i] ^= secret[i]
	}
	return out
}

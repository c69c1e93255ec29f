package legacy

import (
	"encoding/binary"
	"fmt"
	"os"

	"zeuxkit.dev/internal/legacy/cipher"
)

// Protect writes an encrypted copy of the unprotected world src to dst.
// Decrypt is its inverse except for the signature, which it normalizes.
func Protect(src, dst string, password []byte, method int) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	out, err := ProtectBytes(data, password, method)
	if err != nil {
		return fmt.Errorf("protect %s: %w", src, err)
	}
	return os.WriteFile(dst, out, 0o644)
}

// ProtectBytes encrypts an unprotected world image.
func ProtectBytes(data []byte, password []byte, method int) ([]byte, error) {
	if method < 1 || method > cipher.MaxMethod {
		return nil, fmt.Errorf("protection method %d out of range", method)
	}
	if len(password) > cipher.PasswordSize {
		return nil, fmt.Errorf("password longer than %d bytes", cipher.PasswordSize)
	}
	if len(data) < GlobalOffsetOffset+5 {
		return nil, fmt.Errorf("world too short (%d bytes)", len(data))
	}
	if data[protectionOffset] != 0 {
		return nil, fmt.Errorf("world is already protected (method %d)", data[protectionOffset])
	}

	key := cipher.Derive(password, method)
	le := binary.LittleEndian
	out := make([]byte, 0, len(data)+cipher.PasswordSize)
	out = append(out, data[:nameSize]...)
	out = append(out, byte(method))
	out = append(out, cipher.ObfuscatePassword(password, method)...)
	out = append(out, data[nameSize+1:worldHeaderSize]...)

	pos := worldHeaderSize
	xor := func(n int) error {
		if n < 0 || pos+n > len(data) {
			return fmt.Errorf("block of %d bytes at %d overruns the file", n, pos)
		}
		chunk := append([]byte(nil), data[pos:pos+n]...)
		key.XOR(chunk)
		out = append(out, chunk...)
		pos += n
		return nil
	}
	dword := func() (uint32, error) {
		if pos+4 > len(data) {
			return 0, fmt.Errorf("dword at %d overruns the file", pos)
		}
		v := le.Uint32(data[pos:])
		pos += 4
		return v, nil
	}
	putDword := func(v uint32) { out = le.AppendUint32(out, v) }
	count := func() (byte, error) {
		if pos >= len(data) {
			return 0, fmt.Errorf("board count at %d overruns the file", pos)
		}
		c := data[pos]
		pos++
		out = append(out, c^key.Byte)
		return c, nil
	}

	if err := xor(Block1Size + Block2Size); err != nil {
		return nil, err
	}
	off, err := dword()
	if err != nil {
		return nil, err
	}
	putDword((off + cipher.PasswordSize) ^ key.Dword)

	boards, err := count()
	if err != nil {
		return nil, err
	}
	if boards == 0 {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("sfx size overruns the file")
		}
		size := le.Uint16(data[pos:])
		pos += 2
		out = le.AppendUint16(out, size^key.Word)
		if err := xor(int(size)); err != nil {
			return nil, err
		}
		if boards, err = count(); err != nil {
			return nil, err
		}
	}
	if err := xor(nameSize * int(boards)); err != nil {
		return nil, err
	}
	for i := 0; i < int(boards); i++ {
		length, err := dword()
		if err != nil {
			return nil, err
		}
		putDword(length ^ key.Dword)
		off, err := dword()
		if err != nil {
			return nil, err
		}
		putDword((off + cipher.PasswordSize) ^ key.Dword)
	}
	if err := xor(len(data) - pos); err != nil {
		return nil, err
	}
	return out, nil
}

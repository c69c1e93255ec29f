package legacy

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"zeuxkit.dev/internal/diag"
	"zeuxkit.dev/internal/legacy/cipher"
	"zeuxkit.dev/internal/world"
)

// decryptedMagic replaces the signature of every decrypted world.
var decryptedMagic = []byte{'M', 0x02, 0x11}

const encryptedHeaderSize = nameSize + 1 + cipher.PasswordSize + 3

type DecryptOptions struct {
	// MaxPath bounds the backup name; 0 means world.MaxPath.
	MaxPath int
}

// Decrypt removes password protection from the world at path in place. The
// original is first copied to "<path>.locked", or "<stem>.LCK" when the
// former cannot be written. The password field is dropped, so every stored
// offset moves back by its width.
func Decrypt(path string, opts DecryptOptions) error {
	backup, err := backupWorld(path, opts.MaxPath)
	if err != nil {
		return diag.New(diag.CodeIORead, path, fmt.Errorf("%w: backup: %v", diag.ErrIO, err))
	}

	src, err := os.Open(backup)
	if err != nil {
		return diag.New(diag.CodeIORead, backup, fmt.Errorf("%w: %v", diag.ErrIO, err))
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return diag.New(diag.CodeWorldDecryptWriteProt, path, fmt.Errorf("%w: %v", diag.ErrWriteProtected, err))
	}
	defer func() { _ = dst.Close() }()

	d := &decrypter{
		src: bufio.NewReaderSize(src, DecryptBufferSize),
		dst: bufio.NewWriterSize(dst, DecryptBufferSize),
		buf: make([]byte, DecryptBufferSize),
	}
	if err := d.run(); err != nil {
		return diag.New(diag.CodeIORead, path, fmt.Errorf("%w: decrypt: %v", diag.ErrIO, err))
	}
	if err := d.dst.Flush(); err != nil {
		return diag.New(diag.CodeIORead, path, fmt.Errorf("%w: %v", diag.ErrIO, err))
	}
	return dst.Close()
}

func backupWorld(path string, maxPath int) (string, error) {
	if maxPath <= 0 {
		maxPath = world.MaxPath
	}
	primary := path + ".locked"
	var firstErr error
	if len(primary) < maxPath {
		if firstErr = copyFile(path, primary); firstErr == nil {
			return primary, nil
		}
	} else {
		firstErr = fmt.Errorf("backup name exceeds %d bytes", maxPath)
	}

	// Try a shorter name.
	pos := strings.LastIndexByte(path, '.')
	if pos < 0 || pos < len(path)-len(filepath.Base(path)) || pos >= maxPath {
		return "", firstErr
	}
	alt := path[:pos] + ".LCK"
	if err := copyFile(path, alt); err != nil {
		return "", errors.Join(firstErr, err)
	}
	return alt, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.CopyBuffer(out, in, make([]byte, DecryptBufferSize)); err != nil {
		return err
	}
	return out.Close()
}

type decrypter struct {
	src *bufio.Reader
	dst *bufio.Writer
	buf []byte
	key cipher.Key
}

func (d *decrypter) run() error {
	head := make([]byte, encryptedHeaderSize)
	if _, err := io.ReadFull(d.src, head); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	method := int(head[protectionOffset])
	pw := cipher.NormalizePassword(head[protectionOffset+1:protectionOffset+1+cipher.PasswordSize], method)
	d.key = cipher.Derive(pw, method)

	d.dst.Write(head[:nameSize])
	d.dst.WriteByte(0)
	d.dst.Write(decryptedMagic)

	if err := d.block(Block1Size + Block2Size); err != nil {
		return fmt.Errorf("world data: %w", err)
	}
	if err := d.offset(); err != nil {
		return fmt.Errorf("global robot offset: %w", err)
	}

	boards, err := d.u8()
	if err != nil {
		return fmt.Errorf("board count: %w", err)
	}
	if boards == 0 {
		var raw [2]byte
		if _, err := io.ReadFull(d.src, raw[:]); err != nil {
			return fmt.Errorf("sfx size: %w", err)
		}
		size := binary.LittleEndian.Uint16(raw[:]) ^ d.key.Word
		binary.LittleEndian.PutUint16(raw[:], size)
		d.dst.Write(raw[:])
		if err := d.block(int(size)); err != nil {
			return fmt.Errorf("sfx: %w", err)
		}
		if boards, err = d.u8(); err != nil {
			return fmt.Errorf("board count: %w", err)
		}
	}

	if err := d.block(nameSize * int(boards)); err != nil {
		return fmt.Errorf("board names: %w", err)
	}
	for i := 0; i < int(boards); i++ {
		length, err := d.u32()
		if err != nil {
			return fmt.Errorf("board %d length: %w", i, err)
		}
		d.putDword(length ^ d.key.Dword)
		if err := d.offset(); err != nil {
			return fmt.Errorf("board %d offset: %w", i, err)
		}
	}

	// Everything else is XORed with the byte key.
	for {
		n, err := d.src.Read(d.buf)
		if n > 0 {
			d.key.XOR(d.buf[:n])
			if _, werr := d.dst.Write(d.buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (d *decrypter) block(n int) error {
	for n > 0 {
		chunk := min(n, len(d.buf))
		n -= chunk
		if _, err := io.ReadFull(d.src, d.buf[:chunk]); err != nil {
			return err
		}
		d.key.XOR(d.buf[:chunk])
		if _, err := d.dst.Write(d.buf[:chunk]); err != nil {
			return err
		}
	}
	return nil
}

func (d *decrypter) offset() error {
	v, err := d.u32()
	if err != nil {
		return err
	}
	d.putDword((v ^ d.key.Dword) - cipher.PasswordSize)
	return nil
}

func (d *decrypter) u8() (byte, error) {
	c, err := d.src.ReadByte()
	if err != nil {
		return 0, err
	}
	c ^= d.key.Byte
	return c, d.dst.WriteByte(c)
}

func (d *decrypter) u32() (uint32, error) {
	var raw [4]byte
	if _, err := io.ReadFull(d.src, raw[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw[:]), nil
}

func (d *decrypter) putDword(v uint32) {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], v)
	d.dst.Write(raw[:])
}

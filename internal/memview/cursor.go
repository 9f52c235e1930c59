package memview

import "encoding/binary"

// MaxCString caps null-terminated name reads. Host metadata names are short;
// anything longer is treated as corruption.
const MaxCString = 255

// Cursor reads typed values from an Image. It keeps a current position for
// sequential decoding (Advance) but also reads at absolute addresses, since
// the metadata graph is followed pointer by pointer. All failure modes are
// explicit errors; a failed validation performs no memory access at all.
type Cursor struct {
	img Image
	pos uint64

	scratch [8]byte
}

// NewCursor positions a cursor at addr over img.
func NewCursor(img Image, addr uint64) *Cursor {
	return &Cursor{img: img, pos: addr}
}

// Pos returns the current position.
func (c *Cursor) Pos() uint64 { return c.pos }

// Advance moves the position by off bytes, validating against wraparound and
// the image bounds.
func (c *Cursor) Advance(off uint64) error {
	next := c.pos + off
	if next < c.pos {
		return ErrOverflow
	}
	if next < c.img.Base() || next > c.img.Base()+c.img.Size() {
		return ErrOutOfBounds
	}
	c.pos = next
	return nil
}

// check validates that [addr, addr+n) is a readable range: non-nil, no
// pointer wrap, entirely within the module image.
func (c *Cursor) check(addr uint64, n uint64) error {
	if addr == 0 {
		return ErrOutOfBounds
	}
	end := addr + n
	if end < addr {
		return ErrOverflow
	}
	base := c.img.Base()
	if addr < base || end > base+c.img.Size() {
		return ErrOutOfBounds
	}
	return nil
}

func (c *Cursor) read(addr uint64, n int) ([]byte, error) {
	if err := c.check(addr, uint64(n)); err != nil {
		return nil, err
	}
	buf := c.scratch[:n]
	if err := c.img.ReadAt(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// U8 reads one byte at addr.
func (c *Cursor) U8(addr uint64) (uint8, error) {
	buf, err := c.read(addr, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// U16 reads a little-endian uint16 at addr.
func (c *Cursor) U16(addr uint64) (uint16, error) {
	buf, err := c.read(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// U32 reads a little-endian uint32 at addr.
func (c *Cursor) U32(addr uint64) (uint32, error) {
	buf, err := c.read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// U64 reads a little-endian uint64 at addr.
func (c *Cursor) U64(addr uint64) (uint64, error) {
	buf, err := c.read(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// I64 reads a little-endian int64 at addr.
func (c *Cursor) I64(addr uint64) (int64, error) {
	v, err := c.U64(addr)
	return int64(v), err
}

// Ptr reads a pointer-sized value at addr. The supported hosts are 64-bit.
func (c *Cursor) Ptr(addr uint64) (uint64, error) {
	return c.U64(addr)
}

// Bytes fills buf from addr.
func (c *Cursor) Bytes(addr uint64, buf []byte) error {
	if err := c.check(addr, uint64(len(buf))); err != nil {
		return err
	}
	return c.img.ReadAt(addr, buf)
}

// CString reads a null-terminated string at addr, at most MaxCString bytes.
// An unterminated run is reported as ErrOutOfBounds: a name that long means
// the pointer did not point at a name.
func (c *Cursor) CString(addr uint64) (string, error) {
	if err := c.check(addr, 1); err != nil {
		return "", err
	}
	var out []byte
	for i := uint64(0); i <= MaxCString; i++ {
		b, err := c.U8(addr + i)
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
	return "", ErrOutOfBounds
}

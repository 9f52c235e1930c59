// Package memview gives bounded read access to host process memory. It is the
// last line of defense between the reflection walker and corrupt or
// version-shifted metadata: every read is validated against the host module's
// mapped bounds before any memory is touched, and every failure is an
// explicit error value.
package memview

import "errors"

var (
	// ErrOutOfBounds is returned for reads outside the image bounds, reads
	// at address zero, and reads past the cursor end.
	ErrOutOfBounds = errors.New("memview: address out of bounds")
	// ErrOverflow is returned when an address range would wrap pointer
	// arithmetic.
	ErrOverflow = errors.New("memview: address range overflow")
)

// Image is readable memory with known bounds. Addresses are absolute: the
// valid range is [Base, Base+Size).
type Image interface {
	Base() uint64
	Size() uint64
	// ReadAt fills buf from addr. The range is validated by the caller
	// (Cursor); implementations may assume it is in bounds.
	ReadAt(addr uint64, buf []byte) error
}

// ByteImage is an Image over a captured byte slice: a memory dump on disk or
// a synthetic image built by tests. Base is the virtual address the slice
// starts at.
type ByteImage struct {
	base uint64
	data []byte
}

// NewByteImage wraps data as an image based at base.
func NewByteImage(base uint64, data []byte) *ByteImage {
	return &ByteImage{base: base, data: data}
}

func (b *ByteImage) Base() uint64 { return b.base }
func (b *ByteImage) Size() uint64 { return uint64(len(b.data)) }

func (b *ByteImage) ReadAt(addr uint64, buf []byte) error {
	off := addr - b.base
	if addr < b.base || off+uint64(len(buf)) > uint64(len(b.data)) {
		return ErrOutOfBounds
	}
	copy(buf, b.data[off:])
	return nil
}

// Bytes exposes the backing slice. Synthetic image builders use it; nothing
// on the walk path does.
func (b *ByteImage) Bytes() []byte { return b.data }

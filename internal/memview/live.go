package memview

import "unsafe"

// LiveImage reads the current process's own address space. Bounds come from
// the host module mapping resolved once at startup; the Cursor has already
// validated every range before ReadAt runs, so the unsafe slice below never
// covers unmapped memory as long as those bounds are honest.
type LiveImage struct {
	base uint64
	size uint64
}

// NewLiveImage describes the mapped range [base, base+size) of the host
// module inside this process.
func NewLiveImage(base, size uint64) *LiveImage {
	return &LiveImage{base: base, size: size}
}

func (l *LiveImage) Base() uint64 { return l.base }
func (l *LiveImage) Size() uint64 { return l.size }

func (l *LiveImage) ReadAt(addr uint64, buf []byte) error {
	if addr < l.base || addr+uint64(len(buf)) > l.base+l.size {
		return ErrOutOfBounds
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(buf))
	copy(buf, src)
	return nil
}

package hook

import (
	"fmt"
	"unsafe"
)

// LiveCode exposes the current process's own instruction bytes for
// patching. Bounds are the installer's concern; hooking only ever targets
// addresses validated against the host executable range.
type LiveCode struct{}

func (LiveCode) Slice(addr uint64, n int) ([]byte, error) {
	if addr == 0 || n <= 0 {
		return nil, fmt.Errorf("%w: %#x+%d", ErrInvalidAddress, addr, n)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n), nil
}

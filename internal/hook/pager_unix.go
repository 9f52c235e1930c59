//go:build !windows

package hook

import (
	"syscall"
	"unsafe"
)

// LivePager flips page protection around patch writes with mprotect.
type LivePager struct{}

func (LivePager) MakeWritable(addr uint64, n int) (func() error, error) {
	region := pageSpan(addr, n)

	if err := syscall.Mprotect(region, syscall.PROT_READ|syscall.PROT_WRITE|syscall.PROT_EXEC); err != nil {
		return nil, err
	}
	return func() error {
		return syscall.Mprotect(region, syscall.PROT_READ|syscall.PROT_EXEC)
	}, nil
}

// pageSpan widens [addr, addr+n) to whole pages as a byte slice.
func pageSpan(addr uint64, n int) []byte {
	pageSize := uintptr(syscall.Getpagesize())

	start := uintptr(addr) &^ (pageSize - 1)
	size := (uintptr(addr) - start + uintptr(n) + pageSize - 1) &^ (pageSize - 1)

	return unsafe.Slice((*byte)(unsafe.Pointer(start)), size)
}

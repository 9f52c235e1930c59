//go:build windows

package hook

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// LivePager flips page protection around patch writes with VirtualProtect.
type LivePager struct{}

func (LivePager) MakeWritable(addr uint64, n int) (func() error, error) {
	pageSize := uintptr(syscall.Getpagesize())

	start := uintptr(addr) &^ (pageSize - 1)
	size := (uintptr(addr) - start + uintptr(n) + pageSize - 1) &^ (pageSize - 1)

	var old uint32
	if err := windows.VirtualProtect(start, size, windows.PAGE_EXECUTE_READWRITE, &old); err != nil {
		return nil, err
	}
	return func() error {
		var tmp uint32
		return windows.VirtualProtect(start, size, old, &tmp)
	}, nil
}

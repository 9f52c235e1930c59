//go:build windows

package hostmod

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/windows"

	"github.com/Henri-J-Norden/drg-dll/internal/memview"
)

// headerProbe covers the DOS header, NT headers and section table of any
// sane PE; SizeOfHeaders is page-aligned and almost always 0x400.
const headerProbe = 0x1000

// Current resolves the module the given name refers to, or the process's
// main executable when name is empty.
func Current(name string) (*Module, error) {
	var handle windows.Handle
	if name == "" {
		if err := windows.GetModuleHandleEx(0, nil, &handle); err != nil {
			return nil, fmt.Errorf("hostmod: main module handle: %w", err)
		}
	} else {
		ptr, err := windows.UTF16PtrFromString(name)
		if err != nil {
			return nil, fmt.Errorf("hostmod: module name %q: %w", name, err)
		}
		if err := windows.GetModuleHandleEx(0, ptr, &handle); err != nil {
			return nil, fmt.Errorf("hostmod: %q: %w", name, ErrNotFound)
		}
	}

	base := uint64(handle)
	probe := memview.NewLiveImage(base, headerProbe)
	info, err := readPE(probe)
	if err != nil {
		return nil, err
	}

	var buf [windows.MAX_PATH]uint16
	n, err := windows.GetModuleFileName(windows.Handle(handle), &buf[0], uint32(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("hostmod: module file name: %w", err)
	}
	path := windows.UTF16ToString(buf[:n])

	return &Module{
		Name:      filepath.Base(path),
		Base:      base,
		Size:      uint64(info.SizeOfImage),
		ExecStart: info.ExecStart,
		ExecEnd:   info.ExecEnd,
	}, nil
}

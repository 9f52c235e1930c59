// Package hostmod resolves the host module's mapped bounds: image base, size,
// and the executable range functions must land in. Resolution happens once at
// startup and the result is threaded into the walker and the hook installer.
package hostmod

import (
	"errors"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/memview"
)

// ErrNotFound is returned when the named module is not mapped in this
// process.
var ErrNotFound = errors.New("hostmod: module not found")

// Module describes one mapped executable image.
type Module struct {
	Name      string
	Base      uint64
	Size      uint64
	ExecStart uint64
	ExecEnd   uint64
}

// Exec returns the executable address range.
func (m *Module) Exec() descriptor.ExecRange {
	return descriptor.ExecRange{Start: m.ExecStart, End: m.ExecEnd}
}

// Image returns a live view of the module's full mapped range.
func (m *Module) Image() *memview.LiveImage {
	return memview.NewLiveImage(m.Base, m.Size)
}

//go:build linux

package hostmod

import (
	"fmt"
	"os"
)

// Current resolves the module the given name refers to from /proc/self/maps,
// or the process's main executable when name is empty.
func Current(name string) (*Module, error) {
	if name == "" {
		exe, err := os.Readlink("/proc/self/exe")
		if err != nil {
			return nil, fmt.Errorf("hostmod: readlink /proc/self/exe: %w", err)
		}
		name = exe
	}

	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, fmt.Errorf("hostmod: open maps: %w", err)
	}
	defer f.Close()

	return parseMaps(f, name)
}

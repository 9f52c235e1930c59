//go:build !windows && !linux

package hostmod

import "errors"

// Current is unsupported on this platform.
func Current(name string) (*Module, error) {
	return nil, errors.New("hostmod: module discovery not supported on this platform")
}

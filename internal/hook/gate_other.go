//go:build !windows || !amd64

package hook

import (
	"fmt"
	"runtime"
)

// LiveGate has no thread-suspension primitive here. A wider-than-atomic
// patch cannot be made safe against concurrently executing threads, so
// Pause refuses rather than pretending the range is quiescent; the
// single-word atomic path is unaffected.
type LiveGate struct{}

func (LiveGate) Pause(lo, hi uint64) (func(), error) {
	return nil, fmt.Errorf("hook: thread pause unsupported on %s/%s", runtime.GOOS, runtime.GOARCH)
}

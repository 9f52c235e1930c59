// Command drgdll is the injectable module. Build it with
// -buildmode=c-shared; the injector loads the resulting library into the
// host process and invokes DRGAttach on a fresh thread.
package main

import "C"

import (
	"github.com/Henri-J-Norden/drg-dll/internal/inject"
)

// DRGAttach runs the SDK pipeline once inside the host process. It takes no
// arguments and reports nothing through its return: configuration comes from
// the environment and the JSON side-file, results land in the output
// directory, and failures land in the log file.
//
//export DRGAttach
func DRGAttach() {
	inject.Attach()
}

func main() {}

package main

import "C"

import (
	"sync"

	"github.com/Henri-J-Norden/drg-dll/internal/hook"
	"github.com/Henri-J-Norden/drg-dll/internal/hostmod"
)

// trampolineArenaSize holds the stubs for a full hook table with room to
// spare.
const trampolineArenaSize = 1 << 20

// The process has exactly one hook table, built over the main module's
// executable range on first use. There is no re-initialization path.
var (
	hookOnce sync.Once
	hookInst *hook.Installer
	hookErr  error
)

func installer() (*hook.Installer, error) {
	hookOnce.Do(func() {
		mod, err := hostmod.Current("")
		if err != nil {
			hookErr = err
			return
		}
		hookInst = hook.NewInstaller(
			mod.Exec(),
			hook.LiveCode{},
			hook.LivePager{},
			hook.LiveGate{},
			hook.NewArena(trampolineArenaSize),
		)
	})
	return hookInst, hookErr
}

// DRGInstallHook redirects the function at target to replacement. Addresses
// come from the generated SDK's function constants. Returns 0 on success,
// nonzero on failure; matching the replacement's signature to the target's
// recorded layout is the caller's contract.
//
//export DRGInstallHook
func DRGInstallHook(target, replacement uint64) int32 {
	in, err := installer()
	if err != nil {
		return 1
	}
	if err := in.Install(target, replacement); err != nil {
		return 2
	}
	return 0
}

// DRGUninstallHook restores the original bytes at target. Returns 0 on
// success, nonzero on failure.
//
//export DRGUninstallHook
func DRGUninstallHook(target uint64) int32 {
	in, err := installer()
	if err != nil {
		return 1
	}
	if err := in.Uninstall(target); err != nil {
		return 2
	}
	return 0
}

// DRGOriginal returns the trampoline entry for calling the unpatched
// function at target, or 0 when no hook is installed there.
//
//export DRGOriginal
func DRGOriginal(target uint64) uint64 {
	in, err := installer()
	if err != nil {
		return 0
	}
	return in.Original(target)
}

//go:build linux

package hook

import "syscall"

const (
	arenaInitProt = syscall.PROT_READ | syscall.PROT_WRITE | syscall.PROT_EXEC
	arenaProtRWX  = syscall.PROT_READ | syscall.PROT_WRITE | syscall.PROT_EXEC
	arenaProtRX   = syscall.PROT_READ | syscall.PROT_EXEC

	// Keep trampolines in the low 4 GiB so rel32 branches back into the
	// host module stay in range.
	arenaMapFlags = syscall.MAP_32BIT
)

//go:build !linux && !windows

package hook

import "syscall"

const (
	arenaInitProt = syscall.PROT_READ | syscall.PROT_WRITE | syscall.PROT_EXEC
	arenaProtRWX  = syscall.PROT_READ | syscall.PROT_WRITE | syscall.PROT_EXEC
	arenaProtRX   = syscall.PROT_READ | syscall.PROT_EXEC

	arenaMapFlags = 0
)

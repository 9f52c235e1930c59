//go:build windows

package hook

import "golang.org/x/sys/windows"

const (
	arenaInitProt = windows.PAGE_EXECUTE_READWRITE
	arenaProtRWX  = windows.PAGE_EXECUTE_READWRITE
	arenaProtRX   = windows.PAGE_EXECUTE_READ

	arenaMapFlags = 0
)

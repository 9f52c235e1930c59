//go:build windows && amd64

package hook

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	threadSuspendResume = 0x0002
	threadGetContext    = 0x0008

	contextAmd64Control = 0x100001 // CONTEXT_AMD64 | CONTEXT_CONTROL
)

var (
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetThreadContext = kernel32.NewProc("GetThreadContext")
)

// winContext is the CONTEXT_CONTROL prefix of the amd64 CONTEXT record; only
// Rip is consumed.
type winContext struct {
	P1Home       uint64
	P2Home       uint64
	P3Home       uint64
	P4Home       uint64
	P5Home       uint64
	P6Home       uint64
	ContextFlags uint32
	MxCsr        uint32
	SegCs        uint16
	SegDs        uint16
	SegEs        uint16
	SegFs        uint16
	SegGs        uint16
	SegSs        uint16
	EFlags       uint32
	Dr0          uint64
	Dr1          uint64
	Dr2          uint64
	Dr3          uint64
	Dr6          uint64
	Dr7          uint64
	Rax          uint64
	Rcx          uint64
	Rdx          uint64
	Rbx          uint64
	Rsp          uint64
	Rbp          uint64
	Rsi          uint64
	Rdi          uint64
	R8           uint64
	R9           uint64
	R10          uint64
	R11          uint64
	R12          uint64
	R13          uint64
	R14          uint64
	R15          uint64
	Rip          uint64
	FltSave      [512]byte
	_            [26][16]byte // vector registers
	_            [5]uint64    // vector control + branch records
}

// LiveGate suspends host threads whose instruction pointer lies inside the
// patched range, via a toolhelp thread snapshot. A thread parked elsewhere
// observes the atomic patch or the page flip without help; only a thread
// mid-range could resume into a half-written instruction.
type LiveGate struct{}

func (LiveGate) Pause(lo, hi uint64) (func(), error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPTHREAD, 0)
	if err != nil {
		return nil, fmt.Errorf("thread snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	pid := windows.GetCurrentProcessId()
	self := windows.GetCurrentThreadId()

	var suspended []windows.Handle
	resume := func() {
		for _, h := range suspended {
			windows.ResumeThread(h)
			windows.CloseHandle(h)
		}
	}

	var te windows.ThreadEntry32
	te.Size = uint32(unsafe.Sizeof(te))
	err = windows.Thread32First(snapshot, &te)
	for ; err == nil; err = windows.Thread32Next(snapshot, &te) {
		if te.OwnerProcessID != pid || te.ThreadID == self {
			continue
		}
		h, err := windows.OpenThread(threadSuspendResume|threadGetContext, false, te.ThreadID)
		if err != nil {
			continue // thread may have exited since the snapshot
		}
		if _, err := windows.SuspendThread(h); err != nil {
			windows.CloseHandle(h)
			continue
		}

		rip, err := threadRip(h)
		if err != nil || rip < lo || rip >= hi {
			windows.ResumeThread(h)
			windows.CloseHandle(h)
			continue
		}
		suspended = append(suspended, h)
	}

	return resume, nil
}

// threadRip reads the instruction pointer of a suspended thread.
func threadRip(h windows.Handle) (uint64, error) {
	// The CONTEXT record must be 16-byte aligned.
	raw := make([]byte, unsafe.Sizeof(winContext{})+15)
	addr := (uintptr(unsafe.Pointer(unsafe.SliceData(raw))) + 15) &^ 15
	ctx := (*winContext)(unsafe.Pointer(addr))
	ctx.ContextFlags = contextAmd64Control

	ret, _, err := procGetThreadContext.Call(uintptr(h), addr)
	if ret == 0 {
		return 0, err
	}
	return ctx.Rip, nil
}

// Package hook installs and removes execution hooks on resolved host
// function addresses. A hook overwrites the function prologue with a jump to
// a replacement and preserves the displaced instructions in a trampoline, so
// the replacement can still call the original. Install and uninstall are
// byte-for-byte reversible.
package hook

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
)

var (
	// ErrAlreadyHooked is returned by Install when the address is already in
	// the Installed state. Hooks do not stack.
	ErrAlreadyHooked = errors.New("hook: address already hooked")
	// ErrNotHooked is returned by Uninstall for an address with no record.
	ErrNotHooked = errors.New("hook: address not hooked")
	// ErrInvalidAddress is returned for targets outside the host executable
	// range and for zero replacement addresses.
	ErrInvalidAddress = errors.New("hook: invalid address")
	// ErrPatchTooLarge is returned when covering the redirect would displace
	// more prologue bytes than a record can save.
	ErrPatchTooLarge = errors.New("hook: patch too large")
	// ErrTableFull is returned when every hook record is in use.
	ErrTableFull = errors.New("hook: record table full")
)

// MaxPatch bounds the prologue bytes one hook may displace. The redirect
// needs at most 14 bytes; whole-instruction coverage can push past that, but
// anything beyond 32 means the decoder ran into data.
const MaxPatch = 32

// maxHooks bounds concurrently installed hooks.
const maxHooks = 64

// State of one hook record. Transitions only run under the installer lock:
// Unhooked → Installing → Installed → Uninstalling → Unhooked.
type State uint8

const (
	Unhooked State = iota
	Installing
	Installed
	Uninstalling
)

func (s State) String() string {
	switch s {
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Uninstalling:
		return "uninstalling"
	default:
		return "unhooked"
	}
}

// HookRecord tracks one active hook.
type HookRecord struct {
	Target      uint64
	Replacement uint64
	Trampoline  uint64

	state      State
	saved      [MaxPatch]byte
	savedLen   int
	trampoline []byte // arena slice backing Trampoline
}

// CodeView exposes patchable instruction bytes. Slice returns a writable
// view of [addr, addr+n); the returned slice aliases the actual bytes so an
// atomic store through its data pointer hits the live word.
type CodeView interface {
	Slice(addr uint64, n int) ([]byte, error)
}

// Pager flips page permissions around a patch write. MakeWritable returns a
// restore func that reinstates the previous protection.
type Pager interface {
	MakeWritable(addr uint64, n int) (restore func() error, err error)
}

// Gate pauses host threads whose instruction pointer lies inside
// [lo, hi) for the duration of a non-atomic patch write.
type Gate interface {
	Pause(lo, hi uint64) (resume func(), err error)
}

// Allocator hands out executable stub memory for trampolines.
type Allocator interface {
	BeginMutate() error
	EndMutate() error
	Allocate(size int) ([]byte, error)
	Free(buf []byte)
	// Addr returns the execution address of a slice returned by Allocate.
	Addr(buf []byte) uint64
}

// Installer owns the hook record table for one host process. All methods are
// safe for concurrent use; failures are local to one address and leave other
// hooks untouched.
type Installer struct {
	exec  descriptor.ExecRange
	code  CodeView
	pager Pager
	gate  Gate
	arena Allocator

	mu      sync.Mutex
	records [maxHooks]HookRecord
	used    [maxHooks]bool
}

// NewInstaller builds an installer over the given executable range and
// memory access primitives.
func NewInstaller(exec descriptor.ExecRange, code CodeView, pager Pager, gate Gate, arena Allocator) *Installer {
	return &Installer{exec: exec, code: code, pager: pager, gate: gate, arena: arena}
}

// Install redirects the function at target to replacement. The displaced
// prologue instructions are preserved in a trampoline, retrievable via
// Original. A second Install on the same target fails with ErrAlreadyHooked
// and leaves the existing hook unchanged.
func (in *Installer) Install(target, replacement uint64) error {
	if !in.exec.Contains(target) || replacement == 0 {
		return fmt.Errorf("%w: target %#x, replacement %#x", ErrInvalidAddress, target, replacement)
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.lookup(target) != nil {
		return fmt.Errorf("%w: %#x", ErrAlreadyHooked, target)
	}
	rec := in.claim(target)
	if rec == nil {
		return ErrTableFull
	}
	rec.state = Installing
	rec.Replacement = replacement

	if err := in.install(rec); err != nil {
		in.release(rec)
		return err
	}
	rec.state = Installed
	return nil
}

func (in *Installer) install(rec *HookRecord) error {
	jump := encodeJump(rec.Target, rec.Replacement)

	patchLen, err := coverLen(in.code, rec.Target, len(jump))
	if err != nil {
		return err
	}
	orig, err := in.code.Slice(rec.Target, patchLen)
	if err != nil {
		return fmt.Errorf("hook: read target %#x: %w", rec.Target, err)
	}
	copy(rec.saved[:], orig)
	rec.savedLen = patchLen

	tramp, err := in.buildTrampoline(rec.saved[:patchLen], rec.Target)
	if err != nil {
		return err
	}
	rec.trampoline = tramp
	rec.Trampoline = in.arena.Addr(tramp)

	patch := make([]byte, patchLen)
	copy(patch, jump)
	for i := len(jump); i < patchLen; i++ {
		patch[i] = opInt3
	}

	if err := in.writePatch(rec.Target, patch); err != nil {
		in.freeTrampoline(rec)
		return err
	}
	return nil
}

// Uninstall restores the original bytes at target and releases the
// trampoline. The bytes after Uninstall equal the bytes before Install.
func (in *Installer) Uninstall(target uint64) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	rec := in.lookup(target)
	if rec == nil {
		return fmt.Errorf("%w: %#x", ErrNotHooked, target)
	}
	rec.state = Uninstalling

	if err := in.writePatch(target, rec.saved[:rec.savedLen]); err != nil {
		// The patch is still live; keep the record so the hook can be
		// retried or inspected rather than orphaned.
		rec.state = Installed
		return err
	}
	in.freeTrampoline(rec)
	in.release(rec)
	return nil
}

// Original returns the trampoline entry for an installed hook: a callable
// address with the displaced prologue followed by a jump back into the
// unpatched body. Zero when the target is not hooked.
func (in *Installer) Original(target uint64) uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()

	if rec := in.lookup(target); rec != nil && rec.state == Installed {
		return rec.Trampoline
	}
	return 0
}

// StateOf reports the record state for target, Unhooked when absent.
func (in *Installer) StateOf(target uint64) State {
	in.mu.Lock()
	defer in.mu.Unlock()

	if rec := in.lookup(target); rec != nil {
		return rec.state
	}
	return Unhooked
}

// Installed returns the number of active hooks.
func (in *Installer) Installed() int {
	in.mu.Lock()
	defer in.mu.Unlock()

	n := 0
	for i := range in.records {
		if in.used[i] && in.records[i].state == Installed {
			n++
		}
	}
	return n
}

func (in *Installer) lookup(target uint64) *HookRecord {
	for i := range in.records {
		if in.used[i] && in.records[i].Target == target {
			return &in.records[i]
		}
	}
	return nil
}

func (in *Installer) claim(target uint64) *HookRecord {
	for i := range in.records {
		if !in.used[i] {
			in.used[i] = true
			in.records[i] = HookRecord{Target: target}
			return &in.records[i]
		}
	}
	return nil
}

func (in *Installer) release(rec *HookRecord) {
	for i := range in.records {
		if &in.records[i] == rec {
			in.records[i] = HookRecord{}
			in.used[i] = false
			return
		}
	}
}

func (in *Installer) buildTrampoline(saved []byte, target uint64) ([]byte, error) {
	if err := in.arena.BeginMutate(); err != nil {
		return nil, fmt.Errorf("hook: arena: %w", err)
	}
	defer in.arena.EndMutate()

	// Displaced instructions, worst-case relocation growth, and the
	// absolute jump back past the patch.
	buf, err := in.arena.Allocate(len(saved)*3 + absJumpLen)
	if err != nil {
		return nil, fmt.Errorf("hook: arena: %w", err)
	}

	body, err := relocate(saved, target, in.arena.Addr(buf))
	if err != nil {
		in.arena.Free(buf)
		return nil, err
	}
	body = appendAbsJump(body, target+uint64(len(saved)))
	if len(body) > len(buf) {
		in.arena.Free(buf)
		return nil, fmt.Errorf("hook: trampoline for %#x outgrew its stub", target)
	}
	copy(buf, body)
	return buf[:len(body)], nil
}

func (in *Installer) freeTrampoline(rec *HookRecord) {
	if rec.trampoline == nil {
		return
	}
	in.arena.BeginMutate()
	in.arena.Free(rec.trampoline)
	in.arena.EndMutate()
	rec.trampoline = nil
	rec.Trampoline = 0
}

// writePatch puts patch at target under the page-write window. When the
// range fits a single aligned 8-byte word the store is one atomic write and
// concurrent threads observe the old or the new instruction stream, never a
// torn one. Otherwise threads executing inside the range are paused around a
// plain copy.
func (in *Installer) writePatch(target uint64, patch []byte) error {
	restore, err := in.pager.MakeWritable(target, len(patch))
	if err != nil {
		return fmt.Errorf("hook: unprotect %#x: %w", target, err)
	}
	defer restore()

	if fitsAtomicWord(target, len(patch)) {
		return storeAtomic(in.code, target, patch)
	}

	resume, err := in.gate.Pause(target, target+uint64(len(patch)))
	if err != nil {
		return fmt.Errorf("hook: pause threads: %w", err)
	}
	defer resume()

	dst, err := in.code.Slice(target, len(patch))
	if err != nil {
		return fmt.Errorf("hook: write target %#x: %w", target, err)
	}
	copy(dst, patch)
	return nil
}

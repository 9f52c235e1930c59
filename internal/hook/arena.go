package hook

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/pboyd/malloc"
)

// Arena hands out trampoline stubs from one mmapped region that is RX while
// hooks run and flipped to RWX only inside a BeginMutate/EndMutate window.
type Arena struct {
	arena    *malloc.Arena
	mprotect func(int) error

	mu       sync.Mutex
	initOnce sync.Once
	size     int
	mutable  bool
}

// NewArena sizes the stub region. Allocation is lazy; nothing is mapped
// until the first trampoline.
func NewArena(size int) *Arena {
	return &Arena{size: size}
}

func (a *Arena) init() error {
	var err error
	a.initOnce.Do(func() {
		be := malloc.MmapBackend(malloc.MmapProt(arenaInitProt), malloc.MmapFlags(arenaMapFlags))
		if protBE, ok := be.(malloc.ProtectedArenaBackend); ok {
			a.mprotect = protBE.Protect
		} else {
			a.mprotect = func(int) error { return nil }
		}

		a.arena = malloc.NewArena(uint64(a.size), malloc.Backend(be))
		if a.arena == nil {
			err = errors.New("hook: unable to map trampoline arena")
			return
		}
		a.mutable = true
	})
	return err
}

// BeginMutate makes the region writable.
func (a *Arena) BeginMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// May run before the first Allocate has mapped anything.
	if a.mprotect == nil || a.mutable {
		return nil
	}
	err := a.mprotect(arenaProtRWX)
	if err == nil {
		a.mutable = true
	}
	return err
}

// EndMutate returns the region to execute-only-plus-read.
func (a *Arena) EndMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.mutable {
		return nil
	}
	err := a.mprotect(arenaProtRX)
	if err == nil {
		a.mutable = false
	}
	return err
}

// Allocate returns a stub buffer inside the region. Must run inside a
// mutate window.
func (a *Arena) Allocate(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.init(); err != nil {
		return nil, err
	}
	if !a.mutable {
		return nil, errors.New("hook: Allocate outside mutate window")
	}
	buf, err := malloc.MallocSlice[byte](a.arena, size)
	if err != nil {
		return nil, fmt.Errorf("hook: arena alloc %d: %w", size, err)
	}
	return buf, nil
}

// Free releases a stub buffer. Must run inside a mutate window.
func (a *Arena) Free(buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.mutable {
		return
	}
	malloc.FreeSlice(a.arena, buf)
}

// Addr returns the execution address of a stub buffer.
func (a *Arena) Addr(buf []byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
}

//go:build amd64

package hook

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

const (
	opJmpRel = 0xe9 // JMP rel32
	opInt3   = 0xcc

	relJumpLen = 5
	// FF 25 00000000 <imm64>: JMP [RIP+0] through an inline pointer.
	absJumpLen = 14
)

// encodeJump builds the redirect placed at from: a 5-byte relative jump when
// to is within rel32 reach, the 14-byte absolute form otherwise.
func encodeJump(from, to uint64) []byte {
	rel := int64(to) - int64(from+relJumpLen)
	if rel >= math.MinInt32 && rel <= math.MaxInt32 {
		buf := make([]byte, relJumpLen)
		buf[0] = opJmpRel
		binary.LittleEndian.PutUint32(buf[1:], uint32(int32(rel)))
		return buf
	}
	return appendAbsJump(nil, to)
}

// appendAbsJump appends JMP [RIP+0] followed by the 8-byte destination.
func appendAbsJump(buf []byte, to uint64) []byte {
	buf = append(buf, 0xff, 0x25, 0x00, 0x00, 0x00, 0x00)
	return binary.LittleEndian.AppendUint64(buf, to)
}

// coverLen decodes whole instructions at target until at least need bytes
// are covered; the patch must not split an instruction or a concurrently
// executing thread could resume mid-immediate.
func coverLen(code CodeView, target uint64, need int) (int, error) {
	probe, err := code.Slice(target, MaxPatch)
	if err != nil {
		return 0, fmt.Errorf("hook: read target %#x: %w", target, err)
	}

	covered := 0
	for covered < need {
		inst, err := x86asm.Decode(probe[covered:], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: undecodable instruction at %#x: %v", ErrPatchTooLarge, target+uint64(covered), err)
		}
		covered += inst.Len
		if covered > MaxPatch {
			return 0, fmt.Errorf("%w: %d bytes at %#x", ErrPatchTooLarge, covered, target)
		}
	}
	return covered, nil
}

// fitsAtomicWord reports whether [target, target+n) lies inside one aligned
// 8-byte word, the platform's guaranteed-atomic store width.
func fitsAtomicWord(target uint64, n int) bool {
	if n <= 0 || n > 8 {
		return false
	}
	return target&^7 == (target+uint64(n)-1)&^7
}

// storeAtomic merges patch with the surrounding original bytes of its
// aligned word and publishes the word with one atomic store.
func storeAtomic(code CodeView, target uint64, patch []byte) error {
	base := target &^ 7
	word, err := code.Slice(base, 8)
	if err != nil {
		return fmt.Errorf("hook: read word %#x: %w", base, err)
	}

	var merged [8]byte
	copy(merged[:], word)
	copy(merged[target-base:], patch)

	p := (*uint64)(unsafe.Pointer(unsafe.SliceData(word)))
	atomic.StoreUint64(p, binary.LittleEndian.Uint64(merged[:]))
	return nil
}

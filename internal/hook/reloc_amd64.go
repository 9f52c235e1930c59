//go:build amd64

package hook

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/arch/x86/x86asm"
)

const (
	opCallRel = 0xe8 // CALL rel32
	opLea     = 0x8d
	opMovRRm  = 0x8b // MOV r, r/m
)

// relocate copies the displaced prologue instructions from srcAddr so they
// execute correctly at destAddr: rel32 branches are retargeted and
// RIP-relative displacements are rebased. Instructions that reference the
// instruction pointer in a form not handled here fail the install rather
// than silently corrupting the trampoline.
func relocate(src []byte, srcAddr, destAddr uint64) ([]byte, error) {
	out := make([]byte, len(src))

	for i := 0; i < len(src); {
		inst, err := x86asm.Decode(src[i:], 64)
		if err != nil {
			return nil, fmt.Errorf("hook: decode at %#x: %w", srcAddr+uint64(i), err)
		}

		// Address of the next instruction in each placement; rel32 and
		// RIP displacements are relative to it.
		srcNext := int64(srcAddr) + int64(i) + int64(inst.Len)
		destNext := int64(destAddr) + int64(i) + int64(inst.Len)

		switch inst.Opcode >> 24 {
		case opCallRel, opJmpRel:
			rel, ok := inst.Args[0].(x86asm.Rel)
			if !ok {
				return nil, fmt.Errorf("hook: branch at %#x has no rel32 target", srcAddr+uint64(i))
			}
			absTarget := srcNext + int64(rel)
			newRel := absTarget - destNext
			if newRel < math.MinInt32 || newRel > math.MaxInt32 {
				return nil, fmt.Errorf("hook: branch at %#x unreachable from trampoline", srcAddr+uint64(i))
			}
			out[i] = src[i]
			binary.LittleEndian.PutUint32(out[i+1:], uint32(int32(newRel)))

		case opLea, opMovRRm:
			mem, isMem := inst.Args[1].(x86asm.Mem)
			if isMem && mem.Base == x86asm.RIP {
				// The 4-byte displacement is the tail of the instruction.
				copy(out[i:], src[i:i+inst.Len-4])
				newDisp := srcNext + mem.Disp - destNext
				if newDisp < math.MinInt32 || newDisp > math.MaxInt32 {
					return nil, fmt.Errorf("hook: RIP-relative operand at %#x unreachable from trampoline", srcAddr+uint64(i))
				}
				binary.LittleEndian.PutUint32(out[i+inst.Len-4:], uint32(int32(newDisp)))
			} else {
				copy(out[i:], src[i:i+inst.Len])
			}

		default:
			if usesRIP(&inst) {
				return nil, fmt.Errorf("hook: cannot relocate %s at %#x", inst.Op, srcAddr+uint64(i))
			}
			copy(out[i:], src[i:i+inst.Len])
		}

		i += inst.Len
	}
	return out, nil
}

func usesRIP(inst *x86asm.Inst) bool {
	for _, arg := range inst.Args {
		switch a := arg.(type) {
		case x86asm.Rel:
			return true
		case x86asm.Mem:
			if a.Base == x86asm.RIP {
				return true
			}
		}
	}
	return false
}

// Package callgraph recovers the native call graph between discovered host
// functions. Each function descriptor's code is decoded from the image with a
// linear sweep; CALL sites that resolve to another discovered function become
// graph edges.
package callgraph

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"
	"golang.org/x/arch/x86/x86asm"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/memview"
)

// Inst is one decoded instruction.
type Inst struct {
	Addr uint64
	Len  int
	Inst x86asm.Inst
}

// Text renders the instruction in Intel syntax.
func (i Inst) Text() string {
	return x86asm.IntelSyntax(i.Inst, i.Addr, nil)
}

// CallEdge records one call site inside a function body.
type CallEdge struct {
	FromPC     uint64
	TargetPC   uint64
	TargetName string // empty when the target is not a discovered function
}

// FuncInfo is one function's decoded body plus its resolved call sites.
type FuncInfo struct {
	Name      string
	Addr      uint64
	Insts     []Inst
	CallEdges []CallEdge
}

// DefaultMaxFuncBytes caps how far a single function sweep may run. Host
// functions with no discoverable end (tail dispatch, padding anomalies) stop
// here instead of bleeding into the next one.
const DefaultMaxFuncBytes = 16 * 1024

// Scan decodes the body of every function in the set. Functions are swept in
// address order; each sweep is clipped at the next function's entry, at the
// image end, and at maxBytes (0 = DefaultMaxFuncBytes). A function whose
// entry cannot be read is returned with an empty body rather than failing
// the scan: dumps are routinely partial.
func Scan(img memview.Image, set *descriptor.Set, maxBytes int) []FuncInfo {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFuncBytes
	}

	var funcs []FuncInfo
	for ci := range set.Classes {
		c := &set.Classes[ci]
		for fi := range c.Funcs {
			f := &c.Funcs[fi]
			funcs = append(funcs, FuncInfo{
				Name: fmt.Sprintf("%s.%s", c.Name, f.Name),
				Addr: f.Address,
			})
		}
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Addr < funcs[j].Addr })

	nameByAddr := make(map[uint64]string, len(funcs))
	for _, f := range funcs {
		nameByAddr[f.Addr] = f.Name
	}

	imgEnd := img.Base() + img.Size()
	for i := range funcs {
		f := &funcs[i]
		limit := f.Addr + uint64(maxBytes)
		if i+1 < len(funcs) && funcs[i+1].Addr > f.Addr && funcs[i+1].Addr < limit {
			limit = funcs[i+1].Addr
		}
		if limit > imgEnd {
			limit = imgEnd
		}
		if f.Addr < img.Base() || f.Addr >= imgEnd || limit <= f.Addr {
			continue
		}

		body := make([]byte, limit-f.Addr)
		if err := img.ReadAt(f.Addr, body); err != nil {
			continue
		}
		f.Insts, f.CallEdges = sweep(f.Addr, body, nameByAddr)
	}
	return funcs
}

// sweep decodes linearly from entry until the function plausibly ends: a
// terminator (RET, unconditional JMP, INT3, UD2) with no branch target known
// to lie beyond it, an undecodable byte, or the end of the window.
func sweep(entry uint64, body []byte, nameByAddr map[uint64]string) ([]Inst, []CallEdge) {
	var insts []Inst
	var edges []CallEdge

	// frontier is the highest in-window branch target seen so far; code up
	// to it is reachable even past a terminator.
	frontier := entry
	end := entry + uint64(len(body))

	for pc := entry; pc < end; {
		inst, err := x86asm.Decode(body[pc-entry:], 64)
		if err != nil {
			break
		}
		insts = append(insts, Inst{Addr: pc, Len: inst.Len, Inst: inst})
		next := pc + uint64(inst.Len)

		if bi := classify(inst, pc); bi != nil {
			if bi.isCall {
				edges = append(edges, CallEdge{
					FromPC:     pc,
					TargetPC:   bi.target,
					TargetName: nameByAddr[bi.target],
				})
			} else if bi.hasTarget && bi.target > frontier && bi.target < end {
				frontier = bi.target
			}
			if bi.terminates && next > frontier {
				break
			}
		}
		pc = next
	}
	return insts, edges
}

// branchInfo classifies one instruction's control-flow effect.
type branchInfo struct {
	isCall     bool
	cond       bool
	terminates bool // RET, unconditional JMP, INT3, UD2
	hasTarget  bool
	target     uint64
}

func classify(inst x86asm.Inst, pc uint64) *branchInfo {
	next := int64(pc) + int64(inst.Len)

	switch inst.Op {
	case x86asm.RET, x86asm.INT, x86asm.UD2:
		return &branchInfo{terminates: true}
	case x86asm.CALL, x86asm.LCALL:
		bi := &branchInfo{isCall: true}
		if rel, ok := inst.Args[0].(x86asm.Rel); ok {
			bi.hasTarget = true
			bi.target = uint64(next + int64(rel))
		}
		return bi
	case x86asm.JMP, x86asm.LJMP:
		bi := &branchInfo{terminates: true}
		if rel, ok := inst.Args[0].(x86asm.Rel); ok {
			bi.hasTarget = true
			bi.target = uint64(next + int64(rel))
		}
		return bi
	}

	// Remaining relative branches are conditional (Jcc, LOOP, JCXZ forms).
	if rel, ok := firstRel(inst); ok {
		return &branchInfo{
			cond:      true,
			hasTarget: true,
			target:    uint64(next + int64(rel)),
		}
	}
	return nil
}

func firstRel(inst x86asm.Inst) (x86asm.Rel, bool) {
	for _, arg := range inst.Args {
		if rel, ok := arg.(x86asm.Rel); ok {
			return rel, true
		}
	}
	return 0, false
}

// BuildCallGraph assembles the function-level graph: one node per discovered
// function, one edge per call site that resolved to a discovered function.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, e := range f.CallEdges {
			if e.TargetName == "" {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: e.TargetName,
			})
		}
	}
	g.Dedup()
	return g
}

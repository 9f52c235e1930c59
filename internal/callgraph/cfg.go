package callgraph

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"
)

// BuildCFG constructs a lattice.CFGGraph covering every scanned function
// with a non-empty body.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for i := range funcs {
		if len(funcs[i].Insts) == 0 {
			continue
		}
		lcfg, _ := BuildFuncCFG(&funcs[i])
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds one function's basic-block graph. The block count is
// returned alongside so callers can skip trivial single-block functions.
//
// The algorithm runs in three passes:
//  1. find block leaders: the entry, every branch target, and every
//     instruction following a branch or terminator;
//  2. partition the instruction stream at the leaders;
//  3. derive successor edges from each block's final instruction.
func BuildFuncCFG(f *FuncInfo) (*lattice.FuncCFG, int) {
	lcfg := &lattice.FuncCFG{Name: f.Name}
	if len(f.Insts) == 0 {
		return lcfg, 0
	}

	funcStart := f.Insts[0].Addr
	last := f.Insts[len(f.Insts)-1]
	funcEnd := last.Addr + uint64(last.Len)

	addrToIdx := make(map[uint64]int, len(f.Insts))
	for i, inst := range f.Insts {
		addrToIdx[inst.Addr] = i
	}

	leaders := map[int]bool{0: true}
	for i, inst := range f.Insts {
		bi := classify(inst.Inst, inst.Addr)
		if bi == nil || bi.isCall {
			continue
		}
		if i+1 < len(f.Insts) {
			leaders[i+1] = true
		}
		if bi.hasTarget && bi.target >= funcStart && bi.target < funcEnd {
			if idx, ok := addrToIdx[bi.target]; ok {
				leaders[idx] = true
			}
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(f.Insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		lcfg.Blocks = append(lcfg.Blocks, &lattice.BasicBlock{
			ID:    i,
			Start: start,
			End:   end,
		})
		leaderToBlock[start] = i
	}

	edgeByPC := make(map[uint64]CallEdge, len(f.CallEdges))
	for _, e := range f.CallEdges {
		edgeByPC[e.FromPC] = e
	}

	for _, blk := range lcfg.Blocks {
		if blk.End <= blk.Start {
			continue
		}

		// Call sites inside the block.
		for idx := blk.Start; idx < blk.End && idx < len(f.Insts); idx++ {
			if e, ok := edgeByPC[f.Insts[idx].Addr]; ok {
				callee := e.TargetName
				if callee == "" {
					callee = fmt.Sprintf("0x%x", e.TargetPC)
				}
				blk.Calls = append(blk.Calls, lattice.CallSite{
					Offset: idx,
					Callee: callee,
				})
			}
		}

		lastInst := f.Insts[blk.End-1]
		bi := classify(lastInst.Inst, lastInst.Addr)

		if bi == nil || bi.isCall {
			// Plain fallthrough.
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, lattice.Successor{BlockID: next})
			}
			continue
		}
		if bi.terminates && !bi.hasTarget {
			blk.Term = true
			continue
		}

		targetBlock := -1
		if bi.hasTarget && bi.target >= funcStart && bi.target < funcEnd {
			if idx, ok := addrToIdx[bi.target]; ok {
				if bid, ok := leaderToBlock[idx]; ok {
					targetBlock = bid
				}
			}
		}

		if bi.cond {
			if targetBlock >= 0 {
				blk.Succs = append(blk.Succs, lattice.Successor{BlockID: targetBlock, Cond: "T"})
			}
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, lattice.Successor{BlockID: next, Cond: "F"})
			}
		} else if targetBlock >= 0 {
			blk.Succs = append(blk.Succs, lattice.Successor{BlockID: targetBlock})
		} else {
			// Unconditional jump out of the function: tail call, terminal.
			blk.Term = true
		}
	}

	return lcfg, len(lcfg.Blocks)
}

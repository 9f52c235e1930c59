// Package classgraph projects a descriptor set onto its inheritance graph:
// one node per class, one edge from child to parent.
package classgraph

import (
	"github.com/zboralski/lattice"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
)

// Build constructs a lattice.Graph from a descriptor set. Every class is a
// node; every class with a parent contributes one child→parent edge. Root
// classes contribute no edges.
func Build(set *descriptor.Set) *lattice.Graph {
	g := &lattice.Graph{}
	for i := range set.Classes {
		c := &set.Classes[i]
		g.Nodes = append(g.Nodes, c.Name)
		if c.Parent < 0 || c.Parent >= len(set.Classes) {
			continue
		}
		g.Edges = append(g.Edges, lattice.Edge{
			Caller: c.Name,
			Callee: set.Classes[c.Parent].Name,
		})
	}
	g.Dedup()
	return g
}

// Roots returns the names of classes with no parent, sorted by first
// appearance in the set.
func Roots(set *descriptor.Set) []string {
	var roots []string
	for i := range set.Classes {
		if set.Classes[i].Parent < 0 {
			roots = append(roots, set.Classes[i].Name)
		}
	}
	return roots
}

// Depth returns the inheritance depth of the class at index i, 0 for roots.
// Canonical ordering can point parent indices forward, so the chain is
// followed in either direction, bounded by the class count.
func Depth(set *descriptor.Set, i int) int {
	depth := 0
	for set.Classes[i].Parent >= 0 && set.Classes[i].Parent < len(set.Classes) && set.Classes[i].Parent != i {
		if depth >= len(set.Classes) {
			break
		}
		i = set.Classes[i].Parent
		depth++
	}
	return depth
}

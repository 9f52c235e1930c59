package classgraph

import (
	"fmt"
	"strings"

	"github.com/zboralski/lattice"
)

// DOT renders the inheritance graph as Graphviz DOT. Edges point child to
// parent, so a top-down render puts base classes at the bottom.
func DOT(g *lattice.Graph, title string) string {
	var b strings.Builder
	b.WriteString("digraph inheritance {\n")
	b.WriteString("  rankdir=BT;\n")
	b.WriteString("  node [shape=rect, style=\"filled,rounded\", fillcolor=\"#e8eef7\", fontname=\"Helvetica\", fontsize=10];\n")
	b.WriteString("  edge [arrowsize=0.6];\n")
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  label=%q;\n", title)
	}
	b.WriteByte('\n')

	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "  %s [label=%q];\n", dotID(n), n)
	}
	b.WriteByte('\n')
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %s -> %s;\n", dotID(e.Caller), dotID(e.Callee))
	}

	b.WriteString("}\n")
	return b.String()
}

// dotID creates a safe DOT identifier from a class name.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

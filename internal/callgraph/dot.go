package callgraph

import (
	"fmt"
	"strings"

	"github.com/zboralski/lattice"
)

// DOT renders the function call graph as Graphviz DOT.
func DOT(g *lattice.Graph, title string) string {
	var b strings.Builder
	b.WriteString("digraph calls {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=rect, style=filled, fillcolor=\"#f2e8d8\", fontname=\"Helvetica\", fontsize=10];\n")
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

// maxBlockLines keeps giant straight-line blocks readable: long listings are
// elided in the middle.
const maxBlockLines = 12

// CFGDOT renders one function's basic-block graph as DOT. Conditional edges
// are labelled T (taken) and F (fallthrough); terminal blocks are shaded.
func CFGDOT(f *FuncInfo, cfg *lattice.FuncCFG) string {
	if len(cfg.Blocks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n  ranksep=0.4;\n")
	b.WriteString("  node [shape=rect, style=filled, fillcolor=\"#eef2f7\", fontname=\"Courier,monospace\", fontsize=8];\n")
	b.WriteString("  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n  label=%q;\n\n", cfg.Name)

	for _, blk := range cfg.Blocks {
		var lines []string
		end := blk.End
		if end > len(f.Insts) {
			end = len(f.Insts)
		}
		for i := blk.Start; i < end; i++ {
			inst := f.Insts[i]
			lines = append(lines, dotEscape(fmt.Sprintf("0x%x: %s", inst.Addr, inst.Text())))
		}
		if len(lines) > maxBlockLines {
			kept := append(lines[:5], fmt.Sprintf("... (%d more)", len(lines)-10))
			lines = append(kept, lines[len(lines)-5:]...)
		}
		label := strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>"

		attrs := ""
		if blk.Start == 0 {
			attrs = ", penwidth=1.5"
		}
		if blk.Term {
			attrs += ", fillcolor=\"#e7dede\""
		}
		fmt.Fprintf(&b, "  bb%d [label=<%s>%s];\n", blk.ID, label, attrs)
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		for _, s := range blk.Succs {
			switch s.Cond {
			case "T":
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=\"#2e7d32\", label=\"T\", fontsize=7];\n", blk.ID, s.BlockID)
			case "F":
				fmt.Fprintf(&b, "  bb%d -> bb%d [color=\"#c62828\", label=\"F\", fontsize=7];\n", blk.ID, s.BlockID)
			default:
				fmt.Fprintf(&b, "  bb%d -> bb%d;\n", blk.ID, s.BlockID)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// dotID creates a safe DOT identifier from a function name.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("f_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// dotEscape escapes text for use inside an HTML-like DOT label.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

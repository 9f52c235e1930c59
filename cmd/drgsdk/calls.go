package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Henri-J-Norden/drg-dll/internal/callgraph"
	"github.com/Henri-J-Norden/drg-dll/internal/memview"
	"github.com/Henri-J-Norden/drg-dll/internal/sdkgen"
)

// cmdCalls recovers the native call graph between discovered functions from
// a memory dump, and optionally a per-function control-flow graph.
func cmdCalls(args []string) error {
	fs := flag.NewFlagSet("calls", flag.ExitOnError)
	dump := fs.String("dump", "", "raw memory dump of the host module")
	base := fs.String("base", "", "address the dump was captured at")
	artifact := fs.String("artifact", "", "path to descriptors.json")
	out := fs.String("out", "", "output file (default stdout)")
	fn := fs.String("func", "", "render this function's CFG instead of the call graph (Class.Name)")
	maxBytes := fs.Int("max-bytes", 0, "per-function sweep cap in bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dump == "" || *base == "" || *artifact == "" {
		return fmt.Errorf("--dump, --base and --artifact are required")
	}

	baseAddr, err := parseAddr(*base)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*dump)
	if err != nil {
		return fmt.Errorf("read dump: %w", err)
	}
	art, err := sdkgen.LoadArtifact(*artifact)
	if err != nil {
		return err
	}

	img := memview.NewByteImage(baseAddr, data)
	funcs := callgraph.Scan(img, art.Set, *maxBytes)

	var dot string
	if *fn != "" {
		var target *callgraph.FuncInfo
		for i := range funcs {
			if funcs[i].Name == *fn {
				target = &funcs[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("function %q not in artifact", *fn)
		}
		cfg, blocks := callgraph.BuildFuncCFG(target)
		fmt.Fprintf(os.Stderr, "%s: %d instructions, %d blocks\n", target.Name, len(target.Insts), blocks)
		dot = callgraph.CFGDOT(target, cfg)
	} else {
		g := callgraph.BuildCallGraph(funcs)
		fmt.Fprintf(os.Stderr, "%d functions, %d call edges\n", len(g.Nodes), len(g.Edges))
		dot = callgraph.DOT(g, strings.TrimSuffix(filepath.Base(*dump), filepath.Ext(*dump)))
	}

	if *out == "" {
		fmt.Print(dot)
		return nil
	}
	if err := os.WriteFile(*out, []byte(dot), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	return nil
}

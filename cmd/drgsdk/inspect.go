package main

import (
	"flag"
	"fmt"
	"sort"

	"github.com/Henri-J-Norden/drg-dll/internal/classgraph"
	"github.com/Henri-J-Norden/drg-dll/internal/sdkgen"
)

// cmdInspect prints an artifact summary: version, counts, diagnostics, and
// optionally the full class table.
func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	artifact := fs.String("artifact", "", "path to descriptors.json")
	classes := fs.Bool("classes", false, "list every class with size and inheritance depth")
	diags := fs.Bool("diags", false, "list recorded diagnostics")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *artifact == "" {
		return fmt.Errorf("--artifact is required")
	}

	art, err := sdkgen.LoadArtifact(*artifact)
	if err != nil {
		return err
	}
	set := art.Set

	var props, funcs int
	for i := range set.Classes {
		props += len(set.Classes[i].Props)
		funcs += len(set.Classes[i].Funcs)
	}

	fmt.Printf("host version: %s\n", art.HostVersion)
	fmt.Printf("profile:      %s\n", art.ProfileID)
	fmt.Printf("classes:      %d (%d properties, %d functions)\n", len(set.Classes), props, funcs)
	fmt.Printf("enums:        %d\n", len(set.Enums))
	fmt.Printf("roots:        %d\n", len(classgraph.Roots(set)))
	fmt.Printf("diagnostics:  %d\n", len(art.Diags))

	if *classes {
		idx := make([]int, len(set.Classes))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool {
			return set.Classes[idx[a]].Name < set.Classes[idx[b]].Name
		})
		fmt.Println()
		for _, i := range idx {
			c := &set.Classes[i]
			fmt.Printf("%6d  depth %-2d  %s\n", c.Size, classgraph.Depth(set, i), c.Name)
		}
	}

	if *diags {
		fmt.Println()
		for _, d := range art.Diags {
			fmt.Println(d.String())
		}
	}
	return nil
}

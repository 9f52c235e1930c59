package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Henri-J-Norden/drg-dll/internal/classgraph"
	"github.com/Henri-J-Norden/drg-dll/internal/sdkgen"
)

// cmdGraph renders the class inheritance graph from an artifact as DOT.
func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	artifact := fs.String("artifact", "", "path to descriptors.json")
	out := fs.String("out", "", "output file (default stdout)")
	title := fs.String("title", "", "graph title (default host version)")

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

	t := *title
	if t == "" {
		t = art.HostVersion
	}
	dot := classgraph.DOT(classgraph.Build(art.Set), t)

	if *out == "" {
		fmt.Print(dot)
		return nil
	}
	if err := os.WriteFile(*out, []byte(dot), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote graph for %d classes to %s\n", len(art.Set.Classes), *out)
	return nil
}

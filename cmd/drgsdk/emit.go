package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Henri-J-Norden/drg-dll/internal/fixedbuf"
	"github.com/Henri-J-Norden/drg-dll/internal/inject"
	"github.com/Henri-J-Norden/drg-dll/internal/sdkgen"
)

// cmdEmit regenerates SDK source from a stored artifact, optionally checking
// it against a host version first.
func cmdEmit(args []string) error {
	fs := flag.NewFlagSet("emit", flag.ExitOnError)
	artifact := fs.String("artifact", "", "path to descriptors.json")
	out := fs.String("out", "sdk.go", "output source file")
	pkg := fs.String("pkg", "sdk", "generated package name")
	hostVersion := fs.String("host-version", "", "verify the artifact matches this host version")
	maxBytes := fs.Int("max-bytes", 0, "generated source size cap")

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
	if *hostVersion != "" {
		if err := art.CheckCompat(*hostVersion); err != nil {
			return err
		}
	}

	sizeCap := *maxBytes
	if sizeCap <= 0 {
		sizeCap = inject.DefaultSourceCap
	}
	buf := fixedbuf.NewBuffer(sizeCap)
	if err := sdkgen.Emit(art.Set, buf, sdkgen.Options{PackageName: *pkg}); err != nil {
		return err
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}

	fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s\n", buf.Len(), *out)
	return nil
}

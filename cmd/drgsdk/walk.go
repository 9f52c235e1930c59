package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/inject"
	"github.com/Henri-J-Norden/drg-dll/internal/memview"
)

// cmdWalk runs the whole pipeline against a captured memory dump: load the
// dump at its original base, walk the metadata, and write the artifact
// directory exactly as the injected module would.
func cmdWalk(args []string) error {
	fs := flag.NewFlagSet("walk", flag.ExitOnError)
	dump := fs.String("dump", "", "raw memory dump of the host module")
	base := fs.String("base", "", "address the dump was captured at")
	root := fs.String("root", "", "address of the metadata root record")
	execStart := fs.String("exec-start", "", "executable range start (default: whole dump)")
	execEnd := fs.String("exec-end", "", "executable range end")
	outDir := fs.String("out", "drgsdk-out", "output directory")
	profile := fs.String("profile", "u4.27", "metadata layout profile")
	hostVersion := fs.String("host-version", "", "host version recorded in the artifact")
	pkg := fs.String("pkg", "sdk", "generated package name")
	bestEffort := fs.Bool("best-effort", false, "record recoverable oddities instead of failing")
	maxSteps := fs.Int("max-steps", 0, "walk step budget")
	maxClasses := fs.Int("max-classes", 0, "visited-set capacity")
	maxBytes := fs.Int("max-bytes", 0, "generated source size cap")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dump == "" {
		return fmt.Errorf("--dump is required")
	}
	if *base == "" || *root == "" {
		return fmt.Errorf("--base and --root are required")
	}

	baseAddr, err := parseAddr(*base)
	if err != nil {
		return err
	}
	rootAddr, err := parseAddr(*root)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*dump)
	if err != nil {
		return fmt.Errorf("read dump: %w", err)
	}
	img := memview.NewByteImage(baseAddr, data)

	exec := descriptor.ExecRange{Start: baseAddr, End: baseAddr + uint64(len(data))}
	if *execStart != "" || *execEnd != "" {
		if exec.Start, err = parseAddr(*execStart); err != nil {
			return err
		}
		if exec.End, err = parseAddr(*execEnd); err != nil {
			return err
		}
	}

	cfg := inject.Config{
		RootAddr:    inject.Address(rootAddr),
		Profile:     *profile,
		HostVersion: *hostVersion,
		OutDir:      *outDir,
		PackageName: *pkg,
		BestEffort:  *bestEffort,
		MaxSteps:    *maxSteps,
		MaxClasses:  *maxClasses,
		SourceCap:   *maxBytes,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return inject.RunOn(img, exec, cfg)
}

// Package inject orchestrates the injected module's one-shot pipeline:
// resolve the host module, walk its metadata, validate and canonicalize the
// descriptors, and emit the SDK artifact. Run executes once on the injector's
// entry thread and returns; it never spawns background work inside the host.
package inject

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/text"

	"github.com/Henri-J-Norden/drg-dll/internal/classgraph"
	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/diag"
	"github.com/Henri-J-Norden/drg-dll/internal/fixedbuf"
	"github.com/Henri-J-Norden/drg-dll/internal/hostmod"
	"github.com/Henri-J-Norden/drg-dll/internal/memview"
	"github.com/Henri-J-Norden/drg-dll/internal/sdkgen"
	"github.com/Henri-J-Norden/drg-dll/internal/uemeta"
)

// Attach is the full behavior behind the injected module's exported entry:
// assemble configuration, run the pipeline, swallow nothing silently. It
// never unwinds into the host; every failure ends in a log line (when a log
// path is configured) and a plain return.
func Attach() {
	cfg, err := FromEnv()
	if err != nil {
		// Configuration failed before the log path was known; try the raw
		// variable so the operator still gets a reason.
		if closeLog, lerr := initLog(os.Getenv(envPrefix + "LOG")); lerr == nil {
			log.WithError(err).Error("configuration rejected")
			closeLog()
		}
		return
	}
	// Run logs its own failures.
	_ = Run(cfg)
}

// Run resolves the live host module and generates the SDK from its metadata.
// It is synchronous and all-or-nothing: on any error the output directory is
// left exactly as it was.
func Run(cfg Config) error {
	closeLog, err := initLog(cfg.LogPath)
	if err != nil {
		return err
	}
	defer closeLog()

	mod, err := hostmod.Current(cfg.Module)
	if err != nil {
		log.WithError(err).Error("module resolution failed")
		return err
	}
	log.WithFields(log.Fields{
		"module": mod.Name,
		"base":   fmt.Sprintf("0x%x", mod.Base),
		"size":   fmt.Sprintf("0x%x", mod.Size),
	}).Info("host module resolved")

	return RunOn(mod.Image(), mod.Exec(), cfg)
}

// RunOn executes the pipeline against an explicit image and executable
// range. The live entry point and the offline CLI both funnel through here;
// tests feed it synthetic images.
func RunOn(img memview.Image, exec descriptor.ExecRange, cfg Config) error {
	prof, err := uemeta.ProfileByID(cfg.Profile)
	if err != nil {
		return err
	}
	hostVersion := cfg.HostVersion
	if hostVersion == "" {
		hostVersion = prof.HostVersion
	}

	opts := diag.Options{
		MaxSteps:   cfg.MaxSteps,
		MaxClasses: cfg.MaxClasses,
	}
	if cfg.BestEffort {
		opts.Mode = diag.ModeBestEffort
	}

	res, err := uemeta.Walk(img, prof, uemeta.Params{
		Root:        uint64(cfg.RootAddr),
		Exec:        exec,
		HostVersion: hostVersion,
	}, opts)
	if err != nil {
		log.WithError(err).Error("metadata walk failed")
		return err
	}
	for _, d := range res.Diags {
		log.WithFields(log.Fields{
			"addr": fmt.Sprintf("0x%x", d.Addr),
			"kind": string(d.Kind),
		}).Warn(d.Msg)
	}

	set := res.Set.Canonicalize()
	if err := set.Validate(exec); err != nil {
		log.WithError(err).Error("descriptor validation failed")
		return err
	}
	log.WithFields(log.Fields{
		"classes": len(set.Classes),
		"enums":   len(set.Enums),
		"steps":   res.Steps,
	}).Info("walk complete")

	src := fixedbuf.NewBuffer(cfg.EffectiveSourceCap())
	if err := sdkgen.Emit(set, src, sdkgen.Options{PackageName: cfg.PackageName}); err != nil {
		log.WithError(err).Error("source emission failed")
		return err
	}

	art := sdkgen.NewArtifact(set, res.Diags)
	dot := classgraph.DOT(classgraph.Build(set), set.HostVersion)
	if err := writeOutputs(cfg.OutDir, art, src.Bytes(), dot); err != nil {
		log.WithError(err).Error("artifact write failed")
		return err
	}

	log.WithField("dir", cfg.OutDir).Info("SDK written")
	return nil
}

// writeOutputs stages every file in a sibling temp directory and swaps it
// into place with one rename, so a failed run never leaves a partial or
// mixed-generation output directory behind.
func writeOutputs(dir string, art *sdkgen.Artifact, src []byte, dot string) error {
	stage := dir + ".tmp"
	if err := os.RemoveAll(stage); err != nil {
		return fmt.Errorf("inject: clear stage: %w", err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return fmt.Errorf("inject: create stage: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			os.RemoveAll(stage)
		}
	}()

	if err := sdkgen.WriteArtifact(stage, art); err != nil {
		return err
	}
	if err := sdkgen.WriteSDK(stage, src); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(stage, "graph.dot"), []byte(dot), 0o644); err != nil {
		return fmt.Errorf("inject: write graph: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("inject: clear output dir: %w", err)
	}
	if err := os.Rename(stage, dir); err != nil {
		return fmt.Errorf("inject: publish output dir: %w", err)
	}
	ok = true
	return nil
}

// initLog routes logs to the configured file. The host owns the console, so
// without a path everything is discarded.
func initLog(path string) (func(), error) {
	if path == "" {
		log.SetHandler(discard.New())
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("inject: open log file: %w", err)
	}
	log.SetHandler(text.New(f))
	return func() { f.Close() }, nil
}

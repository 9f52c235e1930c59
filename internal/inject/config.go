package inject

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v8"
)

// Address is a memory address accepted in Go literal form ("0x1459e8c20",
// decimal, or octal) from either the environment or the JSON side-file.
type Address uint64

func (a *Address) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 0, 64)
	if err != nil {
		return fmt.Errorf("inject: bad address %q: %w", text, err)
	}
	*a = Address(v)
	return nil
}

func (a Address) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// Config is the injected module's entire input surface. The root metadata
// address is a resolved value handed in by the operator; nothing in this
// module scans for it. Every field reads from a DRGSDK_-prefixed environment
// variable, with an optional JSON side-file (DRGSDK_CONFIG) supplying
// defaults underneath.
type Config struct {
	// RootAddr is the address of the host's metadata root record.
	RootAddr Address `env:"ROOT_ADDR" json:"root_addr"`

	// Module names the host module to resolve; empty means the main module.
	Module string `env:"MODULE" json:"module"`

	// Profile selects the metadata layout profile.
	Profile string `env:"PROFILE" json:"profile"`

	// HostVersion overrides the profile's version string in the artifact.
	HostVersion string `env:"HOST_VERSION" json:"host_version"`

	// OutDir receives descriptors.json, sdk.go and graph.dot. The directory
	// appears only after the whole pipeline has succeeded.
	OutDir string `env:"OUT_DIR" json:"out_dir"`

	// PackageName of the generated source file.
	PackageName string `env:"PACKAGE" json:"package"`

	// LogPath appends structured logs to a file. The host process owns
	// stdout, so an empty path means no logging at all.
	LogPath string `env:"LOG" json:"log"`

	// BestEffort keeps walking past recoverable metadata oddities,
	// recording them as diagnostics instead of failing.
	BestEffort bool `env:"BEST_EFFORT" json:"best_effort"`

	MaxSteps   int `env:"MAX_STEPS" json:"max_steps"`
	MaxClasses int `env:"MAX_CLASSES" json:"max_classes"`

	// SourceCap bounds the generated source buffer in bytes.
	SourceCap int `env:"SOURCE_CAP" json:"source_cap"`
}

// DefaultSourceCap holds every SDK observed so far with ample headroom.
const DefaultSourceCap = 16 << 20

// envPrefix namespaces all environment variables read by FromEnv.
const envPrefix = "DRGSDK_"

// configPathVar names the JSON side-file, read before the environment so
// individual variables can still override it.
const configPathVar = envPrefix + "CONFIG"

// FromEnv assembles the configuration: JSON side-file first (when
// DRGSDK_CONFIG is set), then DRGSDK_-prefixed environment variables on top.
func FromEnv() (Config, error) {
	var cfg Config
	if path := os.Getenv(configPathVar); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("inject: read config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("inject: parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("inject: parse environment: %w", err)
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// applyDefaults fills blanks the side-file and environment both left unset.
// Defaults live here rather than in envDefault tags so a side-file value is
// never clobbered by an absent environment variable.
func (c *Config) applyDefaults() {
	if c.Profile == "" {
		c.Profile = "u4.27"
	}
	if c.OutDir == "" {
		c.OutDir = "drgsdk-out"
	}
	if c.PackageName == "" {
		c.PackageName = "sdk"
	}
}

// Validate rejects configurations the pipeline cannot act on.
func (c *Config) Validate() error {
	if c.RootAddr == 0 {
		return errors.New("inject: root metadata address not set")
	}
	if c.MaxSteps < 0 || c.MaxClasses < 0 || c.SourceCap < 0 {
		return errors.New("inject: limits must not be negative")
	}
	return nil
}

// EffectiveSourceCap returns the configured cap or the default.
func (c *Config) EffectiveSourceCap() int {
	if c.SourceCap > 0 {
		return c.SourceCap
	}
	return DefaultSourceCap
}

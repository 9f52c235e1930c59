package inject

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddressUnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    Address
		wantErr bool
	}{
		{"0x1459e8c20", 0x1459e8c20, false},
		{"4096", 4096, false},
		{"0o777", 0o777, false},
		{"", 0, true},
		{"bogus", 0, true},
		{"0x", 0, true},
	}
	for _, tt := range tests {
		var a Address
		err := a.UnmarshalText([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("UnmarshalText(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && a != tt.want {
			t.Errorf("UnmarshalText(%q) = %#x, want %#x", tt.in, uint64(a), uint64(tt.want))
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DRGSDK_ROOT_ADDR", "0x140001000")
	t.Setenv("DRGSDK_MODULE", "FSD-Win64-Shipping.exe")
	t.Setenv("DRGSDK_BEST_EFFORT", "true")
	t.Setenv("DRGSDK_MAX_STEPS", "1000")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if got := uint64(cfg.RootAddr); got != 0x140001000 {
		t.Errorf("RootAddr = %#x, want 0x140001000", got)
	}
	if cfg.Module != "FSD-Win64-Shipping.exe" {
		t.Errorf("Module = %q", cfg.Module)
	}
	if !cfg.BestEffort {
		t.Error("BestEffort not set")
	}
	if cfg.MaxSteps != 1000 {
		t.Errorf("MaxSteps = %d, want 1000", cfg.MaxSteps)
	}

	// Unset values fall back to defaults.
	if cfg.Profile != "u4.27" {
		t.Errorf("Profile = %q, want u4.27", cfg.Profile)
	}
	if cfg.OutDir != "drgsdk-out" {
		t.Errorf("OutDir = %q, want drgsdk-out", cfg.OutDir)
	}
	if cfg.PackageName != "sdk" {
		t.Errorf("PackageName = %q, want sdk", cfg.PackageName)
	}
}

func TestFromEnvSideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drgsdk.json")
	side := `{
		"root_addr": "0x140002000",
		"profile": "u4.27",
		"out_dir": "from-file",
		"max_classes": 128
	}`
	if err := os.WriteFile(path, []byte(side), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DRGSDK_CONFIG", path)
	// Environment overrides the side-file.
	t.Setenv("DRGSDK_OUT_DIR", "from-env")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if got := uint64(cfg.RootAddr); got != 0x140002000 {
		t.Errorf("RootAddr = %#x, want 0x140002000", got)
	}
	if cfg.OutDir != "from-env" {
		t.Errorf("OutDir = %q, want from-env (env must override file)", cfg.OutDir)
	}
	if cfg.MaxClasses != 128 {
		t.Errorf("MaxClasses = %d, want 128", cfg.MaxClasses)
	}
}

func TestFromEnvRejectsMissingRoot(t *testing.T) {
	// No DRGSDK_ROOT_ADDR in the test environment.
	if _, err := FromEnv(); err == nil {
		t.Fatal("FromEnv accepted a configuration without a root address")
	}
}

func TestFromEnvRejectsBadSideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drgsdk.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DRGSDK_CONFIG", path)
	t.Setenv("DRGSDK_ROOT_ADDR", "0x1000")

	if _, err := FromEnv(); err == nil {
		t.Fatal("FromEnv accepted a malformed side-file")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{RootAddr: 0x1000}, false},
		{"zero root", Config{}, true},
		{"negative steps", Config{RootAddr: 0x1000, MaxSteps: -1}, true},
		{"negative cap", Config{RootAddr: 0x1000, SourceCap: -1}, true},
	}
	for _, tt := range tests {
		err := tt.cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestEffectiveSourceCap(t *testing.T) {
	c := Config{}
	if got := c.EffectiveSourceCap(); got != DefaultSourceCap {
		t.Errorf("default cap = %d, want %d", got, DefaultSourceCap)
	}
	c.SourceCap = 4096
	if got := c.EffectiveSourceCap(); got != 4096 {
		t.Errorf("cap = %d, want 4096", got)
	}
}

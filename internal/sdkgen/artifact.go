package sdkgen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	version "github.com/hashicorp/go-version"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/diag"
)

// SchemaVersion is bumped when the artifact JSON shape changes.
const SchemaVersion = 1

// Artifact is the on-disk form of one walk: the full descriptor set plus the
// host build it was taken from. Descriptors are per-host-version; consumers
// must refuse an artifact stamped with a different build.
type Artifact struct {
	Schema      int             `json:"schema"`
	HostVersion string          `json:"host_version"`
	ProfileID   string          `json:"profile_id"`
	Set         *descriptor.Set `json:"set"`
	Diags       []diag.Diag     `json:"diags,omitempty"`
}

// NewArtifact stamps a descriptor set for persistence.
func NewArtifact(set *descriptor.Set, diags []diag.Diag) *Artifact {
	return &Artifact{
		Schema:      SchemaVersion,
		HostVersion: set.HostVersion,
		ProfileID:   set.ProfileID,
		Set:         set,
		Diags:       diags,
	}
}

// WriteArtifact writes the artifact to descriptors.json in dir.
func WriteArtifact(dir string, a *Artifact) error {
	return writeJSON(filepath.Join(dir, "descriptors.json"), a)
}

// WriteSDK writes the rendered Go source to sdk.go in dir.
func WriteSDK(dir string, src []byte) error {
	path := filepath.Join(dir, "sdk.go")
	if err := os.WriteFile(path, src, 0644); err != nil {
		return fmt.Errorf("sdkgen: write %s: %w", path, err)
	}
	return nil
}

// LoadArtifact reads an artifact back from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sdkgen: read %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("sdkgen: decode %s: %w", path, err)
	}
	if a.Schema != SchemaVersion {
		return nil, fmt.Errorf("sdkgen: %s: schema %d, want %d", path, a.Schema, SchemaVersion)
	}
	return &a, nil
}

// CheckCompat requires the artifact's host version to exactly match the
// running host's. Function addresses and field offsets do not survive build
// changes, so anything short of an exact match is a refusal.
func (a *Artifact) CheckCompat(hostVersion string) error {
	want, err := version.NewVersion(a.HostVersion)
	if err != nil {
		return fmt.Errorf("sdkgen: artifact host version %q: %w", a.HostVersion, err)
	}
	got, err := version.NewVersion(hostVersion)
	if err != nil {
		return fmt.Errorf("sdkgen: host version %q: %w", hostVersion, err)
	}
	if !want.Equal(got) {
		return fmt.Errorf("sdkgen: artifact is for host %s, running host is %s", want, got)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sdkgen: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("sdkgen: encode %s: %w", path, err)
	}
	return nil
}

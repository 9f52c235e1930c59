package inject

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/memview"
	"github.com/Henri-J-Norden/drg-dll/internal/sdkgen"
)

func TestMain(m *testing.M) {
	log.SetHandler(discard.New())
	os.Exit(m.Run())
}

const metaBase = uint64(0x140000000)

// buildMetaImage lays out a minimal metadata graph at metaBase: one class
// with two properties and one native function, and one two-variant enum.
func buildMetaImage() (*memview.ByteImage, descriptor.ExecRange) {
	buf := make([]byte, 0x1000)
	p64 := func(off uint64, v uint64) { binary.LittleEndian.PutUint64(buf[off:], v) }
	p32 := func(off uint64, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
	str := func(off uint64, s string) uint64 {
		copy(buf[off:], s)
		return metaBase + off
	}

	nameActor := str(0x300, "Actor")
	nameHealth := str(0x310, "Health")
	nameArmor := str(0x318, "Armor")
	nameFn := str(0x320, "TakeDamage")
	nameEnum := str(0x330, "EState")
	nameIdle := str(0x340, "Idle")
	nameBusy := str(0x348, "Busy")

	// Property node: name +0x00, next +0x08, offset +0x18, elem size +0x1c,
	// array dim +0x20, kind +0x24.
	prop := func(node, name uint64, fieldOff, size uint32, kind byte) {
		p64(node+0x00, name)
		p32(node+0x18, fieldOff)
		p32(node+0x1c, size)
		p32(node+0x20, 1)
		buf[node+0x24] = kind
	}

	// Root record: class list head, enum list head.
	p64(0x00, metaBase+0x100)
	p64(0x08, metaBase+0x200)

	// Class "Actor": size 8, align 4, two properties, one function.
	p64(0x100, nameActor)      // name
	p64(0x118, metaBase+0x140) // props head
	p64(0x120, metaBase+0x1a0) // funcs head
	p32(0x128, 8)              // size
	p32(0x12c, 4)              // align

	prop(0x140, nameHealth, 0, 4, 0x01) // int32 at offset 0
	prop(0x170, nameArmor, 4, 4, 0x03)  // float32 at offset 4
	p64(0x148, metaBase+0x170)          // Health.next -> Armor

	// Function "TakeDamage" at an executable address, no params.
	p64(0x1a0+0x00, nameFn)
	p64(0x1a0+0x18, metaBase+0x800)

	// Enum "EState" with variants Idle=0, Busy=1.
	p64(0x200, nameEnum)
	p64(0x210, metaBase+0x240)
	p32(0x218, 2)
	p64(0x240, nameIdle)
	p64(0x248, 0)
	p64(0x250, nameBusy)
	p64(0x258, 1)

	img := memview.NewByteImage(metaBase, buf)
	exec := descriptor.ExecRange{Start: metaBase, End: metaBase + uint64(len(buf))}
	return img, exec
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		RootAddr:    Address(metaBase),
		Profile:     "u4.27",
		OutDir:      filepath.Join(t.TempDir(), "out"),
		PackageName: "sdk",
	}
}

func TestRunOnWritesOutputs(t *testing.T) {
	img, exec := buildMetaImage()
	cfg := testConfig(t)

	if err := RunOn(img, exec, cfg); err != nil {
		t.Fatalf("RunOn: %v", err)
	}

	art, err := sdkgen.LoadArtifact(filepath.Join(cfg.OutDir, "descriptors.json"))
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if len(art.Set.Classes) != 1 || art.Set.Classes[0].Name != "Actor" {
		t.Fatalf("classes = %+v, want one class Actor", art.Set.Classes)
	}
	if len(art.Set.Enums) != 1 || art.Set.Enums[0].Name != "EState" {
		t.Fatalf("enums = %+v, want one enum EState", art.Set.Enums)
	}
	if art.HostVersion != "4.27" {
		t.Errorf("HostVersion = %q, want profile default 4.27", art.HostVersion)
	}

	src, err := os.ReadFile(filepath.Join(cfg.OutDir, "sdk.go"))
	if err != nil {
		t.Fatalf("read sdk.go: %v", err)
	}
	for _, want := range []string{
		"package sdk",
		"type Actor struct {",
		"Health int32",
		"Armor float32",
		"Actor_TakeDamage_Addr",
		"type EState uint8",
	} {
		if !strings.Contains(string(src), want) {
			t.Errorf("sdk.go missing %q", want)
		}
	}

	dot, err := os.ReadFile(filepath.Join(cfg.OutDir, "graph.dot"))
	if err != nil {
		t.Fatalf("read graph.dot: %v", err)
	}
	if !strings.Contains(string(dot), "Actor") {
		t.Error("graph.dot does not mention Actor")
	}

	if _, err := os.Stat(cfg.OutDir + ".tmp"); !os.IsNotExist(err) {
		t.Error("stage directory left behind after success")
	}
}

func TestRunOnChildSortsBeforeParent(t *testing.T) {
	// "Apple" inherits "Zebra", so canonical name order puts the child
	// first and its parent index points forward.
	buf := make([]byte, 0x1000)
	p64 := func(off uint64, v uint64) { binary.LittleEndian.PutUint64(buf[off:], v) }
	p32 := func(off uint64, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
	str := func(off uint64, s string) uint64 {
		copy(buf[off:], s)
		return metaBase + off
	}
	nameApple := str(0x300, "Apple")
	nameZebra := str(0x310, "Zebra")

	p64(0x00, metaBase+0x100) // class list head -> Apple

	p64(0x100, nameApple)
	p64(0x110, metaBase+0x140) // parent -> Zebra
	p32(0x128, 24)
	p32(0x12c, 8)

	p64(0x140, nameZebra)
	p32(0x168, 16)
	p32(0x16c, 8)

	img := memview.NewByteImage(metaBase, buf)
	exec := descriptor.ExecRange{Start: metaBase, End: metaBase + uint64(len(buf))}
	cfg := testConfig(t)

	if err := RunOn(img, exec, cfg); err != nil {
		t.Fatalf("RunOn: %v", err)
	}
	art, err := sdkgen.LoadArtifact(filepath.Join(cfg.OutDir, "descriptors.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(art.Set.Classes) != 2 {
		t.Fatalf("classes = %d, want 2", len(art.Set.Classes))
	}
	if art.Set.Classes[0].Name != "Apple" || art.Set.Classes[0].Parent != 1 {
		t.Errorf("Apple parent = %d, want forward index 1 to Zebra", art.Set.Classes[0].Parent)
	}
}

func TestRunOnHostVersionOverride(t *testing.T) {
	img, exec := buildMetaImage()
	cfg := testConfig(t)
	cfg.HostVersion = "4.27.2"

	if err := RunOn(img, exec, cfg); err != nil {
		t.Fatalf("RunOn: %v", err)
	}
	art, err := sdkgen.LoadArtifact(filepath.Join(cfg.OutDir, "descriptors.json"))
	if err != nil {
		t.Fatal(err)
	}
	if art.HostVersion != "4.27.2" {
		t.Errorf("HostVersion = %q, want 4.27.2", art.HostVersion)
	}
}

func TestRunOnUnknownProfile(t *testing.T) {
	img, exec := buildMetaImage()
	cfg := testConfig(t)
	cfg.Profile = "u9.99"

	if err := RunOn(img, exec, cfg); err == nil {
		t.Fatal("RunOn accepted an unknown profile")
	}
}

func TestRunOnFailureLeavesNoOutput(t *testing.T) {
	img, exec := buildMetaImage()
	cfg := testConfig(t)
	// Root outside the image: the walk fails before emission.
	cfg.RootAddr = Address(metaBase - 0x1000)

	if err := RunOn(img, exec, cfg); err == nil {
		t.Fatal("RunOn succeeded with an out-of-image root")
	}
	if _, err := os.Stat(cfg.OutDir); !os.IsNotExist(err) {
		t.Error("output directory exists after a failed run")
	}
	if _, err := os.Stat(cfg.OutDir + ".tmp"); !os.IsNotExist(err) {
		t.Error("stage directory left behind after failure")
	}
}

func TestRunOnReplacesPreviousOutput(t *testing.T) {
	img, exec := buildMetaImage()
	cfg := testConfig(t)

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(cfg.OutDir, "stale.txt")
	if err := os.WriteFile(stale, []byte("old run"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RunOn(img, exec, cfg); err != nil {
		t.Fatalf("RunOn: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file from a previous generation survived")
	}
	if _, err := os.Stat(filepath.Join(cfg.OutDir, "sdk.go")); err != nil {
		t.Errorf("sdk.go missing after replacement: %v", err)
	}
}

func TestRunOnSourceCapOverflow(t *testing.T) {
	img, exec := buildMetaImage()
	cfg := testConfig(t)
	cfg.SourceCap = 64 // far too small for any SDK

	if err := RunOn(img, exec, cfg); err == nil {
		t.Fatal("RunOn succeeded with a 64-byte source buffer")
	}
	if _, err := os.Stat(cfg.OutDir); !os.IsNotExist(err) {
		t.Error("output directory exists after emission overflow")
	}
}

package sdkgen

import (
	"errors"
	"strings"
	"testing"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/fixedbuf"
)

func render(t *testing.T, set *descriptor.Set) string {
	t.Helper()
	buf := fixedbuf.NewBuffer(1 << 16)
	if err := Emit(set, buf, Options{}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return buf.String()
}

func singleClass(c descriptor.Class) *descriptor.Set {
	return &descriptor.Set{
		HostVersion: "4.27.2",
		ProfileID:   "u427",
		Classes:     []descriptor.Class{c},
	}
}

func TestEmitNaturalLayout(t *testing.T) {
	src := render(t, singleClass(descriptor.Class{
		Name: "Actor", Size: 16, Align: 8, Parent: -1,
		Props: []descriptor.Property{
			{Name: "Health", Offset: 0, Width: 4, ArrayDim: 1, Kind: descriptor.KindInt},
			{Name: "Armor", Offset: 4, Width: 4, ArrayDim: 1, Kind: descriptor.KindInt},
			{Name: "Owner", Offset: 8, Width: 8, ArrayDim: 1, Kind: descriptor.KindClassPtr},
		},
	}))

	// Natural alignment: no gaps, no pads, no warnings.
	if strings.Contains(src, "_pad_") {
		t.Errorf("padding emitted for gapless layout:\n%s", src)
	}
	if strings.Contains(src, "WARNING") {
		t.Errorf("warning emitted for consistent layout:\n%s", src)
	}
	for _, want := range []string{
		"type Actor struct {",
		"// offset: 0, size: 4\n\tHealth int32",
		"// offset: 4, size: 4\n\tArmor int32",
		"// offset: 8, size: 8\n\tOwner uintptr",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
}

func TestEmitGapPadding(t *testing.T) {
	src := render(t, singleClass(descriptor.Class{
		Name: "Actor", Size: 16, Align: 8, Parent: -1,
		Props: []descriptor.Property{
			{Name: "Health", Offset: 0, Width: 4, ArrayDim: 1, Kind: descriptor.KindInt},
			{Name: "Owner", Offset: 8, Width: 8, ArrayDim: 1, Kind: descriptor.KindClassPtr},
		},
	}))

	if !strings.Contains(src, "_pad_0x4 [4]byte") {
		t.Errorf("missing 4-byte pad before offset 8:\n%s", src)
	}
}

func TestEmitEndOfStructPadding(t *testing.T) {
	src := render(t, singleClass(descriptor.Class{
		Name: "Actor", Size: 32, Align: 8, Parent: -1,
		Props: []descriptor.Property{
			{Name: "Health", Offset: 0, Width: 4, ArrayDim: 1, Kind: descriptor.KindInt},
		},
	}))

	if !strings.Contains(src, "_pad_0x4 [28]byte") {
		t.Errorf("missing trailing pad to declared size:\n%s", src)
	}
}

func TestEmitLaggedOffsetWarning(t *testing.T) {
	src := render(t, singleClass(descriptor.Class{
		Name: "Actor", Size: 16, Align: 8, Parent: -1,
		Props: []descriptor.Property{
			{Name: "Health", Offset: 0, Width: 8, ArrayDim: 1, Kind: descriptor.KindInt},
			{Name: "Lagged", Offset: 4, Width: 4, ArrayDim: 1, Kind: descriptor.KindInt},
		},
	}))

	if !strings.Contains(src, `WARNING: "Lagged" claims offset 4; running offset is 8.`) {
		t.Errorf("missing lagged-offset warning:\n%s", src)
	}
	// The lagged field is still emitted and still advances the reckoning.
	if !strings.Contains(src, "Lagged int32") {
		t.Errorf("lagged field dropped:\n%s", src)
	}
	if !strings.Contains(src, "_pad_0xc [4]byte") {
		t.Errorf("running offset not advanced past lagged field:\n%s", src)
	}
}

func TestEmitOversizeWarning(t *testing.T) {
	src := render(t, singleClass(descriptor.Class{
		Name: "Actor", Size: 4, Align: 4, Parent: -1,
		Props: []descriptor.Property{
			{Name: "Big", Offset: 0, Width: 8, ArrayDim: 1, Kind: descriptor.KindInt},
		},
	}))

	if !strings.Contains(src, `WARNING: "Actor" claims size 4; running offset is 8.`) {
		t.Errorf("missing size mismatch warning:\n%s", src)
	}
}

func TestEmitBitfieldGrouping(t *testing.T) {
	src := render(t, singleClass(descriptor.Class{
		Name: "Actor", Size: 16, Align: 8, Parent: -1,
		Props: []descriptor.Property{
			{Name: "Health", Offset: 0, Width: 8, ArrayDim: 1, Kind: descriptor.KindInt},
			{Name: "bIsAlive", Offset: 8, Width: 1, ArrayDim: 1, Kind: descriptor.KindBool, BitMask: 0x01},
			{Name: "bCanFly", Offset: 8, Width: 1, ArrayDim: 1, Kind: descriptor.KindBool, BitMask: 0x02},
		},
	}))

	// Two slots at offset 8 share one backing byte.
	if got := strings.Count(src, "Bitfield_0x8 uint8"); got != 1 {
		t.Errorf("backing field emitted %d times, want 1:\n%s", got, src)
	}
	for _, want := range []string{
		"const Actor_BIsAlive_Mask = 0x01",
		"const Actor_BCanFly_Mask = 0x02",
		"func (v *Actor) BIsAlive() bool",
		"func (v *Actor) SetBCanFly(on bool)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
}

func TestEmitInheritance(t *testing.T) {
	src := render(t, &descriptor.Set{
		HostVersion: "4.27.2",
		ProfileID:   "u427",
		Classes: []descriptor.Class{
			{Name: "Actor", Size: 16, Align: 8, Parent: -1},
			{
				Name: "Pawn", Size: 32, Align: 8, Parent: 0,
				Props: []descriptor.Property{
					{Name: "Speed", Offset: 16, Width: 4, ArrayDim: 1, Kind: descriptor.KindFloat},
				},
			},
		},
	})

	for _, want := range []string{
		"// Pawn is 32 bytes (16 inherited), align 8.",
		"// offset: 0, size: 16\n\tActor\n",
		"// offset: 16, size: 4\n\tSpeed float32",
		"_pad_0x14 [12]byte",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
}

func TestEmitFunctionsAndEnums(t *testing.T) {
	src := render(t, &descriptor.Set{
		HostVersion: "4.27.2",
		ProfileID:   "u427",
		Classes: []descriptor.Class{
			{
				Name: "Actor", Size: 8, Align: 8, Parent: -1,
				Funcs: []descriptor.Function{
					{
						Name: "TakeDamage", Address: 0x140002000, CallConv: descriptor.CallNative,
						Params: []descriptor.Param{
							{Name: "Amount", Width: 4, Dir: descriptor.DirIn},
							{Name: "Result", Width: 1, Dir: descriptor.DirReturn},
						},
					},
					{Name: "OnHit", Address: 0x140003000, CallConv: descriptor.CallEvent},
				},
			},
		},
		Enums: []descriptor.Enum{
			{Name: "EState", Width: 1, Variants: []descriptor.EnumVariant{
				{Name: "Idle", Value: 0},
				{Name: "Active", Value: 1},
			}},
		},
	})

	for _, want := range []string{
		"const Actor_TakeDamage_Addr uintptr = 0x140002000",
		"(native); in Amount(4) return Result(1)",
		"const Actor_OnHit_Addr uintptr = 0x140003000",
		"(event)",
		"type EState uint8",
		"EState_Idle EState = 0",
		"EState_Active EState = 1",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
}

func TestEmitArrayAndNameTypes(t *testing.T) {
	src := render(t, singleClass(descriptor.Class{
		Name: "Actor", Size: 48, Align: 8, Parent: -1,
		Props: []descriptor.Property{
			{Name: "Tags", Offset: 0, Width: 8, ArrayDim: 4, Kind: descriptor.KindName},
			{Name: "Transform", Offset: 32, Width: 16, ArrayDim: 1, Kind: descriptor.KindStruct, TypeName: "FTransform"},
		},
	}))

	for _, want := range []string{
		"Tags [4]NameHandle",
		"Transform FTransform",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
}

func TestEmitBufferOverflow(t *testing.T) {
	buf := fixedbuf.NewBuffer(32)
	err := Emit(singleClass(descriptor.Class{Name: "Actor", Size: 8, Align: 8, Parent: -1}), buf, Options{})
	if !errors.Is(err, fixedbuf.ErrCapacityExceeded) {
		t.Fatalf("Emit = %v, want ErrCapacityExceeded", err)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		replaced int
	}{
		{"Health", "Health", 0},
		{"bIsAlive", "bIsAlive", 0},
		{"Max Ammo", "Max_Ammo", 1},
		{"Damage (Base)", "Damage_Base", 1},
		{"9mm", "Field_9mm", 0},
		{"::", "Unnamed", 1},
		{"Ends With ", "Ends_With", 1},
	}
	for _, tt := range tests {
		got, replaced := CleanName(tt.in)
		if got != tt.want || replaced != tt.replaced {
			t.Errorf("CleanName(%q) = %q, %d; want %q, %d", tt.in, got, replaced, tt.want, tt.replaced)
		}
	}
}

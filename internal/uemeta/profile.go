// Package uemeta reconstructs the host engine's reflected type graph from raw
// memory: a singly-linked class registry, per-class property and function
// lists, and an enum registry, all reached from one root pointer. The node
// layouts shift between host builds, so every byte offset used to decode a
// node comes from a LayoutProfile selected for the target build — the walker
// itself never hardcodes an offset.
package uemeta

import (
	"fmt"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
)

// RootLayout locates the registry heads inside the root node.
type RootLayout struct {
	ClassList uint32 // pointer to first class node
	EnumList  uint32 // pointer to first enum node
}

// ClassLayout locates fields inside a class node.
type ClassLayout struct {
	Name   uint32 // pointer to NUL-terminated name
	Next   uint32 // pointer to next class node
	Parent uint32 // pointer to parent class node, 0 for roots
	Props  uint32 // pointer to first property node
	Funcs  uint32 // pointer to first function node
	Size   uint32 // u32 total instance size
	Align  uint32 // u32 minimum alignment
}

// PropLayout locates fields inside a property node. Function parameters are
// property nodes hanging off a function node, distinguished by Flags.
type PropLayout struct {
	Name     uint32 // pointer to NUL-terminated name
	Next     uint32 // pointer to next property node
	TypeName uint32 // pointer to referenced type name, 0 unless class ptr / struct
	Offset   uint32 // u32 byte offset within the owning class
	ElemSize uint32 // u32 element width
	ArrayDim uint32 // u32 fixed array length, 1 for scalars
	Kind     uint32 // u8 raw type tag, mapped through KindMap
	BitMask  uint32 // u8 bitfield mask, 0 for whole-byte bools
	Flags    uint32 // u32 property flags (parameter direction bits)
}

// FuncLayout locates fields inside a function node.
type FuncLayout struct {
	Name    uint32 // pointer to NUL-terminated name
	Next    uint32 // pointer to next function node
	Params  uint32 // pointer to first parameter (property node)
	Address uint32 // u64 resolved native address
	Flags   uint32 // u32 function flags
}

// EnumLayout locates fields inside an enum node. Variants are a contiguous
// array of (name pointer, i64 value) pairs.
type EnumLayout struct {
	Name          uint32 // pointer to NUL-terminated name
	Next          uint32 // pointer to next enum node
	Variants      uint32 // pointer to variant pair array
	Count         uint32 // u32 variant count
	VariantStride uint32 // byte stride of one variant pair
	ValueOffset   uint32 // i64 value offset within a pair
}

// LayoutProfile is the complete decode recipe for one host build. One fixed
// binary layout per build; re-derived per target version, never probed at
// runtime.
type LayoutProfile struct {
	ID          string
	HostVersion string

	Root  RootLayout
	Class ClassLayout
	Prop  PropLayout
	Func  FuncLayout
	Enum  EnumLayout

	// KindMap translates the host's raw property type tag into the coarse
	// descriptor kind. Unmapped tags decode as KindUnknown.
	KindMap map[uint8]descriptor.PropKind

	// Property flag bits carrying parameter direction.
	FlagParm       uint32
	FlagOutParm    uint32
	FlagReturnParm uint32
	FlagConstParm  uint32

	// Function flag bit marking event-pump dispatch.
	FlagEventCall uint32
}

// MapKind translates a raw host type tag.
func (p *LayoutProfile) MapKind(raw uint8) descriptor.PropKind {
	if k, ok := p.KindMap[raw]; ok {
		return k
	}
	return descriptor.KindUnknown
}

// ParamDir derives a parameter direction from property flags, or false when
// the property is not a parameter at all (a function-local).
func (p *LayoutProfile) ParamDir(flags uint32) (descriptor.ParamDir, bool) {
	switch {
	case flags&p.FlagReturnParm != 0:
		return descriptor.DirReturn, true
	case flags&p.FlagOutParm != 0 && flags&p.FlagConstParm == 0:
		return descriptor.DirOut, true
	case flags&p.FlagParm != 0:
		return descriptor.DirIn, true
	default:
		return 0, false
	}
}

// profiles is the registry of known host builds.
var profiles = map[string]*LayoutProfile{
	profileU427.ID: profileU427,
}

// ProfileByID returns the layout profile for a host build id.
func ProfileByID(id string) (*LayoutProfile, error) {
	p, ok := profiles[id]
	if !ok {
		return nil, fmt.Errorf("uemeta: unknown layout profile %q", id)
	}
	return p, nil
}

// profileU427 matches the 4.27-era host builds the module currently targets.
var profileU427 = &LayoutProfile{
	ID:          "u4.27",
	HostVersion: "4.27",

	Root: RootLayout{ClassList: 0x00, EnumList: 0x08},
	Class: ClassLayout{
		Name: 0x00, Next: 0x08, Parent: 0x10,
		Props: 0x18, Funcs: 0x20,
		Size: 0x28, Align: 0x2c,
	},
	Prop: PropLayout{
		Name: 0x00, Next: 0x08, TypeName: 0x10,
		Offset: 0x18, ElemSize: 0x1c, ArrayDim: 0x20,
		Kind: 0x24, BitMask: 0x25, Flags: 0x28,
	},
	Func: FuncLayout{
		Name: 0x00, Next: 0x08, Params: 0x10,
		Address: 0x18, Flags: 0x20,
	},
	Enum: EnumLayout{
		Name: 0x00, Next: 0x08, Variants: 0x10, Count: 0x18,
		VariantStride: 0x10, ValueOffset: 0x08,
	},

	KindMap: map[uint8]descriptor.PropKind{
		0x01: descriptor.KindInt,
		0x02: descriptor.KindUInt,
		0x03: descriptor.KindFloat,
		0x04: descriptor.KindBool,
		0x05: descriptor.KindClassPtr,
		0x06: descriptor.KindStruct,
		0x07: descriptor.KindName,
	},

	FlagParm:       0x0000_0080,
	FlagOutParm:    0x0000_0100,
	FlagReturnParm: 0x0000_0400,
	FlagConstParm:  0x0000_0002,

	FlagEventCall: 0x0000_0001,
}

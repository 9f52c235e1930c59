// Package descriptor is the typed model of the host's reflected type graph:
// classes, properties, functions and enums as observed in live memory.
// Descriptors are produced once per host-process launch by the walker,
// immutable afterwards, and consumed read-only by generated SDK code and by
// hook registrations.
package descriptor

// PropKind is the coarse type tag of a property.
type PropKind uint8

const (
	KindUnknown PropKind = iota
	KindInt              // signed integer scalar, Width bytes
	KindUInt             // unsigned integer scalar, Width bytes
	KindFloat            // floating point scalar, Width 4 or 8
	KindBool             // byte-backed flag; BitMask != 0 marks a bitfield slot
	KindClassPtr         // pointer to another reflected class (TypeName)
	KindStruct           // inline struct value (TypeName)
	KindName             // host interned-name handle
)

func (k PropKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindClassPtr:
		return "classptr"
	case KindStruct:
		return "struct"
	case KindName:
		return "name"
	default:
		return "unknown"
	}
}

// CallConv tags how a discovered function is invoked.
type CallConv uint8

const (
	// CallNative is a direct win64 call to Address.
	CallNative CallConv = iota
	// CallEvent is dispatched through the host's event pump; Address is the
	// pump target recorded for the function node.
	CallEvent
)

func (c CallConv) String() string {
	if c == CallEvent {
		return "event"
	}
	return "native"
}

// ParamDir classifies a function parameter.
type ParamDir uint8

const (
	DirIn ParamDir = iota
	DirOut
	DirReturn
)

func (d ParamDir) String() string {
	switch d {
	case DirOut:
		return "out"
	case DirReturn:
		return "return"
	default:
		return "in"
	}
}

// Property is one field of a class, pinned to the byte offset observed in
// the live process.
type Property struct {
	Name     string   `json:"name"`
	Offset   uint32   `json:"offset"`
	Width    uint32   `json:"width"` // element width in bytes
	ArrayDim uint32   `json:"array_dim"`
	Kind     PropKind `json:"kind"`
	TypeName string   `json:"type_name,omitempty"` // for KindClassPtr / KindStruct
	BitMask  uint8    `json:"bit_mask,omitempty"`  // for KindBool bitfields; 0 = whole byte
}

// Span returns the total bytes the property occupies.
func (p Property) Span() uint32 {
	dim := p.ArrayDim
	if dim == 0 {
		dim = 1
	}
	return p.Width * dim
}

// Param is one function parameter.
type Param struct {
	Name  string   `json:"name"`
	Width uint32   `json:"width"`
	Dir   ParamDir `json:"dir"`
}

// Function is a callable discovered on a class. Address is stable for the
// lifetime of one host process instance only; descriptor sets are versioned
// artifacts regenerated per host build.
type Function struct {
	Name     string   `json:"name"`
	Address  uint64   `json:"address"`
	CallConv CallConv `json:"call_conv"`
	Params   []Param  `json:"params,omitempty"`
}

// Class is one reflected class. Parent is a weak back-reference: an index
// into the owning Set's Classes slice, -1 for a root class. The Set owns all
// descriptors; nothing here owns anything.
type Class struct {
	Name   string     `json:"name"`
	Size   uint32     `json:"size"`
	Align  uint32     `json:"align"`
	Parent int        `json:"parent"`
	Props  []Property `json:"props,omitempty"`
	Funcs  []Function `json:"funcs,omitempty"`
}

// EnumVariant is one named value of an enum.
type EnumVariant struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Enum is a reflected enumeration. Width is the representation width in
// bytes, picked from the largest discriminant: 1, 4 or 8.
type Enum struct {
	Name     string        `json:"name"`
	Width    uint32        `json:"width"`
	Variants []EnumVariant `json:"variants,omitempty"`
}

// Set is one complete walk result for one host build.
type Set struct {
	HostVersion string  `json:"host_version"`
	ProfileID   string  `json:"profile_id"`
	Classes     []Class `json:"classes"`
	Enums       []Enum  `json:"enums,omitempty"`
}

// ClassIndex returns the index of the class with the given name, -1 if
// absent. Linear scan; Sets are small and read-mostly.
func (s *Set) ClassIndex(name string) int {
	for i := range s.Classes {
		if s.Classes[i].Name == name {
			return i
		}
	}
	return -1
}

// EnumWidthFor picks the representation width for a maximum discriminant
// value, matching the host compiler's choice.
func EnumWidthFor(maxValue int64) uint32 {
	switch {
	case maxValue <= 0xff:
		return 1
	case maxValue <= 0xffffffff:
		return 4
	default:
		return 8
	}
}

// Package sdkgen renders a descriptor set as Go source whose struct layout is
// byte-identical to the memory observed in the host process, plus a versioned
// JSON artifact of the raw set. Emission is pure: it reads the set and writes
// bytes, and the only way it can fail is overflowing its fixed output buffer.
package sdkgen

import (
	"strconv"
	"strings"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/fixedbuf"
)

// Options configures source emission.
type Options struct {
	// PackageName of the generated file; "sdk" when empty.
	PackageName string
}

// Emit renders set into buf as one Go source file. Struct fields are pinned
// to observed offsets with explicit padding, so unsafe access through the
// generated types lands on the same bytes the host uses. The returned error
// is buf's sticky overflow, nil when everything fit.
func Emit(set *descriptor.Set, buf *fixedbuf.Buffer, opts Options) error {
	pkg := opts.PackageName
	if pkg == "" {
		pkg = "sdk"
	}

	buf.Writef("// Code generated by drgsdk; DO NOT EDIT.\n")
	buf.Writef("// Host version: %s (profile %s).\n\n", set.HostVersion, set.ProfileID)
	buf.Writef("package %s\n\n", pkg)
	buf.WriteString("// NameHandle is the host's interned-name handle.\ntype NameHandle uint64\n\n")

	for i := range set.Enums {
		emitEnum(buf, &set.Enums[i])
	}
	for i := range set.Classes {
		e := structEmitter{buf: buf, set: set, class: &set.Classes[i]}
		e.emit()
	}
	return buf.Err()
}

func emitEnum(buf *fixedbuf.Buffer, e *descriptor.Enum) {
	name, _ := CleanName(e.Name)
	buf.Writef("// %s is %d byte(s) wide in host memory.\ntype %s uint%d\n\nconst (\n",
		e.Name, e.Width, name, e.Width*8)
	for _, v := range e.Variants {
		vn, replaced := CleanName(v.Name)
		buf.Writef("\t%s_%s %s = %d", name, vn, name, v.Value)
		if replaced > 1 {
			buf.Writef(" // original name %q", v.Name)
		}
		buf.WriteString("\n")
	}
	buf.WriteString(")\n\n")
}

// structEmitter renders one class, reckoning a running offset against each
// property's claimed offset exactly the way the live process laid the class
// out: gaps become explicit pad fields, claims behind the running offset
// become warning comments, and bitfield slots sharing a byte collapse into
// one backing field.
type structEmitter struct {
	buf   *fixedbuf.Buffer
	set   *descriptor.Set
	class *descriptor.Class

	offset uint32
	// backing field per bitfield group, in emission order
	groups          []bitfieldGroup
	lastBitfieldOff uint32
	haveBitfield    bool
}

type bitfieldGroup struct {
	field string
	props []descriptor.Property
}

func (e *structEmitter) emit() {
	c := e.class
	name, _ := CleanName(c.Name)

	if c.Parent >= 0 {
		parent := &e.set.Classes[c.Parent]
		parentName, _ := CleanName(parent.Name)
		e.offset = parent.Size
		e.buf.Writef("// %s is %d bytes (%d inherited), align %d.\ntype %s struct {\n",
			c.Name, c.Size, parent.Size, c.Align, name)
		e.buf.Writef("\t// offset: 0, size: %d\n\t%s\n\n", parent.Size, parentName)
	} else {
		e.buf.Writef("// %s is %d bytes, align %d.\ntype %s struct {\n", c.Name, c.Size, c.Align, name)
	}

	for i := range c.Props {
		e.field(&c.Props[i])
	}
	e.endPadding()
	e.buf.WriteString("}\n\n")

	e.bitfieldAccessors(name)
	e.functions(name)
}

func (e *structEmitter) field(p *descriptor.Property) {
	if p.Kind == descriptor.KindBool && p.BitMask != 0 {
		e.bitfieldSlot(p)
		return
	}

	e.padTo(p)
	fn, replaced := CleanName(p.Name)
	e.buf.Writef("\t// offset: %d, size: %d\n\t%s %s", e.offset, p.Span(), exported(fn), goType(p))
	if replaced > 1 {
		e.buf.Writef(" // original name %q", p.Name)
	}
	e.buf.WriteString("\n\n")
	e.offset += p.Span()
}

// bitfieldSlot merges bool properties that claim the same offset into one
// backing field; the first slot at a new offset owns the byte.
func (e *structEmitter) bitfieldSlot(p *descriptor.Property) {
	if e.haveBitfield && p.Offset == e.lastBitfieldOff {
		g := &e.groups[len(e.groups)-1]
		g.props = append(g.props, *p)
		return
	}

	e.padTo(p)
	field := bitfieldFieldName(p.Offset)
	e.buf.Writef("\t// offset: %d, size: %d\n\t%s uint%d\n\n", p.Offset, p.Width, field, p.Width*8)
	e.groups = append(e.groups, bitfieldGroup{field: field, props: []descriptor.Property{*p}})
	e.lastBitfieldOff = p.Offset
	e.haveBitfield = true
	e.offset += p.Width
}

// padTo reconciles the running offset with the property's claimed offset.
func (e *structEmitter) padTo(p *descriptor.Property) {
	switch {
	case e.offset < p.Offset:
		e.pad(p.Offset)
	case e.offset > p.Offset:
		// The field lags the running offset. Emit the field anyway and warn;
		// the descriptor set already passed overlap validation, so this is a
		// layout the host itself reports inconsistently.
		e.buf.Writef("\t// WARNING: %q claims offset %d; running offset is %d.\n", p.Name, p.Offset, e.offset)
	}
}

func (e *structEmitter) pad(to uint32) {
	e.buf.Writef("\t// offset: %d, size: %d\n\t_pad_0x%x [%d]byte\n\n", e.offset, to-e.offset, e.offset, to-e.offset)
	e.offset = to
}

func (e *structEmitter) endPadding() {
	switch {
	case e.offset < e.class.Size:
		e.pad(e.class.Size)
	case e.offset > e.class.Size:
		e.buf.Writef("\t// WARNING: %q claims size %d; running offset is %d.\n", e.class.Name, e.class.Size, e.offset)
	}
}

func (e *structEmitter) bitfieldAccessors(owner string) {
	for _, g := range e.groups {
		for _, p := range g.props {
			pn, _ := CleanName(p.Name)
			pn = exported(pn)
			e.buf.Writef("const %s_%s_Mask = 0x%02x\n\n", owner, pn, p.BitMask)
			e.buf.Writef("func (v *%s) %s() bool { return v.%s&%s_%s_Mask != 0 }\n\n",
				owner, pn, g.field, owner, pn)
			e.buf.Writef("func (v *%s) Set%s(on bool) {\n\tif on {\n\t\tv.%s |= %s_%s_Mask\n\t} else {\n\t\tv.%s &^= %s_%s_Mask\n\t}\n}\n\n",
				owner, pn, g.field, owner, pn, g.field, owner, pn)
		}
	}
}

// functions emits one address constant per discovered function, tagged with
// its calling convention and parameter shape. Addresses hold for the host
// build stamped in the file header only.
func (e *structEmitter) functions(owner string) {
	for _, f := range e.class.Funcs {
		fn, replaced := CleanName(f.Name)
		fn = exported(fn)
		e.buf.Writef("// %s.%s (%s)%s", e.class.Name, f.Name, f.CallConv, paramComment(f.Params))
		if replaced > 1 {
			e.buf.Writef("; invalid characters replaced in constant name")
		}
		e.buf.Writef("\nconst %s_%s_Addr uintptr = 0x%x\n\n", owner, fn, f.Address)
	}
}

func paramComment(params []descriptor.Param) string {
	if len(params) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(";")
	for _, p := range params {
		sb.WriteString(" ")
		sb.WriteString(p.Dir.String())
		sb.WriteString(" ")
		sb.WriteString(p.Name)
		sb.WriteString("(")
		sb.WriteString(itoa(p.Width))
		sb.WriteString(")")
	}
	return sb.String()
}

func itoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func bitfieldFieldName(offset uint32) string {
	return "Bitfield_0x" + strconv.FormatUint(uint64(offset), 16)
}

// goType maps a property to the Go type occupying the same bytes.
func goType(p *descriptor.Property) string {
	elem := goElemType(p)
	if p.ArrayDim > 1 {
		return "[" + itoa(p.ArrayDim) + "]" + elem
	}
	return elem
}

func goElemType(p *descriptor.Property) string {
	switch p.Kind {
	case descriptor.KindInt:
		switch p.Width {
		case 1:
			return "int8"
		case 2:
			return "int16"
		case 4:
			return "int32"
		case 8:
			return "int64"
		}
	case descriptor.KindUInt:
		switch p.Width {
		case 1:
			return "uint8"
		case 2:
			return "uint16"
		case 4:
			return "uint32"
		case 8:
			return "uint64"
		}
	case descriptor.KindFloat:
		switch p.Width {
		case 4:
			return "float32"
		case 8:
			return "float64"
		}
	case descriptor.KindBool:
		if p.Width == 1 {
			return "bool"
		}
	case descriptor.KindClassPtr:
		if p.TypeName != "" {
			tn, _ := CleanName(p.TypeName)
			return "*" + tn
		}
		return "uintptr"
	case descriptor.KindStruct:
		if p.TypeName != "" {
			tn, _ := CleanName(p.TypeName)
			return tn
		}
	case descriptor.KindName:
		if p.Width == 8 {
			return "NameHandle"
		}
	}
	return "[" + itoa(p.Width) + "]byte"
}

// CleanName sanitizes a host name into a Go identifier: runs of invalid
// characters collapse to single underscores, and a leading digit gets a
// prefix. Returns the number of invalid runs replaced, so callers can note
// the original name when the mapping was lossy.
func CleanName(name string) (string, int) {
	var sb strings.Builder
	replaced := 0
	pending := false
	wrote := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		ok := c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
		if !ok {
			pending = wrote
			continue
		}
		if pending {
			sb.WriteByte('_')
			replaced++
			pending = false
		}
		if !wrote && c >= '0' && c <= '9' {
			sb.WriteString("Field_")
		}
		sb.WriteByte(c)
		wrote = true
	}
	if !wrote {
		return "Unnamed", 1
	}
	return sb.String(), replaced
}

// exported upper-cases the first letter so generated fields and methods are
// visible outside the SDK package.
func exported(name string) string {
	if name == "" {
		return name
	}
	c := name[0]
	if c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + name[1:]
	}
	return name
}

package uemeta

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/diag"
	"github.com/Henri-J-Norden/drg-dll/internal/fixedbuf"
	"github.com/Henri-J-Norden/drg-dll/internal/memview"
)

// ErrExhausted is returned when a walk exceeds its absolute step budget.
// Metadata that loops wider than the visited set can see burns steps instead
// of hanging; the budget turns that into a clean abort.
var ErrExhausted = errors.New("uemeta: step budget exhausted")

// Params fixes the walk inputs resolved at startup. Root is a configuration
// input — a single resolved address, never a scan. Exec is the host module's
// executable range for function-address validation; a zero range defaults to
// the whole image.
type Params struct {
	Root        uint64
	Exec        descriptor.ExecRange
	HostVersion string
}

// Result is one complete walk. On any error the walk returns a nil Result:
// partial descriptor sets are never shipped.
type Result struct {
	Set   *descriptor.Set
	Diags []diag.Diag
	Steps int
}

// Walk traverses the class and enum registries reachable from params.Root,
// producing descriptor records for every reachable node. The traversal is
// bounded three ways: every dereference goes through the bounded cursor,
// class re-entry terminates against the visited set, and an absolute step
// budget caps the total work. All-or-nothing: any failure discards all
// accumulated state.
func Walk(img memview.Image, prof *LayoutProfile, params Params, opts diag.Options) (*Result, error) {
	exec := params.Exec
	if exec == (descriptor.ExecRange{}) {
		exec = descriptor.ExecRange{Start: img.Base(), End: img.Base() + img.Size()}
	}

	maxClasses := opts.EffectiveMaxClasses()
	w := &walker{
		cur:      memview.NewCursor(img, params.Root),
		prof:     prof,
		opts:     opts,
		exec:     exec,
		budget:   opts.EffectiveMaxSteps(),
		visited:  fixedbuf.NewAddrMap(maxClasses),
		listSeen: fixedbuf.NewAddrSet(maxClasses),
		classes:  fixedbuf.NewList[descriptor.Class](maxClasses),
		names:    make(map[string]uint64, maxClasses),
	}

	if err := w.walkClassList(params.Root); err != nil {
		return nil, err
	}
	if err := w.walkEnumList(params.Root); err != nil {
		return nil, err
	}

	set := &descriptor.Set{
		HostVersion: params.HostVersion,
		ProfileID:   prof.ID,
		Classes:     append([]descriptor.Class(nil), w.classes.Items()...),
		Enums:       w.enums,
	}
	return &Result{Set: set, Diags: w.diags.Items(), Steps: w.steps}, nil
}

// classInProgress marks a class node whose descriptor index is not assigned
// yet; hitting it again means an inheritance cycle.
const classInProgress = int32(-1)

type walker struct {
	cur  *memview.Cursor
	prof *LayoutProfile
	opts diag.Options
	exec descriptor.ExecRange

	steps  int
	budget int

	visited  *fixedbuf.AddrMap // class node addr -> descriptor index
	listSeen *fixedbuf.AddrSet // class node addrs whose Next link was followed
	classes  *fixedbuf.List[descriptor.Class]
	names    map[string]uint64 // class name -> first node addr
	enums    []descriptor.Enum
	diags    diag.Diags
}

// step charges one unit of the walk budget.
func (w *walker) step() error {
	w.steps++
	if w.steps > w.budget {
		return ErrExhausted
	}
	return nil
}

// report records a recoverable metadata oddity, which is fatal in strict
// mode.
func (w *walker) report(addr uint64, kind diag.Kind, format string, args ...any) error {
	w.diags.Addf(addr, kind, format, args...)
	if w.opts.Mode == diag.ModeStrict {
		return fmt.Errorf("uemeta: strict: %s", w.diags.Items()[w.diags.Len()-1])
	}
	return nil
}

func (w *walker) walkClassList(root uint64) error {
	addr, err := w.cur.Ptr(root + uint64(w.prof.Root.ClassList))
	if err != nil {
		return fmt.Errorf("uemeta: root class list: %w", err)
	}
	for addr != 0 {
		if err := w.step(); err != nil {
			return err
		}
		if first, err := w.listSeen.Add(addr); err != nil {
			return fmt.Errorf("uemeta: class list: %w", err)
		} else if !first {
			// The Next chain looped back; the remainder was already walked.
			if err := w.report(addr, diag.KindCycle, "class list cycles back to %#x", addr); err != nil {
				return err
			}
			return nil
		}
		if _, err := w.visitClass(addr); err != nil {
			return err
		}
		next, err := w.cur.Ptr(addr + uint64(w.prof.Class.Next))
		if err != nil {
			return fmt.Errorf("uemeta: class %#x next link: %w", addr, err)
		}
		addr = next
	}
	return nil
}

// visitClass produces a descriptor for the class node at addr, descending
// into its parent first so parent indices always point backwards. Returns
// the descriptor index, or -1 when the node is a cyclic re-entry.
func (w *walker) visitClass(addr uint64) (int32, error) {
	if err := w.step(); err != nil {
		return -1, err
	}
	if idx, ok := w.visited.Get(addr); ok {
		if idx == classInProgress {
			// Inheritance cycle: the node is an ancestor currently being
			// processed. Terminate the branch.
			if err := w.report(addr, diag.KindCycle, "inheritance cycle through %#x", addr); err != nil {
				return -1, err
			}
			return -1, nil
		}
		return idx, nil
	}
	if err := w.visited.Put(addr, classInProgress); err != nil {
		return -1, fmt.Errorf("uemeta: visited set: %w", err)
	}

	cl := w.prof.Class
	name, err := w.readName(addr + uint64(cl.Name))
	if err != nil {
		return -1, fmt.Errorf("uemeta: class %#x name: %w", addr, err)
	}
	if prev, seen := w.names[name]; seen {
		// Hot-reload leaves two nodes with the same name; canonicalization
		// keeps the later one.
		if err := w.report(addr, diag.KindDuplicate, "class name %q already seen at %#x", name, prev); err != nil {
			return -1, err
		}
	} else {
		w.names[name] = addr
	}
	size, err := w.cur.U32(addr + uint64(cl.Size))
	if err != nil {
		return -1, fmt.Errorf("uemeta: class %q size: %w", name, err)
	}
	align, err := w.cur.U32(addr + uint64(cl.Align))
	if err != nil {
		return -1, fmt.Errorf("uemeta: class %q alignment: %w", name, err)
	}

	parentIdx := int32(-1)
	parentAddr, err := w.cur.Ptr(addr + uint64(cl.Parent))
	if err != nil {
		return -1, fmt.Errorf("uemeta: class %q parent link: %w", name, err)
	}
	if parentAddr != 0 {
		parentIdx, err = w.visitClass(parentAddr)
		if err != nil {
			return -1, err
		}
	}

	propsHead, err := w.cur.Ptr(addr + uint64(cl.Props))
	if err != nil {
		return -1, fmt.Errorf("uemeta: class %q property list: %w", name, err)
	}
	props, err := w.walkProps(name, propsHead, size)
	if err != nil {
		return -1, err
	}

	funcsHead, err := w.cur.Ptr(addr + uint64(cl.Funcs))
	if err != nil {
		return -1, fmt.Errorf("uemeta: class %q function list: %w", name, err)
	}
	funcs, err := w.walkFuncs(name, funcsHead)
	if err != nil {
		return -1, err
	}

	if err := w.classes.Push(descriptor.Class{
		Name:   name,
		Size:   size,
		Align:  align,
		Parent: int(parentIdx),
		Props:  props,
		Funcs:  funcs,
	}); err != nil {
		return -1, fmt.Errorf("uemeta: class table: %w", err)
	}
	idx := int32(w.classes.Len() - 1)
	if err := w.visited.Put(addr, idx); err != nil {
		return -1, fmt.Errorf("uemeta: visited set: %w", err)
	}
	return idx, nil
}

func (w *walker) walkProps(owner string, head uint64, classSize uint32) ([]descriptor.Property, error) {
	var props []descriptor.Property
	pl := w.prof.Prop
	var lastOff uint32
	for addr := head; addr != 0; {
		if err := w.step(); err != nil {
			return nil, err
		}
		p, flags, err := w.readProp(addr)
		if err != nil {
			return nil, fmt.Errorf("uemeta: property %#x of %q: %w", addr, owner, err)
		}
		_ = flags // parameter flags are meaningful only under a function node
		switch {
		case p.Width == 0:
			if err := w.report(addr, diag.KindSkipped, "zero-sized property %q.%q", owner, p.Name); err != nil {
				return nil, err
			}
		case uint64(p.Offset)+uint64(p.Span()) > uint64(classSize):
			if err := w.report(addr, diag.KindOversize, "property %q.%q at %#x+%d past class size %d", owner, p.Name, p.Offset, p.Span(), classSize); err != nil {
				return nil, err
			}
		default:
			// The property list normally runs in ascending offset order; a
			// regression is worth recording but not worth dropping the field.
			if len(props) > 0 && p.Offset < lastOff {
				if err := w.report(addr, diag.KindLagged, "property %q.%q offset %#x lags previous %#x", owner, p.Name, p.Offset, lastOff); err != nil {
					return nil, err
				}
			}
			props = append(props, p)
			lastOff = p.Offset
		}
		next, err := w.cur.Ptr(addr + uint64(pl.Next))
		if err != nil {
			return nil, fmt.Errorf("uemeta: property %#x next link: %w", addr, err)
		}
		addr = next
	}
	return props, nil
}

func (w *walker) readProp(addr uint64) (descriptor.Property, uint32, error) {
	pl := w.prof.Prop
	var p descriptor.Property

	name, err := w.readName(addr + uint64(pl.Name))
	if err != nil {
		return p, 0, fmt.Errorf("name: %w", err)
	}
	offset, err := w.cur.U32(addr + uint64(pl.Offset))
	if err != nil {
		return p, 0, fmt.Errorf("offset: %w", err)
	}
	width, err := w.cur.U32(addr + uint64(pl.ElemSize))
	if err != nil {
		return p, 0, fmt.Errorf("width: %w", err)
	}
	dim, err := w.cur.U32(addr + uint64(pl.ArrayDim))
	if err != nil {
		return p, 0, fmt.Errorf("array dim: %w", err)
	}
	rawKind, err := w.cur.U8(addr + uint64(pl.Kind))
	if err != nil {
		return p, 0, fmt.Errorf("kind: %w", err)
	}
	mask, err := w.cur.U8(addr + uint64(pl.BitMask))
	if err != nil {
		return p, 0, fmt.Errorf("bit mask: %w", err)
	}
	flags, err := w.cur.U32(addr + uint64(pl.Flags))
	if err != nil {
		return p, 0, fmt.Errorf("flags: %w", err)
	}

	p = descriptor.Property{
		Name:     name,
		Offset:   offset,
		Width:    width,
		ArrayDim: dim,
		Kind:     w.prof.MapKind(rawKind),
		BitMask:  mask,
	}
	if p.Kind == descriptor.KindClassPtr || p.Kind == descriptor.KindStruct {
		tn, err := w.cur.Ptr(addr + uint64(pl.TypeName))
		if err != nil {
			return p, 0, fmt.Errorf("type name link: %w", err)
		}
		if tn != 0 {
			p.TypeName, err = w.cur.CString(tn)
			if err != nil {
				return p, 0, fmt.Errorf("type name: %w", err)
			}
		}
	}
	return p, flags, nil
}

func (w *walker) walkFuncs(owner string, head uint64) ([]descriptor.Function, error) {
	var funcs []descriptor.Function
	fl := w.prof.Func
	for addr := head; addr != 0; {
		if err := w.step(); err != nil {
			return nil, err
		}
		name, err := w.readName(addr + uint64(fl.Name))
		if err != nil {
			return nil, fmt.Errorf("uemeta: function %#x of %q name: %w", addr, owner, err)
		}
		target, err := w.cur.Ptr(addr + uint64(fl.Address))
		if err != nil {
			return nil, fmt.Errorf("uemeta: function %q.%q address: %w", owner, name, err)
		}
		flags, err := w.cur.U32(addr + uint64(fl.Flags))
		if err != nil {
			return nil, fmt.Errorf("uemeta: function %q.%q flags: %w", owner, name, err)
		}
		paramsHead, err := w.cur.Ptr(addr + uint64(fl.Params))
		if err != nil {
			return nil, fmt.Errorf("uemeta: function %q.%q params: %w", owner, name, err)
		}

		if !w.exec.Contains(target) {
			if err := w.report(addr, diag.KindBadAddress, "function %q.%q address %#x outside executable range", owner, name, target); err != nil {
				return nil, err
			}
		} else {
			params, err := w.walkParams(owner, name, paramsHead)
			if err != nil {
				return nil, err
			}
			conv := descriptor.CallNative
			if flags&w.prof.FlagEventCall != 0 {
				conv = descriptor.CallEvent
			}
			funcs = append(funcs, descriptor.Function{
				Name:     name,
				Address:  target,
				CallConv: conv,
				Params:   params,
			})
		}

		next, err := w.cur.Ptr(addr + uint64(fl.Next))
		if err != nil {
			return nil, fmt.Errorf("uemeta: function %#x next link: %w", addr, err)
		}
		addr = next
	}
	return funcs, nil
}

// walkParams reads the parameter list of a function: property nodes whose
// flags mark them as in, out, or return parameters. Properties without a
// parameter bit are function-locals and are skipped.
func (w *walker) walkParams(owner, fname string, head uint64) ([]descriptor.Param, error) {
	var params []descriptor.Param
	pl := w.prof.Prop
	for addr := head; addr != 0; {
		if err := w.step(); err != nil {
			return nil, err
		}
		p, flags, err := w.readProp(addr)
		if err != nil {
			return nil, fmt.Errorf("uemeta: parameter %#x of %q.%q: %w", addr, owner, fname, err)
		}
		if dir, isParam := w.prof.ParamDir(flags); isParam {
			params = append(params, descriptor.Param{
				Name:  p.Name,
				Width: p.Span(),
				Dir:   dir,
			})
		}
		next, err := w.cur.Ptr(addr + uint64(pl.Next))
		if err != nil {
			return nil, fmt.Errorf("uemeta: parameter %#x next link: %w", addr, err)
		}
		addr = next
	}
	return params, nil
}

func (w *walker) walkEnumList(root uint64) error {
	el := w.prof.Enum
	seen := fixedbuf.NewAddrSet(w.opts.EffectiveMaxClasses())
	addr, err := w.cur.Ptr(root + uint64(w.prof.Root.EnumList))
	if err != nil {
		return fmt.Errorf("uemeta: root enum list: %w", err)
	}
	for addr != 0 {
		if err := w.step(); err != nil {
			return err
		}
		if first, err := seen.Add(addr); err != nil {
			return fmt.Errorf("uemeta: enum list: %w", err)
		} else if !first {
			if err := w.report(addr, diag.KindCycle, "enum list cycles back to %#x", addr); err != nil {
				return err
			}
			return nil
		}
		e, err := w.readEnum(addr)
		if err != nil {
			return err
		}
		if len(e.Variants) > 0 {
			w.enums = append(w.enums, e)
		}
		next, err := w.cur.Ptr(addr + uint64(el.Next))
		if err != nil {
			return fmt.Errorf("uemeta: enum %#x next link: %w", addr, err)
		}
		addr = next
	}
	return nil
}

func (w *walker) readEnum(addr uint64) (descriptor.Enum, error) {
	el := w.prof.Enum
	var e descriptor.Enum

	name, err := w.readName(addr + uint64(el.Name))
	if err != nil {
		return e, fmt.Errorf("uemeta: enum %#x name: %w", addr, err)
	}
	arr, err := w.cur.Ptr(addr + uint64(el.Variants))
	if err != nil {
		return e, fmt.Errorf("uemeta: enum %q variants: %w", name, err)
	}
	count, err := w.cur.U32(addr + uint64(el.Count))
	if err != nil {
		return e, fmt.Errorf("uemeta: enum %q count: %w", name, err)
	}

	var variants []descriptor.EnumVariant
	var maxVal int64
	for i := uint64(0); i < uint64(count); i++ {
		if err := w.step(); err != nil {
			return e, err
		}
		base := arr + i*uint64(el.VariantStride)
		vname, err := w.readName(base)
		if err != nil {
			return e, fmt.Errorf("uemeta: enum %q variant %d: %w", name, i, err)
		}
		val, err := w.cur.I64(base + uint64(el.ValueOffset))
		if err != nil {
			return e, fmt.Errorf("uemeta: enum %q variant %q value: %w", name, vname, err)
		}
		variants = append(variants, descriptor.EnumVariant{Name: vname, Value: val})
	}

	// The host compiler appends an autogenerated <Name>_MAX variant; it is
	// bookkeeping, not a real value, and must not widen the representation.
	if n := len(variants); n > 0 {
		last := variants[n-1].Name
		if strings.HasSuffix(last, "_MAX") || strings.HasSuffix(last, "_Max") {
			variants = variants[:n-1]
		}
	}
	for _, v := range variants {
		if v.Value > maxVal {
			maxVal = v.Value
		}
	}

	e = descriptor.Enum{
		Name:     name,
		Width:    descriptor.EnumWidthFor(maxVal),
		Variants: variants,
	}
	return e, nil
}

// readName dereferences a name pointer field and reads the string behind it.
func (w *walker) readName(fieldAddr uint64) (string, error) {
	ptr, err := w.cur.Ptr(fieldAddr)
	if err != nil {
		return "", err
	}
	if ptr == 0 {
		return "", memview.ErrOutOfBounds
	}
	return w.cur.CString(ptr)
}

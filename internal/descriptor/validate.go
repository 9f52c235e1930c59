package descriptor

import (
	"fmt"
	"sort"
)

// ExecRange is the host module's executable address range, used to validate
// function addresses.
type ExecRange struct {
	Start uint64
	End   uint64
}

// Contains reports whether addr lies inside the range. A zero range rejects
// everything.
func (r ExecRange) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// Validate checks every structural invariant of the set:
//
//   - parent index is -1 or another class, never itself, and the parent
//     chain terminates (canonical ordering may point parents either way)
//   - child size >= parent size
//   - size is a multiple of alignment
//   - offset + span <= size for every property
//   - non-bitfield properties do not overlap; bitfield properties may share
//     a byte as long as their masks do not collide
//   - every function address lies within exec
//
// The first violation is returned; a valid set returns nil.
func (s *Set) Validate(exec ExecRange) error {
	for i := range s.Classes {
		if err := s.validateClass(i, exec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) validateClass(i int, exec ExecRange) error {
	c := &s.Classes[i]

	if c.Parent < -1 || c.Parent >= len(s.Classes) {
		return fmt.Errorf("descriptor: class %q: parent index %d out of range (%d classes)", c.Name, c.Parent, len(s.Classes))
	}
	if c.Parent == i {
		return fmt.Errorf("descriptor: class %q is its own parent", c.Name)
	}
	if c.Parent >= 0 {
		p := &s.Classes[c.Parent]
		if c.Size < p.Size {
			return fmt.Errorf("descriptor: class %q size %d smaller than parent %q size %d", c.Name, c.Size, p.Name, p.Size)
		}
		// Indices may point forward after canonical reordering; the chain
		// must still terminate.
		hops := 0
		for j := c.Parent; j >= 0 && j < len(s.Classes); j = s.Classes[j].Parent {
			hops++
			if hops > len(s.Classes) {
				return fmt.Errorf("descriptor: class %q: inheritance chain does not terminate", c.Name)
			}
		}
	}
	if c.Align == 0 {
		return fmt.Errorf("descriptor: class %q has zero alignment", c.Name)
	}
	if c.Size%c.Align != 0 {
		return fmt.Errorf("descriptor: class %q size %d not a multiple of alignment %d", c.Name, c.Size, c.Align)
	}

	if err := validateProps(c); err != nil {
		return err
	}

	for fi := range c.Funcs {
		f := &c.Funcs[fi]
		if !exec.Contains(f.Address) {
			return fmt.Errorf("descriptor: function %q.%q address %#x outside executable range [%#x, %#x)", c.Name, f.Name, f.Address, exec.Start, exec.End)
		}
	}
	return nil
}

func validateProps(c *Class) error {
	byOffset := make([]*Property, 0, len(c.Props))
	for pi := range c.Props {
		p := &c.Props[pi]
		if p.Width == 0 {
			return fmt.Errorf("descriptor: property %q.%q has zero width", c.Name, p.Name)
		}
		if uint64(p.Offset)+uint64(p.Span()) > uint64(c.Size) {
			return fmt.Errorf("descriptor: property %q.%q at %#x+%d exceeds class size %d", c.Name, p.Name, p.Offset, p.Span(), c.Size)
		}
		byOffset = append(byOffset, p)
	}

	sort.SliceStable(byOffset, func(a, b int) bool { return byOffset[a].Offset < byOffset[b].Offset })

	var prevEnd uint64
	masks := map[uint32]uint8{} // bitfield byte offset -> used mask bits
	for _, p := range byOffset {
		if p.Kind == KindBool && p.BitMask != 0 {
			used, seen := masks[p.Offset]
			if used&p.BitMask != 0 {
				return fmt.Errorf("descriptor: bitfield %q.%q mask %#x collides at offset %#x", c.Name, p.Name, p.BitMask, p.Offset)
			}
			// The first bitfield at an offset claims its backing byte like a
			// plain field; later ones at the same offset share it.
			if !seen && uint64(p.Offset) < prevEnd {
				return fmt.Errorf("descriptor: bitfield %q.%q overlaps plain field at offset %#x", c.Name, p.Name, p.Offset)
			}
			masks[p.Offset] = used | p.BitMask
			if end := uint64(p.Offset) + uint64(p.Width); end > prevEnd {
				prevEnd = end
			}
			continue
		}
		if uint64(p.Offset) < prevEnd {
			return fmt.Errorf("descriptor: property %q.%q at offset %#x overlaps previous field ending at %#x", c.Name, p.Name, p.Offset, prevEnd)
		}
		prevEnd = uint64(p.Offset) + uint64(p.Span())
	}
	return nil
}

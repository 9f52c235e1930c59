package descriptor

import "sort"

// Canonicalize returns a copy of the set in canonical order: classes sorted
// by name, enums sorted by name, parent indices remapped. Duplicate class
// names are resolved last-write-wins — a duplicate reflects live engine
// patch / hot-reload state, and the later node is the current one. Two walks
// over an unchanged image canonicalize to equal sets.
func (s *Set) Canonicalize() *Set {
	// Last occurrence of each name survives.
	keep := make(map[string]int, len(s.Classes))
	for i := range s.Classes {
		keep[s.Classes[i].Name] = i
	}

	survivors := make([]int, 0, len(keep))
	for i := range s.Classes {
		if keep[s.Classes[i].Name] == i {
			survivors = append(survivors, i)
		}
	}
	sort.Slice(survivors, func(a, b int) bool {
		return s.Classes[survivors[a]].Name < s.Classes[survivors[b]].Name
	})

	// Old index -> new index, routed through the surviving duplicate.
	newIndex := make(map[int]int, len(survivors))
	for ni, oi := range survivors {
		newIndex[oi] = ni
	}
	remap := func(old int) int {
		if old < 0 || old >= len(s.Classes) {
			return -1
		}
		return newIndex[keep[s.Classes[old].Name]]
	}

	out := &Set{
		HostVersion: s.HostVersion,
		ProfileID:   s.ProfileID,
		Classes:     make([]Class, 0, len(survivors)),
		Enums:       append([]Enum(nil), s.Enums...),
	}
	for _, oi := range survivors {
		c := s.Classes[oi] // copies the struct; slices stay shared, set is immutable
		c.Parent = remap(c.Parent)
		out.Classes = append(out.Classes, c)
	}
	sort.Slice(out.Enums, func(a, b int) bool { return out.Enums[a].Name < out.Enums[b].Name })
	return out
}

package hostmod

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// parseMaps scans /proc/self/maps-formatted lines for the mappings of the
// named file. A match on the full pathname or its base name counts. The
// module spans the lowest to highest matching mapping; the executable range
// is the union of its x mappings.
func parseMaps(r io.Reader, name string) (*Module, error) {
	base := filepath.Base(name)

	var m Module
	var end uint64
	found := false

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		path := fields[5]
		if path != name && filepath.Base(path) != base {
			continue
		}

		lo, hi, err := parseRange(fields[0])
		if err != nil {
			return nil, fmt.Errorf("hostmod: maps line %q: %w", line, err)
		}
		perms := fields[1]

		if !found {
			m.Name = filepath.Base(path)
			m.Base = lo
			found = true
		}
		if hi > end {
			end = hi
		}
		if strings.Contains(perms, "x") {
			if m.ExecStart == 0 || lo < m.ExecStart {
				m.ExecStart = lo
			}
			if hi > m.ExecEnd {
				m.ExecEnd = hi
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("hostmod: scan maps: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("hostmod: %q: %w", name, ErrNotFound)
	}
	if m.ExecStart == 0 {
		return nil, fmt.Errorf("hostmod: %q has no executable mapping", name)
	}
	m.Size = end - m.Base
	return &m, nil
}

func parseRange(s string) (uint64, uint64, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("bad range %q", s)
	}
	start, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return 0, 0, err
	}
	stop, err := strconv.ParseUint(hi, 16, 64)
	if err != nil {
		return 0, 0, err
	}
	return start, stop, nil
}

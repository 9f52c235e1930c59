// Package diag provides shared diagnostics and walk options for metadata
// traversal and SDK emission.
package diag

import "fmt"

// Kind classifies a diagnostic message.
type Kind string

const (
	KindDuplicate  Kind = "duplicate_name"
	KindCycle      Kind = "cycle"
	KindBadAddress Kind = "bad_address"
	KindLagged     Kind = "lagged_offset"
	KindOversize   Kind = "oversize"
	KindSkipped    Kind = "skipped"
)

// Diag records a non-fatal oddity observed in host metadata.
type Diag struct {
	Addr uint64 `json:"addr"`
	Kind Kind   `json:"kind"`
	Msg  string `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Addr, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(addr uint64, kind Kind, msg string) {
	d.items = append(d.items, Diag{Addr: addr, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(addr uint64, kind Kind, format string, args ...any) {
	d.items = append(d.items, Diag{Addr: addr, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Mode controls how the walker treats recoverable metadata oddities. Hard
// read failures abort regardless of mode; the walk is all-or-nothing.
type Mode int

const (
	// ModeStrict turns the first diagnostic into a walk failure.
	ModeStrict Mode = iota
	// ModeBestEffort records diagnostics and keeps walking.
	ModeBestEffort
)

// Options bounds a walk.
type Options struct {
	Mode       Mode
	MaxSteps   int // absolute step budget; 0 = DefaultMaxSteps
	MaxClasses int // visited-set capacity;  0 = DefaultMaxClasses
}

// DefaultMaxSteps bounds total node and list-link visits in one walk.
const DefaultMaxSteps = 4_000_000

// DefaultMaxClasses is sized generously above the class count any supported
// host build reports.
const DefaultMaxClasses = 65536

func (o Options) EffectiveMaxSteps() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return DefaultMaxSteps
}

func (o Options) EffectiveMaxClasses() int {
	if o.MaxClasses > 0 {
		return o.MaxClasses
	}
	return DefaultMaxClasses
}

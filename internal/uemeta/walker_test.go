package uemeta

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Henri-J-Norden/drg-dll/internal/descriptor"
	"github.com/Henri-J-Norden/drg-dll/internal/diag"
)

func walkSynth(t *testing.T, s *synth, opts diag.Options) (*Result, error) {
	t.Helper()
	return Walk(s.image(), profileU427, Params{
		Root:        s.root(),
		HostVersion: "4.27.2",
	}, opts)
}

// buildLinear lays out: Actor (root class, props 4/4/8 at 0/4/8) <- Pawn.
func buildLinear() *synth {
	s := newSynth()

	actor := s.addClass("Actor", 16, 8)
	actor.addProp("Health", 0, 4, 1, 0x03, 0)
	actor.addProp("Armor", 4, 4, 1, 0x03, 0)
	actor.addProp("Owner", 8, 8, 1, 0x05, 0)
	actor.addFunc("TakeDamage", s.base+0x8000, 0,
		synthParam{"Amount", 4, 0x80},
		synthParam{"Result", 1, 0x400},
	)

	pawn := s.addClass("Pawn", 32, 8)
	pawn.setParent(actor)
	pawn.addProp("Speed", 16, 4, 1, 0x03, 0)
	actor.linkNext(pawn)

	s.setClassListHead(actor.addr)
	return s
}

func TestWalkLinearGraph(t *testing.T) {
	res, err := walkSynth(t, buildLinear(), diag.Options{Mode: diag.ModeStrict})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	set := res.Set

	if len(set.Classes) != 2 {
		t.Fatalf("classes = %d, want 2", len(set.Classes))
	}
	actor := set.Classes[0]
	if actor.Name != "Actor" || actor.Parent != -1 {
		t.Errorf("first class = %q parent %d", actor.Name, actor.Parent)
	}
	pawn := set.Classes[1]
	if pawn.Name != "Pawn" || pawn.Parent != 0 {
		t.Errorf("second class = %q parent %d", pawn.Name, pawn.Parent)
	}

	// Natural-alignment scenario: widths 4, 4, 8 land at offsets 0, 4, 8,
	// total size 16, alignment 8.
	wantOffsets := []uint32{0, 4, 8}
	for i, p := range actor.Props {
		if p.Offset != wantOffsets[i] {
			t.Errorf("prop %s offset = %d, want %d", p.Name, p.Offset, wantOffsets[i])
		}
	}
	if actor.Size != 16 || actor.Align != 8 {
		t.Errorf("Actor size/align = %d/%d, want 16/8", actor.Size, actor.Align)
	}

	if len(actor.Funcs) != 1 {
		t.Fatalf("Actor funcs = %d, want 1", len(actor.Funcs))
	}
	fn := actor.Funcs[0]
	if fn.Name != "TakeDamage" || fn.Address != synthBase+0x8000 {
		t.Errorf("func = %q at %#x", fn.Name, fn.Address)
	}
	if len(fn.Params) != 2 || fn.Params[0].Dir != descriptor.DirIn || fn.Params[1].Dir != descriptor.DirReturn {
		t.Errorf("params = %+v", fn.Params)
	}

	if err := set.Validate(descriptor.ExecRange{Start: synthBase, End: synthBase + synthSize}); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestWalkCountMatchesReachable(t *testing.T) {
	s := newSynth()
	var prev *synthClass
	const n = 25
	for i := 0; i < n; i++ {
		c := s.addClass(string(rune('A'+i%26))+"Class", 8, 8)
		if prev == nil {
			s.setClassListHead(c.addr)
		} else {
			prev.linkNext(c)
		}
		prev = c
	}

	res, err := walkSynth(t, s, diag.Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(res.Set.Classes) != n {
		t.Errorf("classes = %d, want %d", len(res.Set.Classes), n)
	}
}

func TestWalkClassListCycle(t *testing.T) {
	s := newSynth()
	a := s.addClass("A", 8, 8)
	b := s.addClass("B", 8, 8)
	a.linkNext(b)
	b.linkNextAddr(a.addr) // cycle back to A
	s.setClassListHead(a.addr)

	res, err := walkSynth(t, s, diag.Options{Mode: diag.ModeBestEffort})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(res.Set.Classes) != 2 {
		t.Errorf("classes = %d, want 2 (cyclic re-entry excluded)", len(res.Set.Classes))
	}
	foundCycle := false
	for _, d := range res.Diags {
		if d.Kind == diag.KindCycle {
			foundCycle = true
		}
	}
	if !foundCycle {
		t.Error("cycle not reported in diags")
	}
}

func TestWalkInheritanceCycle(t *testing.T) {
	s := newSynth()
	a := s.addClass("A", 8, 8)
	b := s.addClass("B", 8, 8)
	a.setParent(b)
	b.setParentAddr(a.addr) // A <-> B
	a.linkNext(b)
	s.setClassListHead(a.addr)

	res, err := walkSynth(t, s, diag.Options{Mode: diag.ModeBestEffort})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(res.Set.Classes) != 2 {
		t.Fatalf("classes = %d, want 2", len(res.Set.Classes))
	}
	// B was discovered first (as A's parent); its own parent link, cycling
	// back to in-progress A, was cut.
	if res.Set.Classes[0].Name != "B" || res.Set.Classes[0].Parent != -1 {
		t.Errorf("B = %+v, want parent -1", res.Set.Classes[0])
	}
	if res.Set.Classes[1].Name != "A" || res.Set.Classes[1].Parent != 0 {
		t.Errorf("A = %+v, want parent 0", res.Set.Classes[1])
	}
}

func TestWalkStepBudgetExhausted(t *testing.T) {
	res, err := walkSynth(t, buildLinear(), diag.Options{MaxSteps: 3})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Walk = %v, want ErrExhausted", err)
	}
	if res != nil {
		t.Error("exhausted walk returned partial results")
	}
}

func TestWalkIdempotent(t *testing.T) {
	s := buildLinear()
	first, err := walkSynth(t, s, diag.Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := walkSynth(t, s, diag.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first.Set.Canonicalize(), second.Set.Canonicalize()); diff != "" {
		t.Errorf("walks differ (-first +second):\n%s", diff)
	}
}

func TestWalkBadFunctionAddress(t *testing.T) {
	build := func() *synth {
		s := newSynth()
		c := s.addClass("Actor", 8, 8)
		c.addFunc("Ghost", 0xdeadbeef00, 0) // outside the image
		s.setClassListHead(c.addr)
		return s
	}

	res, err := walkSynth(t, build(), diag.Options{Mode: diag.ModeBestEffort})
	if err != nil {
		t.Fatalf("best-effort Walk: %v", err)
	}
	if len(res.Set.Classes[0].Funcs) != 0 {
		t.Error("function with out-of-range address was not excluded")
	}
	if len(res.Diags) == 0 {
		t.Error("bad address not reported")
	}

	if _, err := walkSynth(t, build(), diag.Options{Mode: diag.ModeStrict}); err == nil {
		t.Error("strict walk accepted out-of-range function address")
	}
}

func TestWalkEnums(t *testing.T) {
	s := newSynth()
	c := s.addClass("Actor", 8, 8)
	s.setClassListHead(c.addr)

	small := s.addEnum("EState",
		synthVariant{"Idle", 0},
		synthVariant{"Active", 1},
		synthVariant{"EState_MAX", 2},
	)
	wide := s.addEnum("EMask",
		synthVariant{"None", 0},
		synthVariant{"All", 1 << 20},
	)
	empty := s.addEnum("EEmpty")
	s.linkEnums(small, wide, empty)

	res, err := walkSynth(t, s, diag.Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(res.Set.Enums) != 2 {
		t.Fatalf("enums = %d, want 2 (empty excluded)", len(res.Set.Enums))
	}

	state := res.Set.Enums[0]
	if state.Name != "EState" || state.Width != 1 {
		t.Errorf("EState = %+v, want width 1", state)
	}
	if len(state.Variants) != 2 {
		t.Errorf("EState variants = %d, want 2 (autogenerated _MAX trimmed)", len(state.Variants))
	}
	if res.Set.Enums[1].Width != 4 {
		t.Errorf("EMask width = %d, want 4", res.Set.Enums[1].Width)
	}
}

func TestWalkDuplicateClassName(t *testing.T) {
	s := newSynth()
	first := s.addClass("Actor", 16, 8)
	second := s.addClass("Actor", 24, 8)
	first.linkNext(second)
	s.setClassListHead(first.addr)

	res, err := walkSynth(t, s, diag.Options{Mode: diag.ModeBestEffort})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	var dup *diag.Diag
	for i := range res.Diags {
		if res.Diags[i].Kind == diag.KindDuplicate {
			dup = &res.Diags[i]
		}
	}
	if dup == nil {
		t.Fatalf("no duplicate-name diagnostic in %v", res.Diags)
	}
	if dup.Addr != second.addr {
		t.Errorf("diag addr = %#x, want later node %#x", dup.Addr, second.addr)
	}

	// Both nodes survive the walk; canonicalization keeps the later one.
	if len(res.Set.Classes) != 2 {
		t.Fatalf("classes = %d, want 2", len(res.Set.Classes))
	}
	canon := res.Set.Canonicalize()
	if len(canon.Classes) != 1 || canon.Classes[0].Size != 24 {
		t.Errorf("canonical = %+v, want one Actor of size 24", canon.Classes)
	}

	if _, err := walkSynth(t, s, diag.Options{Mode: diag.ModeStrict}); err == nil {
		t.Error("strict walk accepted a duplicate class name")
	}
}

func TestWalkLaggedPropertyOffset(t *testing.T) {
	s := newSynth()
	c := s.addClass("Actor", 16, 8)
	c.addProp("Second", 8, 8, 1, 0x05, 0)
	c.addProp("First", 0, 4, 1, 0x03, 0)
	s.setClassListHead(c.addr)

	res, err := walkSynth(t, s, diag.Options{Mode: diag.ModeBestEffort})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	var lagged bool
	for _, d := range res.Diags {
		if d.Kind == diag.KindLagged {
			lagged = true
		}
	}
	if !lagged {
		t.Errorf("no lagged-offset diagnostic in %v", res.Diags)
	}
	// The field itself is intact, only the list order regressed.
	if got := len(res.Set.Classes[0].Props); got != 2 {
		t.Errorf("props = %d, want both kept", got)
	}
}

func TestWalkRootOutsideImage(t *testing.T) {
	s := newSynth()
	_, err := Walk(s.image(), profileU427, Params{Root: 0x10}, diag.Options{})
	if err == nil {
		t.Error("Walk accepted root pointer outside the image")
	}
}

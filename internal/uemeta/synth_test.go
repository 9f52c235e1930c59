package uemeta

import (
	"encoding/binary"

	"github.com/Henri-J-Norden/drg-dll/internal/memview"
)

// synth builds synthetic metadata images laid out per profileU427, so walker
// tests exercise the same decode paths as a live host.
type synth struct {
	base uint64
	buf  []byte
	next uint64 // allocation offset
}

const (
	synthBase = uint64(0x140000000)
	synthSize = 0x10000

	classNodeSize = 0x30
	propNodeSize  = 0x30
	funcNodeSize  = 0x28
	enumNodeSize  = 0x20
)

func newSynth() *synth {
	return &synth{base: synthBase, buf: make([]byte, synthSize), next: 0x10}
}

func (s *synth) image() *memview.ByteImage {
	return memview.NewByteImage(s.base, s.buf)
}

// root is at the image base: class list head at +0, enum list head at +8.
func (s *synth) root() uint64 { return s.base }

func (s *synth) alloc(n uint64) uint64 {
	addr := s.base + s.next
	s.next = (s.next + n + 7) &^ 7
	return addr
}

func (s *synth) putU32(addr uint64, v uint32) {
	binary.LittleEndian.PutUint32(s.buf[addr-s.base:], v)
}

func (s *synth) putU64(addr uint64, v uint64) {
	binary.LittleEndian.PutUint64(s.buf[addr-s.base:], v)
}

func (s *synth) putU8(addr uint64, v uint8) {
	s.buf[addr-s.base] = v
}

func (s *synth) cstr(v string) uint64 {
	addr := s.alloc(uint64(len(v)) + 1)
	copy(s.buf[addr-s.base:], v)
	return addr
}

func (s *synth) setClassListHead(addr uint64) { s.putU64(s.root(), addr) }
func (s *synth) setEnumListHead(addr uint64)  { s.putU64(s.root()+8, addr) }

type synthClass struct {
	s    *synth
	addr uint64

	lastProp uint64
	lastFunc uint64
}

// addClass allocates a class node. Links (next, parent) start zeroed and are
// wired explicitly by tests.
func (s *synth) addClass(name string, size, align uint32) *synthClass {
	addr := s.alloc(classNodeSize)
	s.putU64(addr+0x00, s.cstr(name))
	s.putU32(addr+0x28, size)
	s.putU32(addr+0x2c, align)
	return &synthClass{s: s, addr: addr}
}

func (c *synthClass) linkNext(next *synthClass) {
	c.s.putU64(c.addr+0x08, next.addr)
}

func (c *synthClass) linkNextAddr(next uint64) {
	c.s.putU64(c.addr+0x08, next)
}

func (c *synthClass) setParent(parent *synthClass) {
	c.s.putU64(c.addr+0x10, parent.addr)
}

func (c *synthClass) setParentAddr(addr uint64) {
	c.s.putU64(c.addr+0x10, addr)
}

// addProp appends a property node to the class's property list.
func (c *synthClass) addProp(name string, offset, width, dim uint32, rawKind uint8, mask uint8) uint64 {
	addr := c.s.alloc(propNodeSize)
	c.s.putU64(addr+0x00, c.s.cstr(name))
	c.s.putU32(addr+0x18, offset)
	c.s.putU32(addr+0x1c, width)
	c.s.putU32(addr+0x20, dim)
	c.s.putU8(addr+0x24, rawKind)
	c.s.putU8(addr+0x25, mask)

	if c.lastProp == 0 {
		c.s.putU64(c.addr+0x18, addr)
	} else {
		c.s.putU64(c.lastProp+0x08, addr)
	}
	c.lastProp = addr
	return addr
}

// addFunc appends a function node; params are (name, width, flags) triples
// encoded as property nodes on the function's parameter list.
func (c *synthClass) addFunc(name string, target uint64, flags uint32, params ...synthParam) uint64 {
	addr := c.s.alloc(funcNodeSize)
	c.s.putU64(addr+0x00, c.s.cstr(name))
	c.s.putU64(addr+0x18, target)
	c.s.putU32(addr+0x20, flags)

	var lastParam uint64
	for _, p := range params {
		pa := c.s.alloc(propNodeSize)
		c.s.putU64(pa+0x00, c.s.cstr(p.name))
		c.s.putU32(pa+0x1c, p.width)
		c.s.putU32(pa+0x20, 1)
		c.s.putU8(pa+0x24, 0x01)
		c.s.putU32(pa+0x28, p.flags)
		if lastParam == 0 {
			c.s.putU64(addr+0x10, pa)
		} else {
			c.s.putU64(lastParam+0x08, pa)
		}
		lastParam = pa
	}

	if c.lastFunc == 0 {
		c.s.putU64(c.addr+0x20, addr)
	} else {
		c.s.putU64(c.lastFunc+0x08, addr)
	}
	c.lastFunc = addr
	return addr
}

type synthParam struct {
	name  string
	width uint32
	flags uint32
}

// addEnum allocates an enum node with the given variants.
func (s *synth) addEnum(name string, variants ...synthVariant) uint64 {
	arr := s.alloc(uint64(len(variants)) * 0x10)
	for i, v := range variants {
		s.putU64(arr+uint64(i)*0x10, s.cstr(v.name))
		s.putU64(arr+uint64(i)*0x10+8, uint64(v.value))
	}
	addr := s.alloc(enumNodeSize)
	s.putU64(addr+0x00, s.cstr(name))
	s.putU64(addr+0x10, arr)
	s.putU32(addr+0x18, uint32(len(variants)))
	return addr
}

func (s *synth) linkEnums(addrs ...uint64) {
	if len(addrs) == 0 {
		return
	}
	s.setEnumListHead(addrs[0])
	for i := 0; i < len(addrs)-1; i++ {
		s.putU64(addrs[i]+0x08, addrs[i+1])
	}
}

type synthVariant struct {
	name  string
	value int64
}

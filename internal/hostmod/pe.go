package hostmod

import (
	"fmt"

	"github.com/Henri-J-Norden/drg-dll/internal/memview"
)

// PE constants needed to walk an already-mapped image's headers.
const (
	dosMagic      = 0x5a4d     // "MZ"
	ntSignature   = 0x00004550 // "PE\0\0"
	pe64Magic     = 0x020b
	scnMemExecute = 0x20000000

	lfanewOff         = 0x3c
	fileHeaderOff     = 4  // after signature
	optionalHeaderOff = 24 // after signature + file header
	sectionHeaderSize = 40
)

// peInfo is what readPE extracts from a mapped image's headers.
type peInfo struct {
	SizeOfImage uint32
	ExecStart   uint64
	ExecEnd     uint64
}

// readPE parses the DOS and NT headers of an image already mapped at
// img.Base(), through the bounded cursor so truncated or corrupt headers fail
// with an error instead of a stray read. The executable range is the union of
// sections flagged executable.
func readPE(img memview.Image) (*peInfo, error) {
	cur := memview.NewCursor(img, img.Base())
	base := img.Base()

	magic, err := cur.U16(base)
	if err != nil {
		return nil, fmt.Errorf("hostmod: dos header: %w", err)
	}
	if magic != dosMagic {
		return nil, fmt.Errorf("hostmod: bad DOS magic %#x", magic)
	}
	lfanew, err := cur.U32(base + lfanewOff)
	if err != nil {
		return nil, fmt.Errorf("hostmod: e_lfanew: %w", err)
	}

	nt := base + uint64(lfanew)
	sig, err := cur.U32(nt)
	if err != nil {
		return nil, fmt.Errorf("hostmod: nt headers: %w", err)
	}
	if sig != ntSignature {
		return nil, fmt.Errorf("hostmod: bad NT signature %#x", sig)
	}

	numSections, err := cur.U16(nt + fileHeaderOff + 2)
	if err != nil {
		return nil, fmt.Errorf("hostmod: section count: %w", err)
	}
	optSize, err := cur.U16(nt + fileHeaderOff + 16)
	if err != nil {
		return nil, fmt.Errorf("hostmod: optional header size: %w", err)
	}

	opt := nt + optionalHeaderOff
	optMagic, err := cur.U16(opt)
	if err != nil {
		return nil, fmt.Errorf("hostmod: optional header: %w", err)
	}
	if optMagic != pe64Magic {
		return nil, fmt.Errorf("hostmod: optional header magic %#x, want PE32+", optMagic)
	}
	sizeOfImage, err := cur.U32(opt + 56)
	if err != nil {
		return nil, fmt.Errorf("hostmod: SizeOfImage: %w", err)
	}

	info := &peInfo{SizeOfImage: sizeOfImage}
	sections := opt + uint64(optSize)
	for i := uint64(0); i < uint64(numSections); i++ {
		sec := sections + i*sectionHeaderSize
		virtSize, err := cur.U32(sec + 8)
		if err != nil {
			return nil, fmt.Errorf("hostmod: section %d: %w", i, err)
		}
		virtAddr, err := cur.U32(sec + 12)
		if err != nil {
			return nil, fmt.Errorf("hostmod: section %d: %w", i, err)
		}
		chars, err := cur.U32(sec + 36)
		if err != nil {
			return nil, fmt.Errorf("hostmod: section %d: %w", i, err)
		}
		if chars&scnMemExecute == 0 {
			continue
		}
		start := base + uint64(virtAddr)
		end := start + uint64(virtSize)
		if info.ExecStart == 0 || start < info.ExecStart {
			info.ExecStart = start
		}
		if end > info.ExecEnd {
			info.ExecEnd = end
		}
	}
	if info.ExecStart == 0 {
		return nil, fmt.Errorf("hostmod: no executable sections")
	}
	return info, nil
}

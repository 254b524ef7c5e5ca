package backtrace

import (
	"fmt"
)

// i386 call encodings the reconstructor recognises
const (
	// CallInsnSize is the length of the common near call, E8 rel32
	CallInsnSize = 5

	// scanWindowSize covers FF 15 disp32, the indirect call through memory
	scanWindowSize = 6

	opcodeCallRel32   = 0xE8
	opcodeGroup5      = 0xFF
	modrmCallIndirect = 0x15
)

// CallShape selects the byte test the frame-pointer walk applies to the five
// bytes before a return address. A failed test ends the walk.
type CallShape int

const (
	// ShapeStrict accepts E8 at byte 0, or FF at both bytes 2 and 3
	ShapeStrict CallShape = iota

	// ShapeLegacy accepts E8 at byte 0, or FF at byte 2, or FF at byte 3
	ShapeLegacy
)

// ParseCallShape maps a configuration name onto a shape
func ParseCallShape(name string) (CallShape, error) {
	switch name {
	case "", "strict":
		return ShapeStrict, nil
	case "legacy":
		return ShapeLegacy, nil
	}
	return ShapeStrict, fmt.Errorf("unknown call shape %q", name)
}

func (s CallShape) String() string {
	switch s {
	case ShapeStrict:
		return "strict"
	case ShapeLegacy:
		return "legacy"
	}
	return fmt.Sprintf("CallShape(%d)", int(s))
}

// Matches applies the shape to the bytes at a candidate call site
func (s CallShape) Matches(insn []byte) bool {
	if len(insn) < CallInsnSize {
		return false
	}
	if insn[0] == opcodeCallRel32 {
		return true
	}
	if s == ShapeLegacy {
		return insn[2] == opcodeGroup5 || insn[3] == opcodeGroup5
	}
	return insn[2] == opcodeGroup5 && insn[3] == opcodeGroup5
}

// scanMatch tests the six bytes starting at candidate for a call ending at
// candidate+6 and returns the address to report
func scanMatch(candidate uint32, insn []byte) (uint32, bool) {
	if insn[1] == opcodeCallRel32 {
		// one byte of slack before a five byte E8 call
		return candidate + 1, true
	}
	if insn[0] == opcodeGroup5 && insn[1] == modrmCallIndirect {
		return candidate, true
	}
	return 0, false
}

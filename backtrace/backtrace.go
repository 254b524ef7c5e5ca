// Package backtrace reconstructs call stacks of a stopped i386 target without
// symbols or disassembly. Two independent strategies are provided; each is
// unreliable alone and they are meant to be read side by side.
package backtrace

import (
	"encoding/binary"

	"crashdump/fault_context"
	"crashdump/process"
)

// DefaultFrameLimit caps the frame-pointer walk
const DefaultFrameLimit = 1000

const wordSize = 4

// Memory is the target read capability; memory_cache.Cache provides it
type Memory interface {
	ReadInto(addr process.ProcessMemoryAddress, buf []byte) error
}

// Regions answers the address-space questions both strategies ask;
// memory_map.Catalog provides it
type Regions interface {
	IsExecutable(addr uint64) bool
	FirstNonWritableAtOrAfter(addr uint64) uint64
}

// Reconstructor runs both strategies against one target
type Reconstructor struct {
	mem        Memory
	regions    Regions
	frameLimit int
	shape      CallShape
}

// Option is a function that configures a Reconstructor
type Option func(*Reconstructor)

func WithFrameLimit(limit int) Option {
	return func(r *Reconstructor) {
		if limit > 0 {
			r.frameLimit = limit
		}
	}
}

func WithCallShape(shape CallShape) Option {
	return func(r *Reconstructor) {
		r.shape = shape
	}
}

func New(mem Memory, regions Regions, options ...Option) *Reconstructor {
	r := &Reconstructor{
		mem:        mem,
		regions:    regions,
		frameLimit: DefaultFrameLimit,
		shape:      ShapeStrict,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// StackBounds returns the plausible stack span [lo, hi): from the word-aligned
// stack pointer up to the first region above it that is not committed read-write.
// lo >= hi means there is no inspectable stack.
func (r *Reconstructor) StackBounds(esp uint32) (lo uint64, hi uint64) {
	lo = uint64(esp &^ (wordSize - 1))
	hi = r.regions.FirstNonWritableAtOrAfter(uint64(esp))
	return lo, hi
}

// StackWords reads the whole stack span as little-endian words in one request
func (r *Reconstructor) StackWords(esp uint32) (uint64, []uint32, error) {
	lo, hi := r.StackBounds(esp)
	if hi <= lo {
		return lo, nil, nil
	}

	buf := make([]byte, (hi-lo)/wordSize*wordSize)
	if err := r.mem.ReadInto(process.ProcessMemoryAddress(lo), buf); err != nil {
		return lo, nil, err
	}

	words := make([]uint32, len(buf)/wordSize)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*wordSize:])
	}
	return lo, words, nil
}

// FramePointerChain follows saved frame pointers from EBP and returns the call
// sites that pass validation, innermost first. Frames whose return address is
// not executable or not readable are skipped; a chain that reaches bytes not
// shaped like a call is considered derailed and ends the walk.
func (r *Reconstructor) FramePointerChain(regs fault_context.Registers) []uint32 {
	var sites []uint32

	esp := uint64(regs.Esp)
	_, stackMax := r.StackBounds(regs.Esp)

	frame := uint64(regs.Ebp)
	var pair [2 * wordSize]byte
	var insn [CallInsnSize]byte

	for i := 0; i < r.frameLimit; i++ {
		// the frame must lie in the stack area
		if frame < esp || frame >= stackMax {
			break
		}

		if err := r.mem.ReadInto(process.ProcessMemoryAddress(frame), pair[:]); err != nil {
			break
		}
		savedFrame := binary.LittleEndian.Uint32(pair[0:])
		returnAddr := binary.LittleEndian.Uint32(pair[wordSize:])

		if uint64(savedFrame) == frame {
			break
		}
		frame = uint64(savedFrame)

		callSite := returnAddr - CallInsnSize
		if !r.regions.IsExecutable(uint64(callSite)) {
			continue
		}
		if err := r.mem.ReadInto(process.ProcessMemoryAddress(callSite), insn[:]); err != nil {
			continue
		}
		if !r.shape.Matches(insn[:]) {
			break
		}

		sites = append(sites, callSite)
	}

	return sites
}

// ScanWords treats every stack word as a potential return address and reports
// the call sites whose bytes look like a call ending right before it. Stale
// words are reported too; nothing is deduplicated.
func (r *Reconstructor) ScanWords(words []uint32) []uint32 {
	var sites []uint32
	var insn [scanWindowSize]byte

	for _, word := range words {
		candidate := word - scanWindowSize
		if !r.regions.IsExecutable(uint64(candidate)) {
			continue
		}
		if err := r.mem.ReadInto(process.ProcessMemoryAddress(candidate), insn[:]); err != nil {
			continue
		}
		if site, ok := scanMatch(candidate, insn[:]); ok {
			sites = append(sites, site)
		}
	}

	return sites
}

// ScanStack reads the stack span above ESP and runs ScanWords over it.
// An unreadable span yields no candidates.
func (r *Reconstructor) ScanStack(esp uint32) []uint32 {
	_, words, err := r.StackWords(esp)
	if err != nil {
		return nil
	}
	return r.ScanWords(words)
}

// Package report renders a crash diagnosis as text. The section order, labels
// and hex widths are relied on by tools that scrape the reports.
package report

import (
	"fmt"
	"io"
	"time"

	"crashdump/fault_context"
	"crashdump/hexdump"
	"crashdump/process"
	"crashdump/process/memory_map"
)

// asctime layout
const timeLayout = "Mon Jan _2 15:04:05 2006"

// Section headers
const (
	HeaderLine          = "Unhandled exception"
	ExceptionHeader     = "Exception Record:"
	ContextHeader       = "Context:"
	FrameChainHeader    = "Backtrace (EBP chain):"
	StackScanHeader     = "Backtrace (potential calls):"
	StackDumpHeader     = "Stack dump:"
	ModulesHeader       = "Modules:"
	MemoryMapHeader     = "Memory map:"
	wordsPerStackLine   = 8
	truncatedModuleLine = "(module list truncated)"
)

// Report holds every fact collected by one diagnostic run
type Report struct {
	Time       time.Time
	Fault      fault_context.Context
	FrameChain []uint32
	StackScan  []uint32
	StackBase  uint64
	StackWords []uint32
	Modules    process.ModuleList
	Regions    []memory_map.MemoryRegion
}

// errWriter remembers the first write error so sections can be written unconditionally
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	ew.err = err
	return n, err
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	fmt.Fprintf(ew, format, args...)
}

// Formatter appends report sections to a writer
type Formatter struct {
	out *errWriter
}

// NewFormatter wraps w
func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{out: &errWriter{w: w}}
}

// Err returns the first write error
func (f *Formatter) Err() error {
	return f.out.err
}

// Write renders the whole report in its fixed section order
func Write(w io.Writer, r *Report) error {
	f := NewFormatter(w)
	f.WriteHeader(r.Time)
	f.WriteSummary(r.Fault.Record)
	f.WriteExceptionRecord(r.Fault.Record)
	f.WriteContext(r.Fault.Registers)
	f.WriteBacktrace(FrameChainHeader, r.Fault.Registers.Eip, r.FrameChain)
	f.WriteBacktrace(StackScanHeader, r.Fault.Registers.Eip, r.StackScan)
	f.WriteStackDump(r.StackBase, r.StackWords)
	f.WriteModules(r.Modules)
	f.WriteMemoryMap(r.Regions)
	return f.Err()
}

// WriteHeader writes the header line and the local and UTC timestamps
func (f *Formatter) WriteHeader(t time.Time) {
	f.out.printf("%s\n", HeaderLine)
	f.out.printf("Date and time (local): %s\n", t.Local().Format(timeLayout))
	f.out.printf("Date and time (UTC): %s\n", t.UTC().Format(timeLayout))
}

// SummaryLine returns the one-line description of an access violation, or
// the empty string for other faults
func SummaryLine(rec fault_context.Record) string {
	write, addr, ok := rec.AccessViolation()
	if !ok {
		return ""
	}
	prefix := "Read from"
	if write {
		prefix = "Write to"
	}
	return fmt.Sprintf("%s location %08X caused an access violation.", prefix, addr)
}

// WriteSummary writes the summary line, if any, and the blank line closing the header block
func (f *Formatter) WriteSummary(rec fault_context.Record) {
	if line := SummaryLine(rec); line != "" {
		f.out.printf("%s\n", line)
	}
	f.out.printf("\n")
}

func (f *Formatter) WriteExceptionRecord(rec fault_context.Record) {
	f.out.printf("%s\n", ExceptionHeader)
	f.out.printf("  ExceptionCode = %08X\n", rec.Code)
	f.out.printf("  ExceptionFlags = %08X\n", rec.Flags)
	f.out.printf("  ExceptionAddress = %08X\n", rec.Address)
	for i, param := range rec.Parameters {
		f.out.printf("  ExceptionInformation[%d] = %08X\n", i, param)
	}
	f.out.printf("\n")
}

func (f *Formatter) WriteContext(regs fault_context.Registers) {
	f.out.printf("%s\n", ContextHeader)
	f.out.printf("EIP=%08X EFLAGS=%08X\n", regs.Eip, regs.EFlags)
	f.out.printf("EAX=%08X EBX=%08X ECX=%08X EDX=%08X\n", regs.Eax, regs.Ebx, regs.Ecx, regs.Edx)
	f.out.printf("ESP=%08X EBP=%08X ESI=%08X EDI=%08X\n", regs.Esp, regs.Ebp, regs.Esi, regs.Edi)
	f.out.printf("\n")
}

// WriteBacktrace writes a backtrace section: the faulting EIP followed by the call sites
func (f *Formatter) WriteBacktrace(header string, eip uint32, sites []uint32) {
	f.out.printf("%s\n", header)
	f.out.printf("%08X\n", eip)
	for _, site := range sites {
		f.out.printf("%08X\n", site)
	}
	f.out.printf("\n")
}

func (f *Formatter) WriteStackDump(base uint64, words []uint32) {
	f.out.printf("%s\n", StackDumpHeader)
	options := hexdump.DefaultOptions()
	options.WordsPerLine = wordsPerStackLine
	options.StartAddress = base
	hexdump.DumpWordsToWriter(f.out, words, options)
	f.out.printf("\n")
}

func (f *Formatter) WriteModules(list process.ModuleList) {
	f.out.printf("%s\n", ModulesHeader)
	for _, module := range list.Modules {
		f.out.printf("%08X - %08X: %s\n", uint64(module.Base), uint64(module.End()), module.Path)
	}
	if list.Truncated {
		f.out.printf("%s\n", truncatedModuleLine)
	}
	f.out.printf("\n")
}

func (f *Formatter) WriteMemoryMap(regions []memory_map.MemoryRegion) {
	f.out.printf("%s\n", MemoryMapHeader)
	for _, region := range regions {
		f.out.printf("%08X: State %08X Protect %08X Type %08X RegionSize %08X\n",
			region.Address, uint32(region.State), uint32(region.Protect), uint32(region.Type), region.Size)
	}
	f.out.printf("\n")
}

package report

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"crashdump/fault_context"
	"crashdump/process"
	"crashdump/process/memory_map"
)

func sampleReport() *Report {
	return &Report{
		Time: time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC),
		Fault: fault_context.Context{
			Record: fault_context.Record{
				Code:       fault_context.ExceptionAccessViolation,
				Address:    0x00401234,
				Parameters: []uint32{1, 0x12345678},
			},
			Registers: fault_context.Registers{
				Eip: 0x00401234, EFlags: 0x246,
				Eax: 0xA, Ebx: 0xB, Ecx: 0xC, Edx: 0xD,
				Esp: 0x0012FF00, Ebp: 0x0012FF40, Esi: 0xE, Edi: 0xF,
			},
		},
		FrameChain: []uint32{0x401100, 0x401200},
		StackScan:  []uint32{0x401100},
		StackBase:  0x0012FF00,
		StackWords: []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		Modules: process.NewModuleList([]process.ModuleInfo{
			{Base: 0x10000000, Size: 0x5000, Path: `C:\Windows\System32\b.dll`},
			{Base: 0x00400000, Size: 0x2000, Path: `C:\game\a.exe`},
		}, 0),
		Regions: []memory_map.MemoryRegion{
			{Address: 0x10000, Size: 0x1000, State: memory_map.MemCommit, Protect: memory_map.PageExecuteRead, Type: memory_map.MemImage},
			{Address: 0x11000, Size: 0x1000, State: memory_map.MemFree, Protect: memory_map.PageNoAccess},
		},
	}
}

func TestSummaryLine(t *testing.T) {
	rec := fault_context.Record{Code: fault_context.ExceptionAccessViolation, Parameters: []uint32{1, 0x12345678}}
	if got, want := SummaryLine(rec), "Write to location 12345678 caused an access violation."; got != want {
		t.Errorf("SummaryLine = %q, want %q", got, want)
	}

	rec.Parameters = []uint32{0, 0xABC}
	if got, want := SummaryLine(rec), "Read from location 00000ABC caused an access violation."; got != want {
		t.Errorf("SummaryLine = %q, want %q", got, want)
	}

	rec.Code = 0xC0000094
	if got := SummaryLine(rec); got != "" {
		t.Errorf("SummaryLine for non access violation = %q", got)
	}
}

func TestWriteSectionOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	order := []string{
		HeaderLine,
		"Date and time (UTC): Tue Mar  5 14:07:09 2024",
		"Write to location 12345678 caused an access violation.",
		ExceptionHeader,
		"  ExceptionCode = C0000005",
		"  ExceptionInformation[1] = 12345678",
		ContextHeader,
		"EIP=00401234 EFLAGS=00000246",
		"EAX=0000000A EBX=0000000B ECX=0000000C EDX=0000000D",
		"ESP=0012FF00 EBP=0012FF40 ESI=0000000E EDI=0000000F",
		FrameChainHeader + "\n00401234\n00401100\n00401200\n\n",
		StackScanHeader + "\n00401234\n00401100\n\n",
		StackDumpHeader + "\n0012FF00: 00000001 00000002 00000003 00000004 00000005 00000006 00000007 00000008\n0012FF20: 00000009 0000000A\n\n",
		ModulesHeader + "\n00400000 - 00402000: C:\\game\\a.exe\n10000000 - 10005000: C:\\Windows\\System32\\b.dll\n\n",
		MemoryMapHeader + "\n00010000: State 00001000 Protect 00000020 Type 01000000 RegionSize 00001000\n" +
			"00011000: State 00010000 Protect 00000001 Type 00000000 RegionSize 00001000\n\n",
	}

	pos := 0
	for _, want := range order {
		i := strings.Index(out[pos:], want)
		if i < 0 {
			t.Fatalf("%q not found after offset %d in:\n%s", want, pos, out)
		}
		pos += i + len(want)
	}
	if pos != len(out) {
		t.Errorf("trailing output after memory map: %q", out[pos:])
	}
}

func TestEmptySectionsKeepHeaders(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, &Report{Time: time.Unix(0, 0)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	for _, header := range []string{StackDumpHeader, ModulesHeader, MemoryMapHeader} {
		if !strings.Contains(out, header+"\n\n") {
			t.Errorf("empty %q section missing or not followed by a blank line", header)
		}
	}
	if !strings.Contains(out, FrameChainHeader+"\n00000000\n\n") {
		t.Errorf("empty backtrace section malformed:\n%s", out)
	}
	if strings.Contains(out, "access violation") {
		t.Errorf("summary written for an empty record")
	}
}

func TestModulesTruncated(t *testing.T) {
	list := process.NewModuleList([]process.ModuleInfo{
		{Base: 0x3000, Size: 0x1000, Path: "c"},
		{Base: 0x1000, Size: 0x1000, Path: "a"},
		{Base: 0x2000, Size: 0x1000, Path: "b"},
	}, 2)

	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.WriteModules(list)
	want := ModulesHeader + "\n00001000 - 00002000: a\n00002000 - 00003000: b\n(module list truncated)\n\n"
	if buf.String() != want {
		t.Errorf("WriteModules = %q, want %q", buf.String(), want)
	}
}

func TestStackDumpRoundTrip(t *testing.T) {
	r := sampleReport()
	r.StackWords = make([]uint32, 100)
	for i := range r.StackWords {
		r.StackWords[i] = 0xFFFFFFFF - uint32(i)*0x01020304
	}

	var buf bytes.Buffer
	if err := Write(&buf, r); err != nil {
		t.Fatalf("Write: %v", err)
	}

	base, words, err := ParseStackDump(&buf)
	if err != nil {
		t.Fatalf("ParseStackDump: %v", err)
	}
	if base != r.StackBase {
		t.Errorf("base = %X, want %X", base, r.StackBase)
	}
	if !reflect.DeepEqual(words, r.StackWords) {
		t.Errorf("words differ after round trip")
	}
}

type failingWriter struct {
	writes int
}

var errDiskFull = errors.New("disk full")

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > 3 {
		return 0, errDiskFull
	}
	return len(p), nil
}

func TestWriteReportsFirstError(t *testing.T) {
	w := &failingWriter{}
	if err := Write(w, sampleReport()); !errors.Is(err, errDiskFull) {
		t.Fatalf("Write err = %v, want %v", err, errDiskFull)
	}
	if w.writes != 4 {
		t.Errorf("writes after failure = %d, want none", w.writes-4)
	}
}

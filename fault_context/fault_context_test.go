package fault_context_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"crashdump/fault_context"
	"crashdump/memory_cache"
	"crashdump/process"
	"crashdump/process/memory_map"
	"crashdump/process_blob"
)

const (
	dataBase    = 0x00400000
	pointersAt  = dataBase
	recordAt    = dataBase + 0x100
	contextAt   = dataBase + 0x200
	unmappedPtr = 0x00300000
)

func mustPack(t *testing.T) func([]byte, error) []byte {
	return func(b []byte, err error) []byte {
		t.Helper()
		if err != nil {
			t.Fatalf("pack: %v", err)
		}
		return b
	}
}

// fabricate lays out a notification, record and context in one data page
func fabricate(t *testing.T, recordPtr, contextPtr uint32, rec fault_context.Record, regs fault_context.Registers) *process_blob.ProcessDump {
	t.Helper()
	must := mustPack(t)
	page := make([]byte, 0x1000)
	copy(page[pointersAt-dataBase:], must(fault_context.PackPointers(recordPtr, contextPtr)))
	copy(page[recordAt-dataBase:], must(rec.Pack()))
	copy(page[contextAt-dataBase:], must(regs.Pack()))

	dump := process_blob.NewProcessDump()
	dump.AddRegion(memory_map.MemoryRegion{
		Address: dataBase,
		Size:    0x1000,
		State:   memory_map.MemCommit,
		Protect: memory_map.PageReadWrite,
		Type:    memory_map.MemPrivate,
	}, page)
	return dump
}

var sampleRegisters = fault_context.Registers{
	Eip: 0x00401234, EFlags: 0x00010246,
	Eax: 1, Ebx: 2, Ecx: 3, Edx: 4,
	Esp: 0x0012FF00, Ebp: 0x0012FF40, Esi: 7, Edi: 8,
	SegCs: 0x1B, SegDs: 0x23, SegEs: 0x23, SegFs: 0x3B, SegGs: 0, SegSs: 0x23,
	Dr7: 0x400,
}

var sampleRecord = fault_context.Record{
	Code:       fault_context.ExceptionAccessViolation,
	Flags:      0,
	Address:    0x00401234,
	Parameters: []uint32{1, 0x12345678},
}

func TestExtract(t *testing.T) {
	dump := fabricate(t, recordAt, contextAt, sampleRecord, sampleRegisters)

	ctx, err := fault_context.Extract(memory_cache.New(dump), pointersAt)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if ctx.Registers != sampleRegisters {
		t.Errorf("Registers = %+v, want %+v", ctx.Registers, sampleRegisters)
	}
	if ctx.Record.Code != sampleRecord.Code || ctx.Record.Address != sampleRecord.Address {
		t.Errorf("Record = %+v", ctx.Record)
	}
	if len(ctx.Record.Parameters) != 2 || ctx.Record.Parameters[1] != 0x12345678 {
		t.Errorf("Parameters = %X", ctx.Record.Parameters)
	}

	write, addr, ok := ctx.Record.AccessViolation()
	if !ok || !write || addr != 0x12345678 {
		t.Errorf("AccessViolation() = %v, %X, %v", write, addr, ok)
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name         string
		notification process.ProcessMemoryAddress
		recordPtr    uint32
		contextPtr   uint32
	}{
		{"notification unreadable", unmappedPtr, recordAt, contextAt},
		{"context unreadable", pointersAt, recordAt, unmappedPtr},
		{"record unreadable", pointersAt, unmappedPtr, contextAt},
		{"context runs off the page", pointersAt, recordAt, dataBase + 0xF00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dump := fabricate(t, tt.recordPtr, tt.contextPtr, sampleRecord, sampleRegisters)
			_, err := fault_context.Extract(memory_cache.New(dump), tt.notification)
			if !errors.Is(err, fault_context.ErrFaultContextUnavailable) {
				t.Fatalf("err = %v, want ErrFaultContextUnavailable", err)
			}
		})
	}
}

func TestExtractClampsParameterCount(t *testing.T) {
	dump := fabricate(t, recordAt, contextAt, sampleRecord, sampleRegisters)

	// NumberParameters lives at offset 16 of the record
	binary.LittleEndian.PutUint32(dump.Blobs[dataBase][recordAt-dataBase+16:], 40)

	ctx, err := fault_context.Extract(memory_cache.New(dump), pointersAt)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(ctx.Record.Parameters) != fault_context.MaximumParameters {
		t.Errorf("len(Parameters) = %d, want %d", len(ctx.Record.Parameters), fault_context.MaximumParameters)
	}
}

func TestAccessViolationKinds(t *testing.T) {
	tests := []struct {
		rec   fault_context.Record
		write bool
		ok    bool
	}{
		{fault_context.Record{Code: fault_context.ExceptionAccessViolation, Parameters: []uint32{0, 0x10}}, false, true},
		{fault_context.Record{Code: fault_context.ExceptionAccessViolation, Parameters: []uint32{8, 0x10}}, true, true},
		{fault_context.Record{Code: fault_context.ExceptionAccessViolation, Parameters: []uint32{1}}, false, false},
		{fault_context.Record{Code: 0xC0000094, Parameters: []uint32{1, 0x10}}, false, false},
	}
	for i, tt := range tests {
		write, _, ok := tt.rec.AccessViolation()
		if write != tt.write || ok != tt.ok {
			t.Errorf("%d: AccessViolation() = %v, %v, want %v, %v", i, write, ok, tt.write, tt.ok)
		}
	}
}

func TestPackSizes(t *testing.T) {
	must := mustPack(t)
	if b := must(fault_context.PackPointers(1, 2)); len(b) != fault_context.ExceptionPointersSize {
		t.Errorf("pointers: %d bytes", len(b))
	}
	if b := must(sampleRecord.Pack()); len(b) != fault_context.ExceptionRecordSize {
		t.Errorf("record: %d bytes", len(b))
	}
	if b := must(sampleRegisters.Pack()); len(b) != fault_context.ContextSize {
		t.Errorf("context: %d bytes", len(b))
	}

	tooMany := fault_context.Record{Parameters: make([]uint32, fault_context.MaximumParameters+1)}
	if _, err := tooMany.Pack(); err == nil {
		t.Errorf("Pack with %d parameters succeeded", len(tooMany.Parameters))
	}
}

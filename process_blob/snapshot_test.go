package process_blob

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"crashdump/process"
	"crashdump/process/memory_map"
)

func sampleDump() *ProcessDump {
	dump := NewProcessDump()
	dump.PID = 4242
	dump.Name = "game.exe"
	dump.FaultPointer = 0x0012FA00

	code := bytes.Repeat([]byte{0x90}, 0x1000)
	stack := make([]byte, 0x2000)
	for i := range stack {
		stack[i] = stackByte(i)
	}

	dump.AddRegion(memory_map.MemoryRegion{Address: 0x0012E000, Size: 0x2000, State: memory_map.MemCommit, Protect: memory_map.PageReadWrite, Type: memory_map.MemPrivate}, stack)
	dump.AddRegion(memory_map.MemoryRegion{Address: 0x00401000, Size: 0x1000, State: memory_map.MemCommit, Protect: memory_map.PageExecuteRead, Type: memory_map.MemImage}, code)
	dump.AddRegion(memory_map.MemoryRegion{Address: 0x00130000, Size: 0x1000, State: memory_map.MemCommit, Protect: memory_map.PageNoAccess, Type: memory_map.MemPrivate}, nil)
	dump.AddModule(process.ModuleInfo{Base: 0x00400000, Size: 0x3000, Path: `C:\game\game.exe`})
	return dump
}

func stackByte(offset int) byte {
	return byte(offset * 7)
}

func TestAddRegionKeepsOrder(t *testing.T) {
	dump := sampleDump()
	for i := 1; i < len(dump.MemoryMap); i++ {
		if dump.MemoryMap[i-1].Address >= dump.MemoryMap[i].Address {
			t.Fatalf("memory map not sorted: %v", dump.MemoryMap)
		}
	}
}

func TestReadMemory(t *testing.T) {
	dump := sampleDump()

	data, err := dump.ReadMemory(0x0012EFFE, 4)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	want := []byte{stackByte(0xFFE), stackByte(0xFFF), stackByte(0x1000), stackByte(0x1001)}
	if !bytes.Equal(data, want) {
		t.Errorf("ReadMemory = %X, want %X", data, want)
	}

	if _, err := dump.ReadMemory(0x0012FFFE, 4); err == nil {
		t.Errorf("read into a region without data succeeded")
	}
	if _, err := dump.ReadMemory(0x00200000, 4); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Errorf("read of unmapped address err = %v", err)
	}
}

func TestQueryRegionPartitionsAddressSpace(t *testing.T) {
	dump := sampleDump()
	catalog := memory_map.BuildCatalog(dump)

	var total uint64
	for _, r := range catalog.Regions() {
		total += r.Size
	}
	if min, max := dump.AddressEnvelope(); total != max+1-min {
		t.Errorf("regions cover %X bytes, want %X", total, max+1-min)
	}
	if !catalog.IsExecutable(0x00401800) {
		t.Errorf("code page not executable")
	}
}

func TestSaveLoad(t *testing.T) {
	for _, compressed := range []bool{true, false} {
		dir := t.TempDir()
		dump := sampleDump()
		dump.Compressed = compressed
		if err := dump.Save(dir); err != nil {
			t.Fatalf("Save: %v", err)
		}

		suffix := ".bin"
		if compressed {
			suffix = ".bin.sz"
		}
		if _, err := os.Stat(filepath.Join(dir, "blob_0x401000_4096"+suffix)); err != nil {
			t.Errorf("blob file missing: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "blob_0x130000_4096"+suffix)); !os.IsNotExist(err) {
			t.Errorf("blob written for a region without data")
		}

		loaded, err := LoadProcessDump(dir)
		if err != nil {
			t.Fatalf("LoadProcessDump: %v", err)
		}
		if loaded.Metadata != dump.Metadata {
			t.Errorf("metadata = %+v, want %+v", loaded.Metadata, dump.Metadata)
		}
		if len(loaded.MemoryMap) != 3 || len(loaded.Blobs) != 2 || len(loaded.ModuleList) != 1 {
			t.Fatalf("loaded %d regions, %d blobs, %d modules", len(loaded.MemoryMap), len(loaded.Blobs), len(loaded.ModuleList))
		}
		for addr, blob := range dump.Blobs {
			if !bytes.Equal(loaded.Blobs[addr], blob) {
				t.Errorf("blob %X differs after reload", addr)
			}
		}
	}
}

func TestCapture(t *testing.T) {
	source := sampleDump()
	dir := t.TempDir()

	err := Capture(source, dir, SaveOptions{FaultPointer: 0x0012FA00, Name: "game.exe", Compress: true})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	loaded, err := LoadProcessDump(dir)
	if err != nil {
		t.Fatalf("LoadProcessDump: %v", err)
	}
	if loaded.PID != 4242 || loaded.FaultPointer != 0x0012FA00 || !loaded.Compressed {
		t.Errorf("metadata = %+v", loaded.Metadata)
	}

	// free gaps are not recorded, the no-access page is recorded without data
	if len(loaded.MemoryMap) != 3 {
		t.Fatalf("captured %d regions, want 3: %v", len(loaded.MemoryMap), loaded.MemoryMap)
	}
	if _, ok := loaded.Blobs[0x00130000]; ok {
		t.Errorf("no-access region has data")
	}

	want, _ := source.ReadMemory(0x0012E000, 0x2000)
	got, err := loaded.ReadMemory(0x0012E000, 0x2000)
	if err != nil || !bytes.Equal(got, want) {
		t.Errorf("stack differs after capture: %v", err)
	}
}

func TestLoadRejectsTruncatedBlob(t *testing.T) {
	dir := t.TempDir()
	dump := sampleDump()
	if err := dump.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "blob_0x401000_4096.bin"), []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProcessDump(dir); err == nil {
		t.Errorf("LoadProcessDump accepted a short blob")
	}
}

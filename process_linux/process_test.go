//go:build linux

package process_linux

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"unsafe"

	"crashdump/process"
	"crashdump/process/memory_map"
)

const sampleMaps = `00400000-00401000 r--p 00000000 08:01 10 /usr/bin/target
00401000-00405000 r-xp 00001000 08:01 10 /usr/bin/target
00605000-00606000 rw-p 00005000 08:01 10 /usr/bin/target
01000000-01021000 rw-p 00000000 00:00 0 [heap]
7f0000000000-7f0000010000 r--p 00000000 08:01 20 /usr/share/locale/archive
7f0000100000-7f0000180000 r-xp 00000000 08:01 30 /usr/lib/libc.so.6
7f0000180000-7f0000190000 rw-p 00080000 08:01 30 /usr/lib/libc.so.6
`

func TestModulesOf(t *testing.T) {
	mm, err := memory_map.ParseMemoryMap(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatalf("ParseMemoryMap: %v", err)
	}

	modules := modulesOf(mm)
	if len(modules) != 2 {
		t.Fatalf("modules = %v, want target and libc", modules)
	}
	if modules[0].Path != "/usr/bin/target" || modules[0].Base != 0x400000 || modules[0].End() != 0x606000 {
		t.Errorf("modules[0] = %v", modules[0])
	}
	if modules[1].Path != "/usr/lib/libc.so.6" || modules[1].Base != 0x7f0000100000 || modules[1].Size != 0x90000 {
		t.Errorf("modules[1] = %v", modules[1])
	}
}

func TestRegionsOfPartition(t *testing.T) {
	mm, err := memory_map.ParseMemoryMap(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatalf("ParseMemoryMap: %v", err)
	}

	regions := regionsOf(mm)
	r, ok := memory_map.DescribeAt(regions, 0x402345, maxApplicationAddress)
	if !ok || r.Address != 0x402000 || r.End() != 0x405000 || r.Protect != memory_map.PageExecuteRead || r.Type != memory_map.MemImage {
		t.Errorf("DescribeAt(code) = %v, %v", r, ok)
	}
	r, ok = memory_map.DescribeAt(regions, 0x500000, maxApplicationAddress)
	if !ok || r.State != memory_map.MemFree || r.End() != 0x605000 {
		t.Errorf("DescribeAt(gap) = %v, %v", r, ok)
	}
}

func TestOpenSelf(t *testing.T) {
	p, err := NewWithPID(process.ProcessID(os.Getpid()))
	if err != nil {
		t.Fatalf("NewWithPID: %v", err)
	}
	defer p.Close()

	local := bytes.Repeat([]byte("crashdump"), 100)
	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&local[0])))

	if err := p.UpdateMemoryMap(); err != nil {
		t.Fatalf("UpdateMemoryMap: %v", err)
	}
	data, err := p.ReadMemory(addr, process.ProcessMemorySize(len(local)))
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if !bytes.Equal(data, local) {
		t.Errorf("ReadMemory returned different bytes")
	}

	region, err := p.QueryRegion(uint64(addr))
	if err != nil || !region.Contains(uint64(addr)) || !region.IsReadable() {
		t.Errorf("QueryRegion = %v, %v", region, err)
	}

	if _, err := p.ReadMemory(0x1000, 4); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Errorf("ReadMemory(0x1000) err = %v", err)
	}

	modules, err := p.Modules()
	if err != nil || len(modules) == 0 {
		t.Errorf("Modules() = %v, %v", modules, err)
	}
}

func TestPIDByName(t *testing.T) {
	if _, err := PIDByName(""); err == nil {
		t.Errorf("PIDByName(\"\") succeeded")
	}
	if _, err := PIDByName("no-such-process-crashdump"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("PIDByName(missing) err = %v", err)
	}
}

package process_blob

import (
	"fmt"
	"sort"

	"crashdump/process"
	"crashdump/process/memory_map"
)

// Metadata is the identifying part of a snapshot
type Metadata struct {
	PID          process.ProcessID            `json:"pid"`
	Name         string                       `json:"name"`
	FaultPointer process.ProcessMemoryAddress `json:"fault_pointer"`
	MinAddress   uint64                       `json:"min_address"`
	MaxAddress   uint64                       `json:"max_address"`
	Compressed   bool                         `json:"compressed"`
}

// ProcessDump implements process.Process for a captured or fabricated target
type ProcessDump struct {
	Metadata
	MemoryMap  []memory_map.MemoryRegion
	ModuleList []process.ModuleInfo
	Blobs      map[uint64][]byte // Address -> Data
}

var _ process.Process = (*ProcessDump)(nil)

// NewProcessDump creates an empty dump covering the 32-bit user address space
func NewProcessDump() *ProcessDump {
	return &ProcessDump{
		Metadata: Metadata{
			MinAddress: 0x10000,
			MaxAddress: 0x7FFEFFFF,
		},
		Blobs: make(map[uint64][]byte),
	}
}

// AddRegion records a region. data holds its contents, nil for a region whose
// contents are unavailable; it is padded or cut to the region size.
func (p *ProcessDump) AddRegion(region memory_map.MemoryRegion, data []byte) {
	i := sort.Search(len(p.MemoryMap), func(i int) bool {
		return p.MemoryMap[i].Address >= region.Address
	})
	if i < len(p.MemoryMap) && p.MemoryMap[i].Address == region.Address {
		p.MemoryMap[i] = region
	} else {
		p.MemoryMap = append(p.MemoryMap, memory_map.MemoryRegion{})
		copy(p.MemoryMap[i+1:], p.MemoryMap[i:])
		p.MemoryMap[i] = region
	}

	if data == nil {
		delete(p.Blobs, region.Address)
		return
	}
	blob := make([]byte, region.Size)
	copy(blob, data)
	p.Blobs[region.Address] = blob
}

// AddModule records a loaded module
func (p *ProcessDump) AddModule(module process.ModuleInfo) {
	p.ModuleList = append(p.ModuleList, module)
}

func (p *ProcessDump) Close() error {
	p.Blobs = nil
	p.MemoryMap = nil
	p.ModuleList = nil
	return nil
}

func (p *ProcessDump) GetPID() process.ProcessID {
	return p.PID
}

func (p *ProcessDump) AddressEnvelope() (uint64, uint64) {
	return p.MinAddress, p.MaxAddress
}

func (p *ProcessDump) QueryRegion(addr uint64) (memory_map.MemoryRegion, error) {
	region, ok := memory_map.DescribeAt(p.MemoryMap, addr, p.MaxAddress)
	if !ok {
		return memory_map.MemoryRegion{}, process.ErrEndOfAddressSpace
	}
	return region, nil
}

func (p *ProcessDump) Modules() ([]process.ModuleInfo, error) {
	result := make([]process.ModuleInfo, len(p.ModuleList))
	copy(result, p.ModuleList)
	return result, nil
}

func (p *ProcessDump) regionFor(addr uint64) *memory_map.MemoryRegion {
	i := sort.Search(len(p.MemoryMap), func(i int) bool {
		return p.MemoryMap[i].End() > addr
	})
	if i < len(p.MemoryMap) && p.MemoryMap[i].Address <= addr {
		return &p.MemoryMap[i]
	}
	return nil
}

// ReadMemory copies size bytes starting at addr. Reads may cross adjacent
// regions but fail as a whole if any byte has no captured data.
func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	result := make([]byte, size)

	start := uint64(addr)
	end := start + uint64(size)
	if end < start {
		return nil, process.ErrInvalidPointer
	}

	for cur := start; cur < end; {
		// Find the region containing the address
		region := p.regionFor(cur)
		if region == nil {
			return nil, process.ErrAddressNotMapped
		}

		// Check if we have data for this region
		data, ok := p.Blobs[region.Address]
		if !ok {
			return nil, fmt.Errorf("no data for region 0x%x", region.Address)
		}

		offset := cur - region.Address
		if offset >= uint64(len(data)) {
			return nil, fmt.Errorf("address 0x%x out of bounds of region data", cur)
		}

		n := copy(result[cur-start:], data[offset:])
		cur += uint64(n)
	}

	return result, nil
}

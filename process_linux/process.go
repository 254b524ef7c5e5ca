//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"crashdump/process"
	"crashdump/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	// lowest address a mapping may start at (default vm.mmap_min_addr)
	minApplicationAddress = 0x10000

	// top of the 47-bit user address space
	maxApplicationAddress = 0x7FFFFFFFFFFF
)

// LinuxProcess implements the process.Process interface for Linux systems
type LinuxProcess struct {
	pid process.ProcessID
	log *logger.Logger
	mm  []memory_map.MemoryMapItem
	mu  sync.Mutex
}

var _ process.Process = (*LinuxProcess)(nil)

// New creates a new LinuxProcess instance
func New() *LinuxProcess {
	return &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*LinuxProcess, error) {
	p := New()
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Open attaches to pid and snapshots its memory map. The target should
// already be stopped; the map is not refreshed afterwards.
func (p *LinuxProcess) Open(pid process.ProcessID) error {
	// Check if process exists
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d does not exist", pid)
	}

	p.mu.Lock()
	p.pid = pid
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened")

	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.Infoln("Closing process")

	// Reset process state
	p.pid = 0
	p.mm = nil

	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// UpdateMemoryMap rereads /proc/[pid]/maps
func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.NewLinuxMemoryMap().ReadMemoryMap(int(p.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	// region lookups require the memory map to be sorted by address
	sort.Slice(mm, func(i, j int) bool {
		return mm[i].Address < mm[j].Address
	})

	p.mm = mm
	return nil
}

// GetMemoryMap returns a copy of the current memory map
func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

func (p *LinuxProcess) AddressEnvelope() (uint64, uint64) {
	return minApplicationAddress, maxApplicationAddress
}

// QueryRegion describes the mapping containing addr, or the unmapped gap
// around it, starting at addr's page
func (p *LinuxProcess) QueryRegion(addr uint64) (memory_map.MemoryRegion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return memory_map.MemoryRegion{}, process.ErrProcessNotOpen
	}

	region, ok := memory_map.DescribeAt(regionsOf(p.mm), addr, maxApplicationAddress)
	if !ok {
		return memory_map.MemoryRegion{}, process.ErrEndOfAddressSpace
	}
	return region, nil
}

// Modules reports every file-backed executable image with the span of all its mappings
func (p *LinuxProcess) Modules() ([]process.ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	return modulesOf(p.mm), nil
}

func regionsOf(mm []memory_map.MemoryMapItem) []memory_map.MemoryRegion {
	regions := make([]memory_map.MemoryRegion, len(mm))
	for i, item := range mm {
		regions[i] = item.Region()
	}
	return regions
}

// modulesOf groups file-backed mappings by path. Only files with at least one
// executable mapping count as modules.
func modulesOf(mm []memory_map.MemoryMapItem) []process.ModuleInfo {
	type span struct {
		start, end uint64
		exec       bool
	}
	spans := make(map[string]*span)
	var order []string

	for _, item := range mm {
		if !item.IsFileBacked() {
			continue
		}
		end := item.Address + uint64(item.Size)
		s, ok := spans[item.Path]
		if !ok {
			s = &span{start: item.Address, end: end}
			spans[item.Path] = s
			order = append(order, item.Path)
		}
		if item.Address < s.start {
			s.start = item.Address
		}
		if end > s.end {
			s.end = end
		}
		if memory_map.IsExecutablePerms(item.Perms) {
			s.exec = true
		}
	}

	var modules []process.ModuleInfo
	for _, path := range order {
		s := spans[path]
		if !s.exec {
			continue
		}
		modules = append(modules, process.ModuleInfo{
			Base: process.ProcessMemoryAddress(s.start),
			Size: process.ProcessMemorySize(s.end - s.start),
			Path: path,
		})
	}
	return modules
}

// isReadableAddress assumes the mutex is held
func (p *LinuxProcess) isReadableAddress(addr process.ProcessMemoryAddress) bool {
	if addr < minApplicationAddress || addr > maxApplicationAddress {
		return false
	}

	i := sort.Search(len(p.mm), func(i int) bool {
		return p.mm[i].Address+uint64(p.mm[i].Size) > uint64(addr)
	})
	if i < len(p.mm) && p.mm[i].Address <= uint64(addr) {
		return memory_map.IsReadablePerms(p.mm[i].Perms)
	}
	return false
}

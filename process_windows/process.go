//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"crashdump/process"
	"crashdump/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

var (
	modkernel32       = windows.NewLazySystemDLL("kernel32.dll")
	procGetSystemInfo = modkernel32.NewProc("GetSystemInfo")
)

// systemInfo mirrors SYSTEM_INFO
type systemInfo struct {
	ProcessorArchitecture     uint16
	Reserved                  uint16
	PageSize                  uint32
	MinimumApplicationAddress uintptr
	MaximumApplicationAddress uintptr
	ActiveProcessorMask       uintptr
	NumberOfProcessors        uint32
	ProcessorType             uint32
	AllocationGranularity     uint32
	ProcessorLevel            uint16
	ProcessorRevision         uint16
}

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	log    *logger.Logger
	mu     sync.Mutex

	minAddress uint64
	maxAddress uint64
}

var _ process.Process = (*WindowsProcess)(nil)

// New creates a new WindowsProcess instance
func New() *WindowsProcess {
	return &WindowsProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*WindowsProcess, error) {
	p := New()
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Open acquires a query and read handle; nothing is ever written to the target
func (p *WindowsProcess) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess failed: %w", err)
	}

	var si systemInfo
	procGetSystemInfo.Call(uintptr(unsafe.Pointer(&si)))

	p.pid = pid
	p.handle = handle
	p.minAddress = uint64(si.MinimumApplicationAddress)
	p.maxAddress = uint64(si.MaximumApplicationAddress)
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))

	p.log.Infoln("Process opened", "min", fmt.Sprintf("%08X", p.minAddress), "max", fmt.Sprintf("%08X", p.maxAddress))
	return nil
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		if err := windows.CloseHandle(p.handle); err != nil {
			return fmt.Errorf("CloseHandle failed: %w", err)
		}
		p.handle = 0
	}

	p.pid = 0
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *WindowsProcess) AddressEnvelope() (uint64, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minAddress, p.maxAddress
}

// QueryRegion asks VirtualQueryEx about the region containing addr
func (p *WindowsProcess) QueryRegion(addr uint64) (memory_map.MemoryRegion, error) {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return memory_map.MemoryRegion{}, process.ErrProcessNotOpen
	}

	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQueryEx(handle, uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return memory_map.MemoryRegion{}, fmt.Errorf("VirtualQueryEx(%08X): %w", addr, err)
	}
	return memory_map.FromBasicInformation(&mbi), nil
}

func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	if err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead); err != nil {
		return nil, fmt.Errorf("ReadProcessMemory(%s): %w", addr.ToString(), err)
	}

	if bytesRead != uintptr(size) {
		return nil, fmt.Errorf("read incomplete: expected %d, got %d", size, bytesRead)
	}

	return buf, nil
}

// Modules enumerates loaded images. A module whose information cannot be read
// is skipped and reported in the returned error alongside the rest.
func (p *WindowsProcess) Modules() ([]process.ModuleInfo, error) {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}

	handles := make([]windows.Handle, 256)
	for {
		var needed uint32
		size := uint32(len(handles)) * uint32(unsafe.Sizeof(handles[0]))
		if err := windows.EnumProcessModules(handle, &handles[0], size, &needed); err != nil {
			return nil, fmt.Errorf("EnumProcessModules: %w", err)
		}
		if needed <= size {
			handles = handles[:needed/uint32(unsafe.Sizeof(handles[0]))]
			break
		}
		handles = make([]windows.Handle, needed/uint32(unsafe.Sizeof(handles[0]))+16)
	}

	var modules []process.ModuleInfo
	var errs []error
	for _, h := range handles {
		var mi windows.ModuleInfo
		if err := windows.GetModuleInformation(handle, h, &mi, uint32(unsafe.Sizeof(mi))); err != nil {
			errs = append(errs, fmt.Errorf("GetModuleInformation(%X): %w", uintptr(h), err))
			continue
		}

		var name [windows.MAX_PATH]uint16
		if err := windows.GetModuleFileNameEx(handle, h, &name[0], windows.MAX_PATH); err != nil {
			errs = append(errs, fmt.Errorf("GetModuleFileNameEx(%X): %w", uintptr(h), err))
			continue
		}

		modules = append(modules, process.ModuleInfo{
			Base: process.ProcessMemoryAddress(mi.BaseOfDll),
			Size: process.ProcessMemorySize(mi.SizeOfImage),
			Path: windows.UTF16ToString(name[:]),
		})
	}

	if len(errs) > 0 {
		p.log.Warn("module enumeration incomplete: ", len(errs), " failures")
	}
	return modules, errors.Join(errs...)
}

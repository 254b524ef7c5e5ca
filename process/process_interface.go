package process

import (
	"crashdump/process/memory_map"
)

// Process is the interface that defines the read-only operations the diagnostic
// engine needs from a suspended target process
type Process interface {
	// GetPID returns the process ID
	GetPID() ProcessID

	// Close closes the process and releases resources
	Close() error

	// ReadMemory reads memory from the process at the specified address.
	// The whole range is returned or an error, never a partial buffer.
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// Region queries against the live address space
	memory_map.Querier

	// Module enumeration
	ModuleEnumerator
}

// ModuleEnumerator lists the images loaded into a process
type ModuleEnumerator interface {
	// Modules returns the loaded modules. On partial failure it returns what was
	// enumerated together with a non-nil error.
	Modules() ([]ModuleInfo, error)
}

// MemoryReader is the single read capability the memory cache is built on
type MemoryReader interface {
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
}

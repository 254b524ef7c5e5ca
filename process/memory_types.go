package process

import (
	"fmt"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// AlignDown rounds addr down to a multiple of align, which must be a power of two.
func (pma ProcessMemoryAddress) AlignDown(align uint64) ProcessMemoryAddress {
	return pma &^ ProcessMemoryAddress(align-1)
}

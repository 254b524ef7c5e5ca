package memory_map

import (
	"fmt"
)

// Protection is a page protection value in the Windows PAGE_* numbering.
// Hosts on other systems translate their permissions into it so reports
// read the same everywhere.
type Protection uint32

const (
	PageNoAccess         Protection = 0x01
	PageReadOnly         Protection = 0x02
	PageReadWrite        Protection = 0x04
	PageWriteCopy        Protection = 0x08
	PageExecute          Protection = 0x10
	PageExecuteRead      Protection = 0x20
	PageExecuteReadWrite Protection = 0x40
	PageExecuteWriteCopy Protection = 0x80
	PageGuard            Protection = 0x100
	PageNoCache          Protection = 0x200
	PageWriteCombine     Protection = 0x400
)

// IsExecutable reports whether p is exactly one of the execute protections.
// Modifier bits such as PageGuard make the page non-executable for our purposes.
func (p Protection) IsExecutable() bool {
	switch p {
	case PageExecute, PageExecuteRead, PageExecuteReadWrite, PageExecuteWriteCopy:
		return true
	}
	return false
}

func (p Protection) String() string {
	base := p &^ (PageGuard | PageNoCache | PageWriteCombine)
	var name string
	switch base {
	case 0:
		name = "none"
	case PageNoAccess:
		name = "no-access"
	case PageReadOnly:
		name = "read-only"
	case PageReadWrite:
		name = "read-write"
	case PageWriteCopy:
		name = "write-copy"
	case PageExecute:
		name = "execute"
	case PageExecuteRead:
		name = "execute-read"
	case PageExecuteReadWrite:
		name = "execute-read-write"
	case PageExecuteWriteCopy:
		name = "execute-write-copy"
	default:
		name = fmt.Sprintf("0x%X", uint32(base))
	}
	if p&PageGuard != 0 {
		name += "+guard"
	}
	return name
}

// RegionState is the commitment state of a region
type RegionState uint32

const (
	MemCommit  RegionState = 0x1000
	MemReserve RegionState = 0x2000
	MemFree    RegionState = 0x10000
)

func (s RegionState) String() string {
	switch s {
	case MemCommit:
		return "committed"
	case MemReserve:
		return "reserved"
	case MemFree:
		return "free"
	}
	return fmt.Sprintf("0x%X", uint32(s))
}

// RegionType is the kind of backing a region has
type RegionType uint32

const (
	MemPrivate RegionType = 0x20000
	MemMapped  RegionType = 0x40000
	MemImage   RegionType = 0x1000000
)

func (t RegionType) String() string {
	switch t {
	case 0:
		return "none"
	case MemPrivate:
		return "private"
	case MemMapped:
		return "mapped"
	case MemImage:
		return "image"
	}
	return fmt.Sprintf("0x%X", uint32(t))
}

// MemoryRegion represents a memory region in a process's address space
type MemoryRegion struct {
	Address uint64      `json:"address"` // The starting address of the memory region
	Size    uint64      `json:"size"`    // The size of the memory region in bytes
	State   RegionState `json:"state"`
	Protect Protection  `json:"protect"`
	Type    RegionType  `json:"type"`
}

// End returns the address just past the region
func (r MemoryRegion) End() uint64 {
	return r.Address + r.Size
}

// Contains reports whether addr lies in [Address, Address+Size)
func (r MemoryRegion) Contains(addr uint64) bool {
	return addr >= r.Address && addr-r.Address < r.Size
}

// String returns a string representation of the memory region
func (r MemoryRegion) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, State: %s, Protect: %s, Type: %s",
		r.Address, r.Size, r.State, r.Protect, r.Type)
}

// IsCommittedReadWrite is the stack shape: committed and exactly read-write
func (r MemoryRegion) IsCommittedReadWrite() bool {
	return r.State == MemCommit && r.Protect == PageReadWrite
}

// IsReadable reports whether the region is committed with a readable protection
func (r MemoryRegion) IsReadable() bool {
	if r.State != MemCommit || r.Protect&PageGuard != 0 {
		return false
	}
	switch r.Protect &^ (PageNoCache | PageWriteCombine) {
	case PageReadOnly, PageReadWrite, PageWriteCopy,
		PageExecuteRead, PageExecuteReadWrite, PageExecuteWriteCopy:
		return true
	}
	return false
}

// Querier describes the target's address space one region at a time
type Querier interface {
	// QueryRegion returns the region that begins at the page containing addr.
	// It fails once addr is past the last describable region.
	QueryRegion(addr uint64) (MemoryRegion, error)

	// AddressEnvelope returns the lowest and highest valid application addresses
	AddressEnvelope() (min uint64, max uint64)
}

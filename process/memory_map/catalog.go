package memory_map

import (
	"sort"
)

// Catalog is an immutable snapshot of a target's regions ordered by base address
type Catalog struct {
	regions []MemoryRegion
	min     uint64
	max     uint64
}

// NewCatalog builds a catalog from regions in any order. min and max bound
// the addresses IsExecutable will accept.
func NewCatalog(regions []MemoryRegion, min, max uint64) *Catalog {
	sorted := make([]MemoryRegion, len(regions))
	copy(sorted, regions)

	// RegionContaining requires the regions to be sorted by address
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Address < sorted[j].Address
	})

	return &Catalog{regions: sorted, min: min, max: max}
}

// BuildCatalog walks the address space from the querier's minimum address,
// appending each described region until a query fails or the maximum is passed.
func BuildCatalog(q Querier) *Catalog {
	min, max := q.AddressEnvelope()

	var regions []MemoryRegion
	addr := min
	for addr <= max {
		region, err := q.QueryRegion(addr)
		if err != nil {
			break
		}
		regions = append(regions, region)

		next := region.Address + region.Size
		if region.Size == 0 || next <= addr {
			// no progress or wrapped around
			break
		}
		addr = next
	}

	return NewCatalog(regions, min, max)
}

// Regions returns a copy of the cataloged regions
func (c *Catalog) Regions() []MemoryRegion {
	result := make([]MemoryRegion, len(c.regions))
	copy(result, c.regions)
	return result
}

// Len returns the number of regions
func (c *Catalog) Len() int {
	return len(c.regions)
}

// Envelope returns the valid address bounds the catalog was built with
func (c *Catalog) Envelope() (uint64, uint64) {
	return c.min, c.max
}

// index returns the position of the region containing addr or -1
func (c *Catalog) index(addr uint64) int {
	// first region whose base exceeds addr, then step back one
	i := sort.Search(len(c.regions), func(i int) bool {
		return c.regions[i].Address > addr
	})
	if i == 0 {
		return -1
	}
	i--
	if !c.regions[i].Contains(addr) {
		return -1
	}
	return i
}

// RegionContaining returns the region whose [base, base+size) contains addr
func (c *Catalog) RegionContaining(addr uint64) (MemoryRegion, bool) {
	i := c.index(addr)
	if i < 0 {
		return MemoryRegion{}, false
	}
	return c.regions[i], true
}

// IsExecutable reports whether addr lies in the valid envelope inside a region
// carrying one of the execute protections
func (c *Catalog) IsExecutable(addr uint64) bool {
	if addr < c.min || addr > c.max {
		return false
	}
	region, ok := c.RegionContaining(addr)
	if !ok {
		return false
	}
	return region.Protect.IsExecutable()
}

// FirstNonWritableAtOrAfter scans forward from the region containing addr and
// returns the base of the first region that is not committed read-write.
// addr itself is returned when no such region exists.
func (c *Catalog) FirstNonWritableAtOrAfter(addr uint64) uint64 {
	i := c.index(addr)
	if i < 0 {
		return addr
	}
	for ; i < len(c.regions); i++ {
		if !c.regions[i].IsCommittedReadWrite() {
			return c.regions[i].Address
		}
	}
	return addr
}

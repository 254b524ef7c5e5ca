package memory_map

import (
	"math"
	"sort"
)

// DefaultPageSize is the allocation granularity region queries are aligned to
const DefaultPageSize = 0x1000

// DescribeAt answers a region query from a sorted, non-overlapping list of
// mapped regions. Addresses between mappings are described as free regions
// running up to the next mapping (or past max), so repeated queries partition
// the whole envelope the way VirtualQueryEx does.
func DescribeAt(mapped []MemoryRegion, addr, max uint64) (MemoryRegion, bool) {
	page := addr &^ (DefaultPageSize - 1)
	if page > max {
		return MemoryRegion{}, false
	}

	i := sort.Search(len(mapped), func(i int) bool {
		return mapped[i].End() > page
	})

	if i < len(mapped) && mapped[i].Address <= page {
		region := mapped[i]
		region.Size = region.End() - page
		region.Address = page
		return region, true
	}

	end := max
	if max != math.MaxUint64 {
		end = max + 1
	}
	if i < len(mapped) && mapped[i].Address < end {
		end = mapped[i].Address
	}
	if end <= page {
		return MemoryRegion{}, false
	}

	return MemoryRegion{
		Address: page,
		Size:    end - page,
		State:   MemFree,
		Protect: PageNoAccess,
	}, true
}

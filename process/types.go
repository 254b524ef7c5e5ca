package process

import (
	"fmt"
	"sort"
)

// ProcessID represents a unique identifier for a process
type ProcessID int

// ModuleInfo describes an executable image loaded into the target
type ModuleInfo struct {
	Base ProcessMemoryAddress `json:"base"`
	Size ProcessMemorySize    `json:"size"`
	Path string               `json:"path"`
}

// End returns the address just past the image
func (m ModuleInfo) End() ProcessMemoryAddress {
	return m.Base + ProcessMemoryAddress(m.Size)
}

func (m ModuleInfo) String() string {
	return fmt.Sprintf("%s-%s %s", m.Base.ToString(), m.End().ToString(), m.Path)
}

// ModuleList is an enumerated module set in base address order.
// Truncated is set when a configured cap dropped entries.
type ModuleList struct {
	Modules   []ModuleInfo
	Truncated bool
}

// NewModuleList sorts modules by base address and applies limit (0 means no limit)
func NewModuleList(modules []ModuleInfo, limit int) ModuleList {
	sorted := make([]ModuleInfo, len(modules))
	copy(sorted, modules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Base < sorted[j].Base
	})

	list := ModuleList{Modules: sorted}
	if limit > 0 && len(sorted) > limit {
		list.Modules = sorted[:limit]
		list.Truncated = true
	}
	return list
}

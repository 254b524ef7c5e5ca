//go:build linux

package memory_map

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MemoryMapItem is one line of /proc/[pid]/maps
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Path    string // Backing file or pseudo name such as [stack], empty for anonymous
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

// IsFileBacked reports whether the mapping comes from a file on disk
func (mmItem MemoryMapItem) IsFileBacked() bool {
	return mmItem.Path != "" && !strings.HasPrefix(mmItem.Path, "[")
}

// Region translates the mapping into the common region vocabulary
func (mmItem MemoryMapItem) Region() MemoryRegion {
	region := MemoryRegion{
		Address: mmItem.Address,
		Size:    uint64(mmItem.Size),
		State:   MemCommit,
		Protect: PermsToProtection(mmItem.Perms),
		Type:    MemPrivate,
	}
	if mmItem.IsFileBacked() {
		region.Type = MemMapped
		if IsExecutablePerms(mmItem.Perms) {
			region.Type = MemImage
		}
	}
	return region
}

// LinuxMemoryMap reads memory maps from procfs
type LinuxMemoryMap struct{}

// NewLinuxMemoryMap creates a new LinuxMemoryMap instance
func NewLinuxMemoryMap() *LinuxMemoryMap {
	return &LinuxMemoryMap{}
}

// ReadMemoryMap reads and parses the memory map for a process from /proc/[pid]/maps
func (l *LinuxMemoryMap) ReadMemoryMap(pid int) ([]MemoryMapItem, error) {
	file, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseMemoryMap(file)
}

// ParseMemoryMap parses the maps format, skipping malformed lines
func ParseMemoryMap(r io.Reader) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		// Parse address range (e.g., "00400000-0040b000")
		addrRange := strings.Split(fields[0], "-")
		if len(addrRange) != 2 {
			continue
		}

		startAddr, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}

		endAddr, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil || endAddr <= startAddr {
			continue
		}

		// address perms offset dev inode pathname; the pathname may contain spaces
		path := ""
		if len(fields) >= 6 {
			path = strings.Join(fields[5:], " ")
		}

		memoryMap = append(memoryMap, MemoryMapItem{
			Address: startAddr,
			Size:    uint(endAddr - startAddr),
			Perms:   fields[1],
			Path:    path,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return memoryMap, nil
}

// PermsToProtection maps an rwx permission string onto a page protection
func PermsToProtection(perms string) Protection {
	r, w, x := IsReadablePerms(perms), IsWritablePerms(perms), IsExecutablePerms(perms)
	switch {
	case x && w:
		return PageExecuteReadWrite
	case x && r:
		return PageExecuteRead
	case x:
		return PageExecute
	case w:
		return PageReadWrite
	case r:
		return PageReadOnly
	}
	return PageNoAccess
}

func IsReadablePerms(perms string) bool {
	return len(perms) > 0 && perms[0] == 'r'
}

func IsWritablePerms(perms string) bool {
	return len(perms) > 1 && perms[1] == 'w'
}

func IsExecutablePerms(perms string) bool {
	return len(perms) > 2 && perms[2] == 'x'
}

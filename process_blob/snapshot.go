package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"crashdump/process"
	"crashdump/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/golang/snappy"
)

const (
	metadataFile  = "metadata.json"
	memoryMapFile = "process_memory_map.json"
	modulesFile   = "modules.json"

	// regions larger than this are recorded in the map but their contents are not saved
	maxBlobSize = 100 * 1024 * 1024
)

func blobName(region memory_map.MemoryRegion, compressed bool) string {
	name := fmt.Sprintf("blob_0x%x_%d.bin", region.Address, region.Size)
	if compressed {
		name += ".sz"
	}
	return name
}

// SaveOptions controls Capture
type SaveOptions struct {
	FaultPointer process.ProcessMemoryAddress
	Name         string
	Compress     bool
}

// Capture walks the regions of a suspended live process and writes a snapshot
// directory that Load can turn back into a ProcessDump
func Capture(proc process.Process, dirname string, options SaveOptions) error {
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("snapshot-%d", proc.GetPID())))
	log.Infoln("Capturing process to directory:", dirname)

	catalog := memory_map.BuildCatalog(proc)
	min, max := catalog.Envelope()

	modules, err := proc.Modules()
	if err != nil {
		log.Warn("Module enumeration incomplete: ", err)
	}

	dump := NewProcessDump()
	dump.Metadata = Metadata{
		PID:          proc.GetPID(),
		Name:         options.Name,
		FaultPointer: options.FaultPointer,
		MinAddress:   min,
		MaxAddress:   max,
		Compressed:   options.Compress,
	}
	dump.ModuleList = modules

	stats := map[string]int{
		"skipped_non_readable": 0,
		"skipped_too_large":    0,
		"read_error":           0,
		"saved":                0,
	}

	for _, region := range catalog.Regions() {
		if region.State == memory_map.MemFree {
			continue
		}

		if !region.IsReadable() {
			dump.AddRegion(region, nil)
			stats["skipped_non_readable"]++
			continue
		}

		if region.Size > maxBlobSize {
			log.Infoln("Skipping large region at", fmt.Sprintf("%x", region.Address),
				"(size:", region.Size/1024/1024, "MB)")
			dump.AddRegion(region, nil)
			stats["skipped_too_large"]++
			continue
		}

		data, err := proc.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), ":", err)
			dump.AddRegion(region, nil)
			stats["read_error"]++
			continue
		}

		dump.AddRegion(region, data)
		stats["saved"]++
	}

	log.Infoln("Region statistics:", "saved", stats["saved"],
		"non-readable", stats["skipped_non_readable"],
		"too large", stats["skipped_too_large"],
		"read errors", stats["read_error"])

	return dump.Save(dirname)
}

// Save writes the dump to a directory
func (p *ProcessDump) Save(dirname string) error {
	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := writeJSON(filepath.Join(dirname, metadataFile), p.Metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := writeJSON(filepath.Join(dirname, memoryMapFile), p.MemoryMap); err != nil {
		return fmt.Errorf("failed to write memory map: %w", err)
	}

	if err := writeJSON(filepath.Join(dirname, modulesFile), p.ModuleList); err != nil {
		return fmt.Errorf("failed to write modules: %w", err)
	}

	for _, region := range p.MemoryMap {
		data, ok := p.Blobs[region.Address]
		if !ok {
			continue
		}

		if p.Compressed {
			data = snappy.Encode(nil, data)
		}

		filename := filepath.Join(dirname, blobName(region, p.Compressed))
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return fmt.Errorf("failed to write blob %s: %w", filename, err)
		}
	}

	return nil
}

// Load loads the process memory and metadata from a directory
func (p *ProcessDump) Load(dirname string) error {
	if err := readJSON(filepath.Join(dirname, metadataFile), &p.Metadata); err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	if err := readJSON(filepath.Join(dirname, memoryMapFile), &p.MemoryMap); err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	// Sort memory map
	sort.Slice(p.MemoryMap, func(i, j int) bool {
		return p.MemoryMap[i].Address < p.MemoryMap[j].Address
	})

	// Modules are optional, a snapshot without them still diagnoses
	if err := readJSON(filepath.Join(dirname, modulesFile), &p.ModuleList); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read modules: %w", err)
	}

	if p.Blobs == nil {
		p.Blobs = make(map[uint64][]byte)
	}

	for _, region := range p.MemoryMap {
		filename := filepath.Join(dirname, blobName(region, p.Compressed))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			continue // Blob not saved (e.g. too large or not readable)
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}

		if strings.HasSuffix(filename, ".sz") {
			data, err = snappy.Decode(nil, data)
			if err != nil {
				return fmt.Errorf("failed to decompress blob %s: %w", filename, err)
			}
		}

		if uint64(len(data)) != region.Size {
			return fmt.Errorf("blob %s holds %d bytes, region is %d", filename, len(data), region.Size)
		}

		p.Blobs[region.Address] = data
	}

	return nil
}

// LoadProcessDump is a convenience wrapper around Load
func LoadProcessDump(dirname string) (*ProcessDump, error) {
	dump := NewProcessDump()
	if err := dump.Load(dirname); err != nil {
		return nil, err
	}
	return dump, nil
}

func writeJSON(filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func readJSON(filename string, v interface{}) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Package memory_cache serves small, address-adjacent reads of a remote
// process from page-sized buffers so each page is fetched at most once.
package memory_cache

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"crashdump/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// DefaultPageSize matches the smallest allocation granularity of the supported hosts
const DefaultPageSize = 0x1000

// ErrUnreadable is returned when any byte of a request lies on a page the target refused to serve
var ErrUnreadable = errors.New("memory not readable")

type page struct {
	data     []byte // nil when the remote read failed
	readable bool
}

// Cache is a read-through cache over a remote memory reader. Pages are never
// evicted and failed pages are never retried; a cache lives for one diagnostic run.
// It is not safe for concurrent use.
type Cache struct {
	reader      process.MemoryReader
	pageSize    uint64
	pages       map[uint64]*page
	remoteReads int
	log         *logger.Logger
}

// Option is a function that configures a Cache
type Option func(*Cache)

// WithPageSize overrides the page size; it must be a power of two
func WithPageSize(size uint64) Option {
	return func(c *Cache) {
		if size != 0 && size&(size-1) == 0 {
			c.pageSize = size
		}
	}
}

// New creates a cache in front of reader
func New(reader process.MemoryReader, options ...Option) *Cache {
	c := &Cache{
		reader:   reader,
		pageSize: DefaultPageSize,
		pages:    make(map[uint64]*page),
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "memory-cache")),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// PageSize returns the page size in bytes
func (c *Cache) PageSize() uint64 {
	return c.pageSize
}

// RemoteReads returns how many reads were issued against the target
func (c *Cache) RemoteReads() int {
	return c.remoteReads
}

// CachedPages returns the number of pages fetched so far, readable or not
func (c *Cache) CachedPages() int {
	return len(c.pages)
}

func (c *Cache) fetch(base uint64) *page {
	if pg, ok := c.pages[base]; ok {
		return pg
	}

	c.remoteReads++
	data, err := c.reader.ReadMemory(process.ProcessMemoryAddress(base), process.ProcessMemorySize(c.pageSize))
	pg := &page{}
	if err != nil || uint64(len(data)) != c.pageSize {
		c.log.Debugln("page", fmt.Sprintf("%08X", base), "unreadable:", err)
	} else {
		pg.data = data
		pg.readable = true
	}

	c.pages[base] = pg
	return pg
}

// ReadInto fills buf with the bytes at addr. Every page the range touches
// must be readable, otherwise ErrUnreadable is returned and buf is unspecified.
func (c *Cache) ReadInto(addr process.ProcessMemoryAddress, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	start := uint64(addr)
	end := start + uint64(len(buf))
	if end < start {
		return errors.Wrapf(ErrUnreadable, "range at %08X wraps the address space", start)
	}

	mask := c.pageSize - 1
	for cur := start; cur < end; {
		base := cur &^ mask
		pg := c.fetch(base)
		if !pg.readable {
			return errors.Wrapf(ErrUnreadable, "page %08X", base)
		}

		off := cur - base
		n := copy(buf[cur-start:], pg.data[off:])
		cur += uint64(n)
	}
	return nil
}

// Read returns size bytes at addr
func (c *Cache) Read(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	buf := make([]byte, size)
	if err := c.ReadInto(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadMemory lets the cache stand in wherever a process.MemoryReader is accepted
func (c *Cache) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	return c.Read(addr, size)
}

// ReadUINT32 reads a little-endian 32-bit word
func (c *Cache) ReadUINT32(addr process.ProcessMemoryAddress) (uint32, error) {
	var buf [4]byte
	if err := c.ReadInto(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUINT32s reads count consecutive little-endian 32-bit words
func (c *Cache) ReadUINT32s(addr process.ProcessMemoryAddress, count int) ([]uint32, error) {
	buf := make([]byte, count*4)
	if err := c.ReadInto(addr, buf); err != nil {
		return nil, err
	}
	words := make([]uint32, count)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return words, nil
}

// Unpack decodes the little-endian structure v (a pointer to a struc-compatible
// struct) from the target memory at addr
func (c *Cache) Unpack(addr process.ProcessMemoryAddress, v interface{}) error {
	size, err := struc.Sizeof(v)
	if err != nil {
		return errors.Wrap(err, "struc.Sizeof() failed")
	}

	buf, err := c.Read(addr, process.ProcessMemorySize(size))
	if err != nil {
		return err
	}

	return errors.Wrap(struc.UnpackWithOrder(bytes.NewReader(buf), v, binary.LittleEndian), "struc.Unpack() failed")
}

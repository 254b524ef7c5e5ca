// Package diagnose runs one crash diagnosis against a suspended target and
// writes the text report. The target is only ever read.
package diagnose

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"crashdump/backtrace"
	"crashdump/fault_context"
	"crashdump/memory_cache"
	"crashdump/process"
	"crashdump/process/memory_map"
	"crashdump/report"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/pkg/errors"
)

// Options tune a run; the zero value uses the defaults of each component
type Options struct {
	PageSize    uint64
	FrameLimit  int
	CallShape   backtrace.CallShape
	ModuleLimit int
	Now         func() time.Time
}

// Collect gathers every fact of the report. A fault context that cannot be
// recovered is fatal and reported as fault_context.ErrFaultContextUnavailable;
// every other failure degrades the affected section only.
func Collect(proc process.Process, notification process.ProcessMemoryAddress, options Options) (*report.Report, error) {
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("diagnose-%d", proc.GetPID())))
	log.Infoln("Diagnosing fault notification at", notification.ToString())

	now := time.Now
	if options.Now != nil {
		now = options.Now
	}

	var cacheOptions []memory_cache.Option
	if options.PageSize != 0 {
		cacheOptions = append(cacheOptions, memory_cache.WithPageSize(options.PageSize))
	}
	cache := memory_cache.New(proc, cacheOptions...)

	fault, err := fault_context.Extract(cache, notification)
	if err != nil {
		return nil, err
	}

	catalog := memory_map.BuildCatalog(proc)
	log.Infoln("Cataloged", catalog.Len(), "regions")

	reconstructor := backtrace.New(cache, catalog,
		backtrace.WithFrameLimit(options.FrameLimit),
		backtrace.WithCallShape(options.CallShape),
	)

	r := &report.Report{
		Time:    now(),
		Fault:   fault,
		Regions: catalog.Regions(),
	}

	r.FrameChain = reconstructor.FramePointerChain(fault.Registers)

	base, words, err := reconstructor.StackWords(fault.Registers.Esp)
	if err != nil {
		log.Warn("Stack not readable: ", err)
	}
	r.StackBase = base
	r.StackWords = words
	r.StackScan = reconstructor.ScanWords(words)

	modules, err := proc.Modules()
	if err != nil {
		log.Warn("Module enumeration incomplete: ", err)
	}
	r.Modules = process.NewModuleList(modules, options.ModuleLimit)

	log.Infoln("Frame chain:", len(r.FrameChain), "sites, stack scan:", len(r.StackScan),
		"sites, stack words:", len(r.StackWords), "remote reads:", cache.RemoteReads())

	return r, nil
}

// Run collects and then writes the report to w. Nothing is written when
// collection fails.
func Run(w io.Writer, proc process.Process, notification process.ProcessMemoryAddress, options Options) error {
	r, err := Collect(proc, notification, options)
	if err != nil {
		return err
	}
	return errors.Wrap(report.Write(w, r), "write report")
}

// WriteFile runs a diagnosis into the file at path. The file is created only
// once the fault context has been recovered, so a fatal run leaves no
// truncated report behind.
func WriteFile(path string, proc process.Process, notification process.ProcessMemoryAddress, options Options) error {
	r, err := Collect(proc, notification, options)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report file")
	}

	out := bufio.NewWriter(file)
	if err := report.Write(out, r); err != nil {
		file.Close()
		return errors.Wrap(err, "write report")
	}
	if err := out.Flush(); err != nil {
		file.Close()
		return errors.Wrap(err, "flush report")
	}
	return errors.Wrap(file.Close(), "close report file")
}

package main

import (
	"bufio"
	"os"

	"crashdump/process/memory_map"
	"crashdump/report"

	"github.com/spf13/cobra"
)

var cmdRegions = &cobra.Command{
	Use:   "regions",
	Short: "print the memory map of a process or snapshot",
	Run:   runRegions,
}

func init() {
	addTargetFlags(cmdRegions, true)
}

func runRegions(cmd *cobra.Command, args []string) {
	conf := loadConfig(cmd)

	t := openTarget(cmd)
	defer t.Close()
	stop := startWatchdog(conf, t.release)
	defer stop()

	catalog := memory_map.BuildCatalog(t.proc)

	out := bufio.NewWriter(os.Stdout)
	f := report.NewFormatter(out)
	f.WriteMemoryMap(catalog.Regions())
	if err := f.Err(); err != nil {
		t.Close()
		exitf("%v\n", err)
	}
	if err := out.Flush(); err != nil {
		t.Close()
		exitf("%v\n", err)
	}
}

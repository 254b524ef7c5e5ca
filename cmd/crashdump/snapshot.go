package main

import (
	"fmt"
	"os"

	"crashdump/process"
	"crashdump/process_blob"

	"github.com/spf13/cobra"
)

var cmdSnapshot = &cobra.Command{
	Use:   "snapshot",
	Short: "capture the memory of a faulted process for offline reports",
	Run:   runSnapshot,
}

func init() {
	addTargetFlags(cmdSnapshot, false)
	cmdSnapshot.Flags().String("fault-ptr", "", "address of the fault notification to record, hex")
	cmdSnapshot.Flags().String("out", "", "output directory for the snapshot")
}

func runSnapshot(cmd *cobra.Command, args []string) {
	conf := loadConfig(cmd)

	dir, err := cmd.Flags().GetString("out")
	if err != nil {
		exitf("%v\n", err)
	}
	if dir == "" {
		exitf("--out is required\n")
	}

	var notification process.ProcessMemoryAddress
	if faultPtr, _ := cmd.Flags().GetString("fault-ptr"); faultPtr != "" {
		notification, err = parseAddress(faultPtr)
		if err != nil {
			exitf("%v\n", err)
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		exitf("Error creating output directory: %v\n", err)
	}

	t := openTarget(cmd)
	defer t.Close()
	stop := startWatchdog(conf, t.release)
	defer stop()

	err = process_blob.Capture(t.proc, dir, process_blob.SaveOptions{
		FaultPointer: notification,
		Name:         t.name,
		Compress:     conf.Compress(),
	})
	if err != nil {
		t.Close()
		exitf("Error saving snapshot: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "Snapshot saved to %s\n", dir)
}

// snapshotFaultPointer returns the fault pointer recorded in a snapshot, zero for live targets
func snapshotFaultPointer(t *target) process.ProcessMemoryAddress {
	if dump, ok := t.proc.(*process_blob.ProcessDump); ok {
		return dump.FaultPointer
	}
	return 0
}

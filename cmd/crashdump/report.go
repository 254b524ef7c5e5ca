package main

import (
	"fmt"
	"os"

	"crashdump/diagnose"

	"github.com/spf13/cobra"
)

var cmdReport = &cobra.Command{
	Use:   "report",
	Short: "write a crash report for a faulted process",
	Run:   runReport,
}

func init() {
	addTargetFlags(cmdReport, true)
	cmdReport.Flags().String("fault-ptr", "", "address of the fault notification (exception pointers), hex")
	cmdReport.Flags().String("out", "", "report file (default: output_dir/report_name from the config, - for stdout)")
}

func runReport(cmd *cobra.Command, args []string) {
	conf := loadConfig(cmd)
	options := diagnoseOptions(conf)

	t := openTarget(cmd)
	defer t.Close()
	stop := startWatchdog(conf, t.release)
	defer stop()

	faultPtr, err := cmd.Flags().GetString("fault-ptr")
	if err != nil {
		exitf("%v\n", err)
	}
	var notification = snapshotFaultPointer(t)
	if faultPtr != "" {
		notification, err = parseAddress(faultPtr)
		if err != nil {
			exitf("%v\n", err)
		}
	}
	if notification == 0 {
		exitf("--fault-ptr is required\n")
	}

	out, err := cmd.Flags().GetString("out")
	if err != nil {
		exitf("%v\n", err)
	}
	if out == "-" {
		if err := diagnose.Run(os.Stdout, t.proc, notification, options); err != nil {
			t.Close()
			exitf("%v\n", err)
		}
		return
	}
	if out == "" {
		if err := os.MkdirAll(conf.OutputDir, 0755); err != nil {
			t.Close()
			exitf("Error creating output directory: %v\n", err)
		}
		out = conf.ReportPath()
	}

	if err := diagnose.WriteFile(out, t.proc, notification, options); err != nil {
		t.Close()
		exitf("%v\n", err)
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", out)
}

// The crashdump tool diagnoses a crashed, suspended process and writes a text
// crash report. It can also capture a snapshot of the process so the report
// can be produced offline later.
// Run "crashdump help" for a list of commands.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"crashdump/backtrace"
	"crashdump/config"
	"crashdump/diagnose"
	"crashdump/process"
	"crashdump/process_blob"

	"github.com/spf13/cobra"
)

var cmdRoot = &cobra.Command{
	Use:   "crashdump",
	Short: "postmortem crash reports for suspended processes",
}

func init() {
	cmdRoot.PersistentFlags().String("config", "", "path to config.json (default: looked up in the config folders)")
	cmdRoot.PersistentFlags().String("timeout", "", "abort the run after this duration, e.g. 30s")
	cmdRoot.AddCommand(cmdReport, cmdSnapshot, cmdRegions)
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		os.Exit(2)
	}
}

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

// loadConfig reads the config file and applies the persistent flag overrides
func loadConfig(cmd *cobra.Command) *config.Config {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		exitf("%v\n", err)
	}
	conf, err := config.Load(path)
	if err != nil {
		exitf("%v\n", err)
	}

	timeout, err := cmd.Flags().GetString("timeout")
	if err != nil {
		exitf("%v\n", err)
	}
	if timeout != "" {
		conf.Timeout = timeout
		if err := conf.Validate(); err != nil {
			exitf("%v\n", err)
		}
	}
	return conf
}

func diagnoseOptions(conf *config.Config) diagnose.Options {
	shape, err := backtrace.ParseCallShape(conf.CallShape)
	if err != nil {
		exitf("%v\n", err)
	}
	return diagnose.Options{
		PageSize:    conf.PageSize,
		FrameLimit:  conf.FrameWalkLimit,
		CallShape:   shape,
		ModuleLimit: conf.ModuleLimit,
	}
}

// startWatchdog aborts the process once the configured timeout elapses.
// cleanup runs before exiting so a stopped target is not left behind.
func startWatchdog(conf *config.Config, cleanup func()) func() {
	d, err := conf.TimeoutDuration()
	if err != nil {
		exitf("%v\n", err)
	}
	if d == 0 {
		return func() {}
	}
	t := time.AfterFunc(d, func() {
		cleanup()
		exitf("crashdump: timed out after %s\n", d)
	})
	return func() { t.Stop() }
}

func parseAddress(s string) (process.ProcessMemoryAddress, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return process.ProcessMemoryAddress(v), nil
}

// target is an opened process together with the hook that undoes --suspend
type target struct {
	proc    process.Process
	name    string
	release func()
}

func (t *target) Close() {
	t.proc.Close()
	t.release()
}

// openTarget resolves --pid, --name or --snapshot into a process
func openTarget(cmd *cobra.Command) *target {
	snapshot, _ := cmd.Flags().GetString("snapshot")
	pid, _ := cmd.Flags().GetInt("pid")
	name, _ := cmd.Flags().GetString("name")
	suspend, _ := cmd.Flags().GetBool("suspend")

	if snapshot != "" {
		dump, err := process_blob.LoadProcessDump(snapshot)
		if err != nil {
			exitf("%v\n", err)
		}
		return &target{proc: dump, name: dump.Name, release: func() {}}
	}

	if pid == 0 && name != "" {
		found, err := findPID(name)
		if err != nil {
			exitf("%v\n", err)
		}
		pid = int(found)
	}
	if pid == 0 {
		exitf("one of --pid, --name or --snapshot is required\n")
	}

	release := func() {}
	if suspend {
		var err error
		release, err = suspendProcess(process.ProcessID(pid))
		if err != nil {
			exitf("suspend %d: %v\n", pid, err)
		}
	}

	proc, err := getProcess(pid)
	if err != nil {
		release()
		exitf("Error attaching to process %d: %v\n", pid, err)
	}
	return &target{proc: proc, name: name, release: release}
}

func addTargetFlags(cmd *cobra.Command, withSnapshot bool) {
	cmd.Flags().Int("pid", 0, "process ID of the crashed process")
	cmd.Flags().String("name", "", "process name, used when --pid is not given")
	cmd.Flags().Bool("suspend", false, "stop the target for the duration of the run")
	if withSnapshot {
		cmd.Flags().String("snapshot", "", "snapshot directory to diagnose instead of a live process")
	}
}

//go:build linux

package process_manage_linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"crashdump/process"
)

// Process is the subset of /proc/[pid]/stat the collector cares about
type Process struct {
	PID     process.ProcessID `json:"pid"`
	PPID    int               `json:"ppid"`
	Name    string            `json:"name"`
	State   string            `json:"state"`
	Threads int               `json:"threads"`
}

// Stopped reports whether the kernel shows the process as stopped or traced
func (p Process) Stopped() bool {
	return p.State == "T" || p.State == "t"
}

// ProcessManager freezes and thaws target processes around a collection
type ProcessManager struct {
	procRoot string
}

// NewProcessManager creates a new ProcessManager instance
func NewProcessManager() *ProcessManager {
	return &ProcessManager{procRoot: "/proc"}
}

// GetProcess returns information about a specific process
func (pm *ProcessManager) GetProcess(pid process.ProcessID) (Process, error) {
	statPath := filepath.Join(pm.procRoot, strconv.Itoa(int(pid)), "stat")
	statData, err := os.ReadFile(statPath)
	if err != nil {
		return Process{}, fmt.Errorf("failed to read %s: %w", statPath, err)
	}

	proc, err := ParseStat(string(statData))
	if err != nil {
		return Process{}, fmt.Errorf("failed to parse stat file: %w", err)
	}
	return proc, nil
}

// ProcessExists checks if a process with the given PID exists
func (pm *ProcessManager) ProcessExists(pid process.ProcessID) bool {
	_, err := pm.GetProcess(pid)
	return err == nil
}

// Suspend sends SIGSTOP and waits up to timeout for the kernel to report the stop
func (pm *ProcessManager) Suspend(pid process.ProcessID, timeout time.Duration) error {
	if err := pm.SendSignal(pid, syscall.SIGSTOP); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		proc, err := pm.GetProcess(pid)
		if err != nil {
			return err
		}
		if proc.Stopped() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("process %d did not stop within %s (state %s)", pid, timeout, proc.State)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Resume sends SIGCONT
func (pm *ProcessManager) Resume(pid process.ProcessID) error {
	return pm.SendSignal(pid, syscall.SIGCONT)
}

// SendSignal sends a specific signal to a process
func (pm *ProcessManager) SendSignal(pid process.ProcessID, sig syscall.Signal) error {
	p, err := os.FindProcess(int(pid))
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	err = p.Signal(sig)
	if err != nil {
		return fmt.Errorf("failed to send signal %v to process %d: %w", sig, pid, err)
	}

	return nil
}

// ParseStat parses the contents of /proc/[pid]/stat. The comm field is
// delimited by the last ')' since it may itself contain spaces or parens.
func ParseStat(data string) (Process, error) {
	open := strings.IndexByte(data, '(')
	closing := strings.LastIndexByte(data, ')')
	if open < 0 || closing < open {
		return Process{}, fmt.Errorf("invalid stat file format")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(data[:open]))
	if err != nil {
		return Process{}, fmt.Errorf("invalid pid: %w", err)
	}

	// fields after comm start at field 3 (state)
	rest := strings.Fields(data[closing+1:])
	if len(rest) < 18 {
		return Process{}, fmt.Errorf("invalid stat file format")
	}

	proc := Process{
		PID:   process.ProcessID(pid),
		Name:  data[open+1 : closing],
		State: rest[0],
	}
	if ppid, err := strconv.Atoi(rest[1]); err == nil {
		proc.PPID = ppid
	}
	if threads, err := strconv.Atoi(rest[17]); err == nil {
		proc.Threads = threads
	}

	return proc, nil
}

//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"crashdump/process"
)

// PIDsByName returns the PIDs whose comm or executable basename equals name,
// lowest first. The calling process is never included.
func PIDsByName(name string) ([]process.ProcessID, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	self := os.Getpid()
	var pids []process.ProcessID
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 || pid == self {
			continue // not a PID dir
		}
		if matchesName(e.Name(), name) {
			pids = append(pids, process.ProcessID(pid))
		}
	}

	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids, nil
}

// PIDByName returns the lowest PID matching name, or os.ErrNotExist if none
func PIDByName(name string) (process.ProcessID, error) {
	pids, err := PIDsByName(name)
	if err != nil {
		return 0, err
	}
	if len(pids) == 0 {
		return 0, fmt.Errorf("no process named %q: %w", name, os.ErrNotExist)
	}
	return pids[0], nil
}

func matchesName(pidDir, name string) bool {
	comm, _ := os.ReadFile(filepath.Join("/proc", pidDir, "comm"))
	if strings.TrimRight(string(comm), "\r\n\t ") == name {
		return true
	}

	// may fail for zombies or without permission
	exe, _ := os.Readlink(filepath.Join("/proc", pidDir, "exe"))
	return exe != "" && filepath.Base(exe) == name
}

package main

import (
	"time"

	"crashdump/process"
	"crashdump/process_linux"
	"crashdump/process_manage_linux"
)

func getProcess(pid int) (process.Process, error) {
	return process_linux.NewWithPID(process.ProcessID(pid))
}

func findPID(name string) (process.ProcessID, error) {
	return process_linux.PIDByName(name)
}

// suspendProcess stops pid and returns the function that resumes it
func suspendProcess(pid process.ProcessID) (func(), error) {
	pm := process_manage_linux.NewProcessManager()
	if err := pm.Suspend(pid, 5*time.Second); err != nil {
		return nil, err
	}
	return func() { pm.Resume(pid) }, nil
}

package main

import (
	"errors"

	"crashdump/process"
	"crashdump/process_windows"
)

func getProcess(pid int) (process.Process, error) {
	return process_windows.NewWithPID(process.ProcessID(pid))
}

func findPID(name string) (process.ProcessID, error) {
	return 0, errors.New("--name is not supported on windows, use --pid")
}

// the crashed process is expected to be held by its own crash handler
func suspendProcess(pid process.ProcessID) (func(), error) {
	return nil, errors.New("--suspend is not supported on windows")
}

//go:build !linux && !windows

package main

import (
	"errors"

	"crashdump/process"
)

var errUnsupported = errors.New("live processes are not supported on this platform, use --snapshot")

func getProcess(pid int) (process.Process, error) {
	return nil, errUnsupported
}

func findPID(name string) (process.ProcessID, error) {
	return 0, errUnsupported
}

func suspendProcess(pid process.ProcessID) (func(), error) {
	return nil, errUnsupported
}

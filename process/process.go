// Package process defines the host capabilities the crash diagnostic engine consumes
package process

import "errors"

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrEndOfAddressSpace is returned by QueryRegion when no region starts at or after the address.
	ErrEndOfAddressSpace = errors.New("end of address space")

	ErrInvalidPointer = errors.New("invalid pointer read")
)

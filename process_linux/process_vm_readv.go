//go:build linux

package process_linux

import (
	"fmt"
	"unsafe"

	"crashdump/process"

	"golang.org/x/sys/unix"
)

// process_vm_readv copies len(localBuf) bytes from remoteAddr in pid into localBuf.
// A short read is reported as an error.
func process_vm_readv(pid process.ProcessID, localBuf []byte, remoteAddr process.ProcessMemoryAddress) error {
	if len(localBuf) == 0 {
		return nil
	}

	localIov := unix.Iovec{Base: &localBuf[0]}
	localIov.SetLen(len(localBuf))

	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  len(localBuf),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),                        // Remote process PID
		uintptr(unsafe.Pointer(&localIov)),  // Local iovec
		uintptr(1),                          // Number of local iovecs
		uintptr(unsafe.Pointer(&remoteIov)), // Remote iovec
		uintptr(1),                          // Number of remote iovecs
		uintptr(0),                          // Flags (reserved for future use)
	)

	if errno != 0 {
		return fmt.Errorf("process_vm_readv failed: %s (errno: %d)", errno.Error(), errno)
	}

	if int(n) != len(localBuf) {
		return fmt.Errorf("partial read: %d of %d bytes", n, len(localBuf))
	}

	return nil
}

// ReadMemory reads size bytes at addr. Either the whole range is returned or an error.
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	pid := p.pid
	valid := pid != 0 && p.isReadableAddress(addr)
	p.mu.Unlock()

	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}
	if !valid {
		return nil, fmt.Errorf("%s: %w", addr.ToString(), process.ErrAddressNotMapped)
	}

	// the lock is not held across the system call
	data := make([]byte, size)
	if err := process_vm_readv(pid, data, addr); err != nil {
		return nil, fmt.Errorf("process_vm_readv: failed to read process memory at %s: %w", addr.ToString(), err)
	}

	return data, nil
}

// Package fault_context recovers the fault record and register snapshot of a
// crashed target from the notification pointer the host hands over.
package fault_context

import (
	"fmt"

	"crashdump/process"

	"github.com/pkg/errors"
)

// ExceptionAccessViolation is the fault code of an invalid memory access
const ExceptionAccessViolation uint32 = 0xC0000005

// ErrFaultContextUnavailable is returned when any step of the extraction fails
var ErrFaultContextUnavailable = errors.New("fault context unavailable")

// Record describes why execution stopped
type Record struct {
	Code       uint32
	Flags      uint32
	Address    uint32
	Parameters []uint32
}

// IsAccessViolation reports whether the record describes an invalid access
// carrying both the access kind and the offending address
func (r Record) IsAccessViolation() bool {
	return r.Code == ExceptionAccessViolation && len(r.Parameters) >= 2
}

// AccessViolation returns the access kind and target of an invalid access
func (r Record) AccessViolation() (write bool, addr uint32, ok bool) {
	if !r.IsAccessViolation() {
		return false, 0, false
	}
	return r.Parameters[0] != 0, r.Parameters[1], true
}

// Registers is the i386 register state at the moment of the fault
type Registers struct {
	Eip    uint32
	EFlags uint32

	Eax uint32
	Ebx uint32
	Ecx uint32
	Edx uint32

	Esp uint32
	Ebp uint32
	Esi uint32
	Edi uint32

	SegCs uint32
	SegDs uint32
	SegEs uint32
	SegFs uint32
	SegGs uint32
	SegSs uint32

	Dr0 uint32
	Dr1 uint32
	Dr2 uint32
	Dr3 uint32
	Dr6 uint32
	Dr7 uint32
}

// Context is everything recovered from the notification
type Context struct {
	Record    Record
	Registers Registers
}

// Reader is the structured read capability extraction needs; memory_cache.Cache provides it
type Reader interface {
	Unpack(addr process.ProcessMemoryAddress, v interface{}) error
}

// Extract follows the notification pointer inside the target: first the
// pointer pair, then the register snapshot, then the fault record. The
// notification is an address in the target's address space and is only ever
// read through r.
func Extract(r Reader, notification process.ProcessMemoryAddress) (Context, error) {
	var ptrs exceptionPointers32
	if err := r.Unpack(notification, &ptrs); err != nil {
		return Context{}, wrapUnavailable(err, "exception pointers", uint64(notification))
	}

	var ctx context32
	if err := r.Unpack(process.ProcessMemoryAddress(ptrs.ContextRecord), &ctx); err != nil {
		return Context{}, wrapUnavailable(err, "context record", uint64(ptrs.ContextRecord))
	}

	var rec exceptionRecord32
	if err := r.Unpack(process.ProcessMemoryAddress(ptrs.ExceptionRecord), &rec); err != nil {
		return Context{}, wrapUnavailable(err, "exception record", uint64(ptrs.ExceptionRecord))
	}

	return Context{
		Record:    recordFrom(&rec),
		Registers: registersFrom(&ctx),
	}, nil
}

func wrapUnavailable(cause error, what string, addr uint64) error {
	return errors.Wrap(ErrFaultContextUnavailable, fmt.Sprintf("read %s at %08X: %v", what, addr, cause))
}

func recordFrom(rec *exceptionRecord32) Record {
	n := rec.NumberParameters
	if n > MaximumParameters {
		n = MaximumParameters
	}
	params := make([]uint32, n)
	copy(params, rec.ExceptionInformation[:n])

	return Record{
		Code:       rec.ExceptionCode,
		Flags:      rec.ExceptionFlags,
		Address:    rec.ExceptionAddress,
		Parameters: params,
	}
}

func registersFrom(ctx *context32) Registers {
	return Registers{
		Eip:    ctx.Eip,
		EFlags: ctx.EFlags,
		Eax:    ctx.Eax,
		Ebx:    ctx.Ebx,
		Ecx:    ctx.Ecx,
		Edx:    ctx.Edx,
		Esp:    ctx.Esp,
		Ebp:    ctx.Ebp,
		Esi:    ctx.Esi,
		Edi:    ctx.Edi,
		SegCs:  ctx.SegCs,
		SegDs:  ctx.SegDs,
		SegEs:  ctx.SegEs,
		SegFs:  ctx.SegFs,
		SegGs:  ctx.SegGs,
		SegSs:  ctx.SegSs,
		Dr0:    ctx.Dr0,
		Dr1:    ctx.Dr1,
		Dr2:    ctx.Dr2,
		Dr3:    ctx.Dr3,
		Dr6:    ctx.Dr6,
		Dr7:    ctx.Dr7,
	}
}

package fault_context

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// The Pack functions produce the on-target encodings Extract reads. They let
// snapshots and fixtures be fabricated without a crashed process.

// PackPointers encodes the notification structure
func PackPointers(recordAddr, contextAddr uint32) ([]byte, error) {
	return pack(&exceptionPointers32{
		ExceptionRecord: recordAddr,
		ContextRecord:   contextAddr,
	})
}

// Pack encodes the record; more than MaximumParameters parameters is an error
func (r Record) Pack() ([]byte, error) {
	if len(r.Parameters) > MaximumParameters {
		return nil, errors.Errorf("record has %d parameters, at most %d fit", len(r.Parameters), MaximumParameters)
	}
	rec := exceptionRecord32{
		ExceptionCode:    r.Code,
		ExceptionFlags:   r.Flags,
		ExceptionAddress: r.Address,
		NumberParameters: uint32(len(r.Parameters)),
	}
	copy(rec.ExceptionInformation[:], r.Parameters)
	return pack(&rec)
}

// Pack encodes the registers as a full context record
func (r Registers) Pack() ([]byte, error) {
	return pack(&context32{
		Dr0:    r.Dr0,
		Dr1:    r.Dr1,
		Dr2:    r.Dr2,
		Dr3:    r.Dr3,
		Dr6:    r.Dr6,
		Dr7:    r.Dr7,
		SegGs:  r.SegGs,
		SegFs:  r.SegFs,
		SegEs:  r.SegEs,
		SegDs:  r.SegDs,
		Edi:    r.Edi,
		Esi:    r.Esi,
		Ebx:    r.Ebx,
		Edx:    r.Edx,
		Ecx:    r.Ecx,
		Eax:    r.Eax,
		Ebp:    r.Ebp,
		Eip:    r.Eip,
		SegCs:  r.SegCs,
		EFlags: r.EFlags,
		Esp:    r.Esp,
		SegSs:  r.SegSs,
	})
}

func pack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, v, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "struc.Pack() failed")
	}
	return buf.Bytes(), nil
}

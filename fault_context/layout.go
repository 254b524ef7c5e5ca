package fault_context

// On-target layouts of the 32-bit structures the fault notification points
// at. Field order and widths follow the i386 definitions; struc decodes them
// little-endian.

// MaximumParameters is the fixed capacity of the record's parameter array
const MaximumParameters = 15

type exceptionPointers32 struct {
	ExceptionRecord uint32
	ContextRecord   uint32
}

type exceptionRecord32 struct {
	ExceptionCode        uint32
	ExceptionFlags       uint32
	ExceptionRecord      uint32
	ExceptionAddress     uint32
	NumberParameters     uint32
	ExceptionInformation [MaximumParameters]uint32
}

type floatingSaveArea32 struct {
	ControlWord   uint32
	StatusWord    uint32
	TagWord       uint32
	ErrorOffset   uint32
	ErrorSelector uint32
	DataOffset    uint32
	DataSelector  uint32
	RegisterArea  [80]byte
	Cr0NpxState   uint32
}

type context32 struct {
	ContextFlags uint32

	Dr0 uint32
	Dr1 uint32
	Dr2 uint32
	Dr3 uint32
	Dr6 uint32
	Dr7 uint32

	FloatSave floatingSaveArea32

	SegGs uint32
	SegFs uint32
	SegEs uint32
	SegDs uint32

	Edi uint32
	Esi uint32
	Ebx uint32
	Edx uint32
	Ecx uint32
	Eax uint32

	Ebp    uint32
	Eip    uint32
	SegCs  uint32
	EFlags uint32
	Esp    uint32
	SegSs  uint32

	ExtendedRegisters [512]byte
}

// Sizes of the encoded structures
const (
	ExceptionPointersSize = 8
	ExceptionRecordSize   = 80
	ContextSize           = 716
)

package zvm

// FunctionSafety refers to whether a function can be compiled and run
// without its locals and stack ever being part of a saved state.
// Safe functions are never saved and can be compiled aggressively, Unsafe
// functions must keep a layout that can be serialised and restored, and
// SafetyPending functions have not been classified yet and may need to be
// recompiled once they are.
type FunctionSafety uint8

const (
	SafetyPending FunctionSafety = iota
	Safe
	Unsafe
)

func (s FunctionSafety) String() string {
	switch s {
	case Safe:
		return "safe"
	case Unsafe:
		return "unsafe"
	default:
		return "pending"
	}
}

// Function is the result shape of whole-function decompilation.
type Function struct {
	Addr   uint32
	Code   string
	Calls  map[uint32]struct{}
	Locals uint8
	Safe   bool
}

// ClassifyBlock classifies a run of instructions: any instruction that
// hands control back to the host makes it Unsafe.
func ClassifyBlock(insts []*Instruction) FunctionSafety {
	if len(insts) == 0 {
		return SafetyPending
	}
	for _, inst := range insts {
		if inst.PausesVM {
			return Unsafe
		}
	}
	return Safe
}

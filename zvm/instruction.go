package zvm

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/zdecomp/zvm/program"
)

// OperandKind tags where an operand's value comes from and whether it is
// read as a signed 16 bit number.
type OperandKind uint8

const (
	Constant OperandKind = iota
	SignedConstant
	StackPointer
	SignedStackPointer
	LocalVariable
	SignedLocalVariable
	GlobalVariable
	SignedGlobalVariable
)

// Operand is one decoded instruction operand. Value holds the constant bit
// pattern for constants, the local slot (0-14) for locals and the memory
// address of the global for globals. It is unused for stack operands.
type Operand struct {
	Kind  OperandKind
	Value uint16
}

func (op Operand) Signed() bool {
	switch op.Kind {
	case SignedConstant, SignedStackPointer, SignedLocalVariable, SignedGlobalVariable:
		return true
	}
	return false
}

func (op Operand) String() string {
	switch op.Kind {
	case Constant:
		return fmt.Sprintf("#%d", op.Value)
	case SignedConstant:
		return fmt.Sprintf("#%d", int16(op.Value))
	case StackPointer, SignedStackPointer:
		return "sp"
	case LocalVariable, SignedLocalVariable:
		return fmt.Sprintf("L%02d", op.Value)
	default:
		return fmt.Sprintf("G@0x%04x", op.Value)
	}
}

// BranchTarget is a decoded branch suffix. Offsets 0 and 1 mean return false
// and return true rather than a jump.
type BranchTarget struct {
	IfTrue bool
	Offset int16
}

// Instruction is one fully decoded Z-code instruction.
type Instruction struct {
	Addr     uint32
	Opcode   uint16 // EXT opcodes are numbered from 1000
	Operands []Operand
	Result   *uint8 // store variable, when a store byte was consumed
	Stores   bool
	Branch   *BranchTarget
	Branches bool    // Branch != nil and the instruction does not pause the VM
	Text     *uint32 // start of inline text for print and print_ret
	Next     uint32
	// EndsBlock is true when this is the last instruction of a block
	EndsBlock bool
	PausesVM  bool
}

// Length is the number of bytes the instruction occupies.
func (inst *Instruction) Length() uint32 {
	return inst.Next - inst.Addr
}

// Name returns the opcode mnemonic for the given story version.
func (inst *Instruction) Name(version uint8) string {
	return program.OpcodeName(inst.Opcode, version)
}

// Format renders the instruction as a one-line disassembly.
func (inst *Instruction) Format(version uint8) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%5x: %s", inst.Addr, inst.Name(version))
	for i, op := range inst.Operands {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte(',')
		}
		sb.WriteString(op.String())
	}
	if inst.Result != nil {
		fmt.Fprintf(&sb, " -> %s", variableName(*inst.Result))
	}
	if inst.Branch != nil {
		fmt.Fprintf(&sb, " ?%s%s", map[bool]string{true: "", false: "~"}[inst.Branch.IfTrue], branchTargetName(inst))
	}
	if inst.Text != nil {
		fmt.Fprintf(&sb, " text@0x%x", *inst.Text)
	}
	return sb.String()
}

func variableName(v uint8) string {
	switch {
	case v == 0:
		return "sp"
	case v < 16:
		return fmt.Sprintf("L%02d", v-1)
	default:
		return fmt.Sprintf("G%02x", v-16)
	}
}

func branchTargetName(inst *Instruction) string {
	switch inst.Branch.Offset {
	case 0:
		return "rfalse"
	case 1:
		return "rtrue"
	}
	return fmt.Sprintf("0x%x", branchDestination(inst))
}

// BranchDestination returns where a taken branch continues, or false when
// there is no branch or the branch returns instead.
func (inst *Instruction) BranchDestination() (uint32, bool) {
	if inst.Branch == nil || inst.Branch.Offset == 0 || inst.Branch.Offset == 1 {
		return 0, false
	}
	return branchDestination(inst), true
}

// branchDestination is the address a non-sentinel branch continues at.
func branchDestination(inst *Instruction) uint32 {
	return uint32(int64(inst.Next) + int64(inst.Branch.Offset) - 2)
}

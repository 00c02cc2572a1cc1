package zvm

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/zdecomp/log"
	"github.com/colorfulnotion/zdecomp/zerrors"
)

// blockPrologue declares the working registers every block assumes.
const blockPrologue = "var l=e.l,s=e.s,t=0;"

// Fragment is the JavaScript for one basic block, to be compiled by the host
// as new Function('e', Code).
type Fragment struct {
	Addr uint32
	Code string

	Next         uint32   // address following the block's last instruction
	Instructions int      // number of instructions in the block
	Calls        []uint32 // routine addresses of calls with constant targets
	PausesVM     bool     // the block hands control back to the host
}

// Safety classifies the fragment for the function layer.
func (f *Fragment) Safety() FunctionSafety {
	if f.Instructions == 0 {
		return SafetyPending
	}
	if f.PausesVM {
		return Unsafe
	}
	return Safe
}

// BasicBlock is the list of decoded instructions of one block.
type BasicBlock struct {
	Addr         uint32
	Instructions []*Instruction
}

// Last returns the block ending instruction.
func (bb *BasicBlock) Last() *Instruction {
	if len(bb.Instructions) == 0 {
		return nil
	}
	return bb.Instructions[len(bb.Instructions)-1]
}

func (bb *BasicBlock) String(version uint8) string {
	var sb strings.Builder
	for _, inst := range bb.Instructions {
		sb.WriteString(inst.Format(version))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// decodeBlock decodes instructions from addr until one ends the block.
func decodeBlock(img *Image, defs Definitions, globals uint16, addr uint32, maxInstructions int) (*BasicBlock, error) {
	if addr >= img.Len() {
		return nil, fmt.Errorf("block at 0x%x in image of %d bytes: %w", addr, img.Len(), zerrors.ErrAddressOutOfRange)
	}
	img.SetPosition(addr)
	bb := &BasicBlock{Addr: addr}
	for {
		if maxInstructions > 0 && len(bb.Instructions) >= maxInstructions {
			return nil, fmt.Errorf("block at 0x%x after %d instructions: %w", addr, len(bb.Instructions), zerrors.ErrBlockTooLong)
		}
		inst, err := DecodeInstruction(img, defs, globals)
		if err != nil {
			return nil, err
		}
		bb.Instructions = append(bb.Instructions, inst)
		if inst.EndsBlock {
			return bb, nil
		}
	}
}

// renderBlock decodes and renders the block starting at addr.
func (g *generator) renderBlock(img *Image, defs Definitions, addr uint32, maxInstructions int) (*Fragment, error) {
	bb, err := decodeBlock(img, defs, g.globals, addr, maxInstructions)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(blockPrologue)
	frag := &Fragment{Addr: addr, Instructions: len(bb.Instructions)}
	for _, inst := range bb.Instructions {
		code, err := g.renderInstruction(inst)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "\n/* %d/%d */ %s;", inst.Addr, inst.Opcode, code)
		if target, ok := g.callTarget(inst); ok {
			frag.Calls = append(frag.Calls, target)
		}
		frag.PausesVM = frag.PausesVM || inst.PausesVM
	}
	frag.Code = sb.String()
	frag.Next = bb.Last().Next

	log.Debug(log.CodegenMonitoring, "block rendered", "addr", addr, "instructions", frag.Instructions, "bytes", frag.Next-addr)
	return frag, nil
}

// callTarget returns the unpacked routine address of a call whose routine
// is a constant. Versions 6 and 7 routine offsets are not applied.
func (g *generator) callTarget(inst *Instruction) (uint32, bool) {
	switch inst.Opcode {
	case CALL_2S, CALL_2N, CALL_1S, CALL_VS, CALL_VS2, CALL_VN, CALL_VN2:
	case CALL_1N:
		if g.version < 5 {
			return 0, false
		}
	default:
		return 0, false
	}
	if len(inst.Operands) == 0 || inst.Operands[0].Kind != Constant || inst.Operands[0].Value == 0 {
		return 0, false
	}
	return uint32(inst.Operands[0].Value) * g.packedMultiplier, true
}

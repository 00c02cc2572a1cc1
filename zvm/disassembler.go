package zvm

import (
	"fmt"

	"github.com/colorfulnotion/zdecomp/log"
)

type operandEncoding uint8

const (
	largeConstant operandEncoding = iota
	smallConstant
	variable
	omitted
)

// appendOperandEncodings unpacks up to four 2-bit operand type codes from a
// type byte, stopping at the first omitted code.
func appendOperandEncodings(types uint8, encodings []operandEncoding) []operandEncoding {
	for i := 0; i < 4; i++ {
		enc := operandEncoding(types >> 6)
		if enc == omitted {
			break
		}
		encodings = append(encodings, enc)
		types <<= 2
	}
	return encodings
}

// storesWithoutDefinition lists the opcodes whose store byte must be consumed
// even though their definition does not mark them as storing: call_2s,
// call_1s, call_vs, call_vs2 and restore_undo. Calls pass the store variable
// to the runtime and restore_undo's result is written on resume.
func storesWithoutDefinition(opcode uint16) bool {
	switch opcode {
	case CALL_2S, CALL_1S, CALL_VS, CALL_VS2, RESTORE_UNDO:
		return true
	}
	return false
}

// DecodeInstruction decodes the instruction at the image's current position
// and leaves the cursor just past it.
func DecodeInstruction(img *Image, defs Definitions, globals uint16) (*Instruction, error) {
	addr := img.Position()
	opcodeByte := img.ReadU8()

	var opcode uint16
	encodings := make([]operandEncoding, 0, 8)

	switch {
	// Long 2OP
	case opcodeByte < 0x80:
		opcode = uint16(opcodeByte & 0x1F)
		encodings = append(encodings, smallConstant, smallConstant)
		if opcodeByte&0x40 != 0 {
			encodings[0] = variable
		}
		if opcodeByte&0x20 != 0 {
			encodings[1] = variable
		}
	// Short 1OP
	case opcodeByte < 0xB0:
		opcode = uint16(opcodeByte & 0x8F)
		encodings = appendOperandEncodings(opcodeByte<<2|0x3F, encodings)
	// 0OP
	case opcodeByte != 0xBE && opcodeByte < 0xC0:
		opcode = uint16(opcodeByte)
	// EXT and VAR
	default:
		switch {
		case opcodeByte == 0xBE:
			opcode = ExtBase + uint16(img.ReadU8())
		case opcodeByte < 0xE0:
			opcode = uint16(opcodeByte & 0x1F)
		default:
			opcode = uint16(opcodeByte)
		}
		encodings = appendOperandEncodings(img.ReadU8(), encodings)
		if opcode == CALL_VS2 || opcode == CALL_VN2 {
			encodings = appendOperandEncodings(img.ReadU8(), encodings)
		}
	}

	def := defs.Lookup(opcode)

	var operands []Operand
	if len(encodings) > 0 {
		operands = make([]Operand, 0, len(encodings))
	}
	for i, enc := range encodings {
		operands = append(operands, readOperand(img, enc, def.OperandType(i), globals))
	}

	inst := &Instruction{
		Addr:     addr,
		Opcode:   opcode,
		Operands: operands,
		Stores:   def.Stores,
	}

	if def.Stores || storesWithoutDefinition(opcode) {
		result := img.ReadU8()
		inst.Result = &result
	}

	if def.Branches {
		first := img.ReadU8()
		target := &BranchTarget{IfTrue: first&0x80 != 0}
		if first&0x40 == 0 {
			// 14 bit signed offset across two bytes
			raw := uint16(first&0x3F)<<8 | uint16(img.ReadU8())
			target.Offset = int16(raw<<2) >> 2
		} else {
			target.Offset = int16(first & 0x3F)
		}
		inst.Branch = target
	}
	inst.Branches = def.Branches && !def.PausesVM

	if opcode == PRINT || opcode == PRINT_RET {
		text := img.Position()
		for {
			// the terminating word has its top bit set and is part of the text
			if img.ReadU16()&0x8000 != 0 || img.Err() != nil {
				break
			}
		}
		inst.Text = &text
	}

	if err := img.Err(); err != nil {
		return nil, fmt.Errorf("decode opcode %d at 0x%x: %w", opcode, addr, err)
	}

	inst.Next = img.Position()
	inst.EndsBlock = def.EndsBlock
	inst.PausesVM = def.PausesVM

	log.Trace(log.DecoderMonitoring, "decoded", "addr", addr, "opcode", opcode, "len", inst.Next-addr)
	return inst, nil
}

func readOperand(img *Image, enc operandEncoding, typ OperandType, globals uint16) Operand {
	signed := typ == Signed
	switch enc {
	case largeConstant:
		if signed {
			return Operand{Kind: SignedConstant, Value: img.ReadU16()}
		}
		return Operand{Kind: Constant, Value: img.ReadU16()}
	case smallConstant:
		// a small constant is a byte in 0-255 whether or not the operand is signed
		if signed {
			return Operand{Kind: SignedConstant, Value: uint16(img.ReadU8())}
		}
		return Operand{Kind: Constant, Value: uint16(img.ReadU8())}
	}

	v := img.ReadU8()
	switch {
	case v == 0:
		if signed {
			return Operand{Kind: SignedStackPointer}
		}
		return Operand{Kind: StackPointer}
	case v < 16:
		if signed {
			return Operand{Kind: SignedLocalVariable, Value: uint16(v - 1)}
		}
		return Operand{Kind: LocalVariable, Value: uint16(v - 1)}
	default:
		addr := globals + uint16(v-16)*2
		if signed {
			return Operand{Kind: SignedGlobalVariable, Value: addr}
		}
		return Operand{Kind: GlobalVariable, Value: addr}
	}
}

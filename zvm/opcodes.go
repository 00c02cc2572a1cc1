package zvm

import (
	"fmt"

	"github.com/colorfulnotion/zdecomp/zerrors"
)

// OperandType is the declared signedness of an operand position.
type OperandType uint8

const (
	Unsigned OperandType = iota
	Signed
)

// OpcodeDefinition describes the shape of an opcode: which suffix bytes follow
// its operands and how it affects the block being generated.
type OpcodeDefinition struct {
	Stores    bool
	Branches  bool
	EndsBlock bool
	PausesVM  bool
	Operands  []OperandType // positions past the end are Unsigned
}

// OperandType returns the declared signedness of operand i.
func (d OpcodeDefinition) OperandType(i int) OperandType {
	if i < len(d.Operands) {
		return d.Operands[i]
	}
	return Unsigned
}

// Definitions maps opcode numbers to their shape for one story version.
// It is read-only after NewDefinitions returns and may be shared.
type Definitions map[uint16]OpcodeDefinition

// Lookup returns the definition of opcode, or the zero definition (no store,
// no branch, no block end, no pause, unsigned operands) if it has none.
func (defs Definitions) Lookup(opcode uint16) OpcodeDefinition {
	return defs[opcode]
}

// SupportedVersion reports whether the decompiler has opcode rules for a
// story version.
func SupportedVersion(version uint8) bool {
	return version >= 3 && version <= 8
}

func simpleOperands(operands ...OperandType) OpcodeDefinition {
	return OpcodeDefinition{Operands: operands}
}

func endBlock() OpcodeDefinition {
	return OpcodeDefinition{EndsBlock: true}
}

func pauseVM() OpcodeDefinition {
	return OpcodeDefinition{EndsBlock: true, PausesVM: true}
}

func branch() OpcodeDefinition {
	return OpcodeDefinition{Branches: true}
}

func branchAndPauseVM() OpcodeDefinition {
	return OpcodeDefinition{Branches: true, EndsBlock: true, PausesVM: true}
}

func branchWithOperands(operands ...OperandType) OpcodeDefinition {
	return OpcodeDefinition{Branches: true, Operands: operands}
}

func store() OpcodeDefinition {
	return OpcodeDefinition{Stores: true}
}

func storeWithOperands(operands ...OperandType) OpcodeDefinition {
	return OpcodeDefinition{Stores: true, Operands: operands}
}

func storeAndBranch() OpcodeDefinition {
	return OpcodeDefinition{Stores: true, Branches: true}
}

func storeAndPauseVM() OpcodeDefinition {
	return OpcodeDefinition{Stores: true, EndsBlock: true, PausesVM: true}
}

// NewDefinitions builds the opcode table for a story version. Versions 6 and 7
// follow the version 5 rules.
func NewDefinitions(version uint8) (Definitions, error) {
	if !SupportedVersion(version) {
		return nil, fmt.Errorf("version %d: %w", version, zerrors.ErrUnsupportedVersion)
	}

	defs := Definitions{
		JE:              branch(),
		JL:              branchWithOperands(Signed, Signed),
		JG:              branchWithOperands(Signed, Signed),
		DEC_CHK:         branchWithOperands(Unsigned, Signed),
		INC_CHK:         branchWithOperands(Unsigned, Signed),
		JIN:             branch(),
		TEST:            branch(),
		OR:              store(),
		AND:             store(),
		TEST_ATTR:       branch(),
		LOADW:           storeWithOperands(Unsigned, Signed),
		LOADB:           storeWithOperands(Unsigned, Signed),
		GET_PROP:        store(),
		GET_PROP_ADDR:   store(),
		GET_NEXT_PROP:   store(),
		ADD:             store(),
		SUB:             store(),
		MUL:             store(),
		DIV:             storeWithOperands(Signed, Signed),
		MOD:             storeWithOperands(Signed, Signed),
		CALL_2S:         endBlock(),
		CALL_2N:         endBlock(),
		THROW:           endBlock(),
		JZ:              branch(),
		GET_SIBLING:     storeAndBranch(),
		GET_CHILD:       storeAndBranch(),
		GET_PARENT:      store(),
		GET_PROP_LENGTH: store(),
		CALL_1S:         endBlock(),
		RET:             endBlock(),
		JUMP:            OpcodeDefinition{EndsBlock: true, Operands: []OperandType{Signed}},
		LOAD:            store(),
		RTRUE:           endBlock(),
		RFALSE:          endBlock(),
		PRINT_RET:       endBlock(),
		RESTART:         endBlock(),
		RET_POPPED:      endBlock(),
		QUIT:            pauseVM(),
		VERIFY:          branch(),
		PIRACY:          branch(),
		CALL_VS:         endBlock(),
		STOREW:          simpleOperands(Unsigned, Signed),
		STOREB:          simpleOperands(Unsigned, Signed),
		PRINT_NUM:       simpleOperands(Signed),
		RANDOM:          storeWithOperands(Signed),
		CALL_VS2:        endBlock(),
		ERASE_WINDOW:    simpleOperands(Signed),
		OUTPUT_STREAM:   endBlock(),
		INPUT_STREAM:    pauseVM(),
		READ_CHAR:       storeAndPauseVM(),
		SCAN_TABLE:      storeAndBranch(),
		NOT:             store(),
		CALL_VN:         endBlock(),
		CALL_VN2:        endBlock(),
		CHECK_ARG_COUNT: branch(),
		SAVE:            storeAndPauseVM(),
		RESTORE:         storeAndPauseVM(),
		LOG_SHIFT:       storeWithOperands(Unsigned, Signed),
		ART_SHIFT:       storeWithOperands(Signed, Signed),
		SET_FONT:        store(),
		SAVE_UNDO:       store(),
		CHECK_UNICODE:   store(),
		GESTALT:         store(),
		// restore_undo has a store byte but is not marked as storing; the
		// decoder consumes it directly.
	}

	if version < 4 {
		defs[SAVE_V3] = branchAndPauseVM()
		defs[RESTORE_V3] = branchAndPauseVM()
		defs[SHOW_STATUS] = pauseVM()
	} else {
		defs[SAVE_V3] = storeAndPauseVM()
		defs[RESTORE_V3] = storeAndPauseVM()
	}

	if version < 5 {
		defs[NOT_V4] = store()
		defs[READ] = pauseVM()
	} else {
		defs[CALL_1N] = endBlock()
		defs[CATCH] = store()
		defs[READ] = storeAndPauseVM()
	}

	return defs, nil
}

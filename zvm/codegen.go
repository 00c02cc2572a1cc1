package zvm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/colorfulnotion/zdecomp/log"
	"github.com/colorfulnotion/zdecomp/zerrors"
)

// UnknownOpcodeError reports an opcode with no code generation template.
type UnknownOpcodeError struct {
	Opcode uint16
	Addr   uint32
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode #%d at pc=%d: %v", e.Opcode, e.Addr, zerrors.ErrUnknownOpcode)
}

func (e *UnknownOpcodeError) Unwrap() error {
	return zerrors.ErrUnknownOpcode
}

// generator turns decoded instructions into JavaScript for the host runtime.
// The generated code runs inside function(e) where e is the runtime: e.m is
// a DataView over memory, e.ram a DataView over writable memory, e.s the
// stack with e.sp its pointer, e.l the locals and e.pc the resume address.
type generator struct {
	version          uint8
	globals          uint16
	packedMultiplier uint32
}

type jsTemplate func(g *generator, inst *Instruction, ops []string) (string, error)

var zcodeToJS = map[uint16]jsTemplate{
	// 2OP
	JE: func(g *generator, inst *Instruction, ops []string) (string, error) {
		if len(ops) == 2 {
			return ops[0] + "===" + ops[1], nil
		}
		return runtime("jeq", ops), nil
	},
	JL:            joined("<"),
	JG:            joined(">"),
	DEC_CHK:       formatted("(e.incdec(%s,-1)<<16>>16)<%s", 0, 1),
	INC_CHK:       formatted("(e.incdec(%s,1)<<16>>16)>%s", 0, 1),
	JIN:           runtimeCall("jin"),
	TEST:          runtimeCall("test"),
	OR:            joined("|"),
	AND:           joined("&"),
	TEST_ATTR:     runtimeCall("test_attr"),
	SET_ATTR:      runtimeCall("set_attr"),
	CLEAR_ATTR:    runtimeCall("clear_attr"),
	STORE:         formatted("e.indirect(%s,%s)", 0, 1),
	INSERT_OBJ:    runtimeCall("insert_obj"),
	LOADW:         formatted("e.m.getUint16(%s+2*%s)", 0, 1),
	LOADB:         formatted("e.m.getUint8(%s+%s)", 0, 1),
	GET_PROP:      runtimeCall("get_prop"),
	GET_PROP_ADDR: runtimeCall("find_prop"),
	GET_NEXT_PROP: formatted("e.find_prop(%s,0,%s)", 0, 1),
	ADD:           joined("+"),
	SUB:           joined("-"),
	MUL:           joined("*"),
	// signed division truncating toward zero; JS % already truncates
	DIV:        formatted("(%s/%s)|0", 0, 1),
	MOD:        joined("%"),
	CALL_2S:    generateCall(),
	CALL_2N:    generateCall(),
	SET_COLOUR: runtimeCall("set_colour"),
	THROW:      formatted("while(e.frames.length+1>%[2]s){e.frameptr=e.frames.pop()}return %[1]s", 0, 1),

	// 1OP
	JZ:              formatted("%s===0", 0),
	GET_SIBLING:     runtimeCall("get_sibling"),
	GET_CHILD:       runtimeCall("get_child"),
	GET_PARENT:      runtimeCall("get_parent"),
	GET_PROP_LENGTH: runtimeCall("get_prop_len"),
	INC:             formatted("e.incdec(%s,1)", 0),
	DEC:             formatted("e.incdec(%s,-1)", 0),
	PRINT_ADDR:      formatted("e.print(2,%s)", 0),
	CALL_1S:         generateCall(),
	REMOVE_OBJ:      runtimeCall("remove_obj"),
	PRINT_OBJ:       formatted("e.print(3,%s)", 0),
	RET:             formatted("return %s", 0),
	JUMP: func(g *generator, inst *Instruction, ops []string) (string, error) {
		return fmt.Sprintf("e.pc=%s+%d", operand(ops, 0), int64(inst.Next)-2), nil
	},
	PRINT_PADDR: func(g *generator, inst *Instruction, ops []string) (string, error) {
		return fmt.Sprintf("e.print(2,%s*%d)", operand(ops, 0), g.packedMultiplier), nil
	},
	LOAD: formatted("e.indirect(%s)", 0),
	// not before version 5, call_1n from version 5
	NOT_V4: func(g *generator, inst *Instruction, ops []string) (string, error) {
		if g.version < 5 {
			return "~" + operand(ops, 0), nil
		}
		return renderCall(inst, ops), nil
	},

	// 0OP
	RTRUE:  constant("return 1"),
	RFALSE: constant("return 0"),
	PRINT: func(g *generator, inst *Instruction, ops []string) (string, error) {
		text, err := inlineText(inst)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("e.print(2,%d)", text), nil
	},
	PRINT_RET: func(g *generator, inst *Instruction, ops []string) (string, error) {
		text, err := inlineText(inst)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("e.print(2,%d);e.print(1,13);return 1", text), nil
	},
	NOP:        constant(""),
	SAVE_V3:    generateSaveRestore("save"),
	RESTORE_V3: generateSaveRestore("restore"),
	RESTART:    constant("e.restart()"),
	RET_POPPED: constant("return s[--e.sp]"),
	// pop before version 5, catch from version 5
	POP: func(g *generator, inst *Instruction, ops []string) (string, error) {
		if g.version < 5 {
			return "s[--e.sp]", nil
		}
		return "e.frames.length+1", nil
	},
	QUIT:     constant("e.quit=1;e.Glk.glk_exit()"),
	NEW_LINE: constant("e.print(1,13)"),
	SHOW_STATUS: func(g *generator, inst *Instruction, ops []string) (string, error) {
		if g.version < 4 {
			return "e.v3_status()", nil
		}
		return "", nil
	},
	VERIFY: constant("1"),
	PIRACY: constant("1"),

	// VAR
	CALL_VS:  generateCall(),
	STOREW:   formatted("e.ram.setUint16(%s+2*%s,%s)", 0, 1, 2),
	STOREB:   formatted("e.ram.setUint8(%s+%s,%s)", 0, 1, 2),
	PUT_PROP: runtimeCall("put_prop"),
	READ: func(g *generator, inst *Instruction, ops []string) (string, error) {
		storer := 0
		if g.version >= 5 {
			v, err := resultVar(inst)
			if err != nil {
				return "", err
			}
			storer = int(v)
		}
		return fmt.Sprintf("e.read(%d,%s)", storer, strings.Join(ops, ",")), nil
	},
	PRINT_CHAR:   formatted("e.print(4,%s)", 0),
	PRINT_NUM:    formatted("e.print(0,%s)", 0),
	RANDOM:       runtimeCall("random"),
	PUSH:         formatted("t=%s;s[e.sp++]=t", 0),
	PULL:         formatted("e.indirect(%s,s[--e.sp])", 0),
	SPLIT_WINDOW: runtimeCall("split_window"),
	SET_WINDOW:   runtimeCall("set_window"),
	CALL_VS2:     generateCall(),
	ERASE_WINDOW: runtimeCall("erase_window"),
	ERASE_LINE:   runtimeCall("erase_line"),
	// the runtime's cursor is zero based
	SET_CURSOR:     formatted("e.set_cursor(%s-1,%s-1)", 0, 1),
	GET_CURSOR:     runtimeCall("get_cursor"),
	SET_TEXT_STYLE: runtimeCall("set_style"),
	BUFFER_MODE:    constant(""),
	OUTPUT_STREAM: func(g *generator, inst *Instruction, ops []string) (string, error) {
		return fmt.Sprintf("e.pc=%d;e.output_stream(%s)", inst.Next, strings.Join(ops, ",")), nil
	},
	INPUT_STREAM: runtimeCall("input_stream"),
	SOUND_EFFECT: constant(""),
	READ_CHAR: func(g *generator, inst *Instruction, ops []string) (string, error) {
		v, err := resultVar(inst)
		if err != nil {
			return "", err
		}
		args := "1"
		if len(ops) > 0 {
			args = strings.Join(ops, ",")
		}
		return fmt.Sprintf("e.read_char(%d,%s)", v, args), nil
	},
	SCAN_TABLE:      runtimeCall("scan_table"),
	NOT:             formatted("~%s", 0),
	CALL_VN:         generateCall(),
	CALL_VN2:        generateCall(),
	TOKENISE:        runtimeCall("tokenise"),
	ENCODE_TEXT:     runtimeCall("encode_text"),
	COPY_TABLE:      runtimeCall("copy_table"),
	PRINT_TABLE:     runtimeCall("print_table"),
	CHECK_ARG_COUNT: formatted("e.stack.getUint8(e.frameptr+5)&(1<<(%s-1))", 0),

	// EXT
	SAVE:      generateSaveRestore("save"),
	RESTORE:   generateSaveRestore("restore"),
	LOG_SHIFT: runtimeCall("log_shift"),
	ART_SHIFT: runtimeCall("art_shift"),
	SET_FONT:  runtimeCall("set_font"),
	SAVE_UNDO: func(g *generator, inst *Instruction, ops []string) (string, error) {
		v, err := resultVar(inst)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("e.save_undo(%d,%d)", inst.Next, v), nil
	},
	RESTORE_UNDO:    constant("if(e.restore_undo())return"),
	PRINT_UNICODE:   formatted("e.print(1,%s)", 0),
	CHECK_UNICODE:   constant("3"),
	SET_TRUE_COLOUR: runtimeCall("set_true_colour"),
	GESTALT:         runtimeCall("gestalt"),
}

func operand(ops []string, i int) string {
	if i < len(ops) {
		return ops[i]
	}
	return "null"
}

func runtime(name string, ops []string) string {
	return fmt.Sprintf("e.%s(%s)", name, strings.Join(ops, ","))
}

func runtimeCall(name string) jsTemplate {
	return func(g *generator, inst *Instruction, ops []string) (string, error) {
		return runtime(name, ops), nil
	}
}

func joined(op string) jsTemplate {
	return func(g *generator, inst *Instruction, ops []string) (string, error) {
		return strings.Join(ops, op), nil
	}
}

func constant(code string) jsTemplate {
	return func(g *generator, inst *Instruction, ops []string) (string, error) {
		return code, nil
	}
}

// formatted fills format with the operands at the given positions.
func formatted(format string, positions ...int) jsTemplate {
	return func(g *generator, inst *Instruction, ops []string) (string, error) {
		args := make([]any, len(positions))
		for i, p := range positions {
			args[i] = operand(ops, p)
		}
		return fmt.Sprintf(format, args...), nil
	}
}

func generateCall() jsTemplate {
	return func(g *generator, inst *Instruction, ops []string) (string, error) {
		return renderCall(inst, ops), nil
	}
}

// renderCall passes the routine, the store variable (-1 to discard the
// result), the return address and the arguments to the runtime.
func renderCall(inst *Instruction, ops []string) string {
	storer := -1
	if inst.Result != nil {
		storer = int(*inst.Result)
	}
	var args []string
	if len(ops) > 1 {
		args = ops[1:]
	}
	return fmt.Sprintf("e.call(%s,%d,%d,[%s])", operand(ops, 0), storer, inst.Next, strings.Join(args, ","))
}

// generateSaveRestore resumes at the store byte from version 4 and at the
// branch bytes in version 3, so the runtime can re-read them after a restore.
func generateSaveRestore(name string) jsTemplate {
	return func(g *generator, inst *Instruction, ops []string) (string, error) {
		return fmt.Sprintf("e.%s(%d)", name, g.resumeAddr(inst)), nil
	}
}

func (g *generator) resumeAddr(inst *Instruction) uint32 {
	if g.version == 3 {
		return inst.Addr + 1
	}
	return inst.Next - 1
}

func resultVar(inst *Instruction) (uint8, error) {
	if inst.Result == nil {
		return 0, fmt.Errorf("opcode %d at pc=%d has no store variable", inst.Opcode, inst.Addr)
	}
	return *inst.Result, nil
}

func inlineText(inst *Instruction) (uint32, error) {
	if inst.Text == nil {
		return 0, fmt.Errorf("opcode %d at pc=%d has no inline text", inst.Opcode, inst.Addr)
	}
	return *inst.Text, nil
}

func renderOperand(op Operand) string {
	switch op.Kind {
	case Constant:
		return strconv.Itoa(int(op.Value))
	case SignedConstant:
		return strconv.Itoa(int(int16(op.Value)))
	case StackPointer:
		return "s[--e.sp]"
	case SignedStackPointer:
		return "(s[--e.sp]<<16>>16)"
	case LocalVariable:
		return fmt.Sprintf("l[%d]", op.Value)
	case SignedLocalVariable:
		return fmt.Sprintf("(l[%d]<<16>>16)", op.Value)
	case GlobalVariable:
		return fmt.Sprintf("e.m.getUint16(%d)", op.Value)
	default:
		return fmt.Sprintf("e.m.getInt16(%d)", op.Value)
	}
}

// store wraps code so its value is written to variable v and is also the
// value of the resulting expression.
func (g *generator) store(v uint8, code string) string {
	switch {
	case v == 0:
		return fmt.Sprintf("t=%s,s[e.sp++]=t", code)
	case v < 16:
		return fmt.Sprintf("l[%d]=%s", v-1, code)
	default:
		return fmt.Sprintf("t=%s,e.ram.setUint16(%d,t),t", code, g.globals+uint16(v-16)*2)
	}
}

func branchTarget(inst *Instruction) string {
	switch inst.Branch.Offset {
	case 0, 1:
		return fmt.Sprintf("return %d", inst.Branch.Offset)
	}
	return fmt.Sprintf("e.pc=%d;return", branchDestination(inst))
}

// renderInstruction returns the statement for one instruction. The pause
// prefix records the next instruction as the resume point ahead of the
// instruction's own effect, so it is built first and the store and branch
// wrappers only ever apply to the body.
func (g *generator) renderInstruction(inst *Instruction) (string, error) {
	template, ok := zcodeToJS[inst.Opcode]
	if !ok {
		return "", &UnknownOpcodeError{Opcode: inst.Opcode, Addr: inst.Addr}
	}

	prefix := ""
	if inst.PausesVM {
		prefix = fmt.Sprintf("e.stop=1;e.pc=%d;", inst.Next)
	}

	ops := make([]string, len(inst.Operands))
	for i, op := range inst.Operands {
		ops[i] = renderOperand(op)
	}
	body, err := template(g, inst, ops)
	if err != nil {
		return "", err
	}

	if inst.Stores {
		v, err := resultVar(inst)
		if err != nil {
			return "", err
		}
		body = g.store(v, body)
	}

	// version 3 save and restore branch on resume instead
	if !inst.EndsBlock && inst.Branch != nil {
		negate := ""
		if !inst.Branch.IfTrue {
			negate = "!"
		}
		body = fmt.Sprintf("if(%s(%s)){%s}", negate, body, branchTarget(inst))
	}

	log.Trace(log.CodegenMonitoring, "rendered", "addr", inst.Addr, "opcode", inst.Opcode)
	return prefix + body, nil
}

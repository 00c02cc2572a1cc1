package program

import "fmt"

// Z-Machine opcode numbers.
// Long, short and variable forms share the 0-255 range as decoded by the
// disassembler: 2OP opcodes keep their low five bits (1-28), 1OP opcodes
// keep 0x80|number (128-143), 0OP opcodes are the raw byte (176-191) and VAR
// opcodes are the raw byte (224-255). EXT opcodes are 1000 + the second byte.

// 2OP
const (
	JE            = 1
	JL            = 2
	JG            = 3
	DEC_CHK       = 4
	INC_CHK       = 5
	JIN           = 6
	TEST          = 7
	OR            = 8
	AND           = 9
	TEST_ATTR     = 10
	SET_ATTR      = 11
	CLEAR_ATTR    = 12
	STORE         = 13
	INSERT_OBJ    = 14
	LOADW         = 15
	LOADB         = 16
	GET_PROP      = 17
	GET_PROP_ADDR = 18
	GET_NEXT_PROP = 19
	ADD           = 20
	SUB           = 21
	MUL           = 22
	DIV           = 23
	MOD           = 24
	CALL_2S       = 25
	CALL_2N       = 26
	SET_COLOUR    = 27
	THROW         = 28
)

// 1OP
const (
	JZ              = 128
	GET_SIBLING     = 129
	GET_CHILD       = 130
	GET_PARENT      = 131
	GET_PROP_LENGTH = 132
	INC             = 133
	DEC             = 134
	PRINT_ADDR      = 135
	CALL_1S         = 136
	REMOVE_OBJ      = 137
	PRINT_OBJ       = 138
	RET             = 139
	JUMP            = 140
	PRINT_PADDR     = 141
	LOAD            = 142
	NOT_V4          = 143 // versions 1-4
	CALL_1N         = 143 // version 5 onwards
)

// 0OP
const (
	RTRUE       = 176
	RFALSE      = 177
	PRINT       = 178
	PRINT_RET   = 179
	NOP         = 180
	SAVE_V3     = 181
	RESTORE_V3  = 182
	RESTART     = 183
	RET_POPPED  = 184
	POP         = 185 // versions 1-4
	CATCH       = 185 // version 5 onwards
	QUIT        = 186
	NEW_LINE    = 187
	SHOW_STATUS = 188
	VERIFY      = 189
	EXTENDED    = 190 // 0xBE prefix byte, never an opcode by itself
	PIRACY      = 191
)

// VAR
const (
	CALL_VS         = 224
	STOREW          = 225
	STOREB          = 226
	PUT_PROP        = 227
	READ            = 228
	PRINT_CHAR      = 229
	PRINT_NUM       = 230
	RANDOM          = 231
	PUSH            = 232
	PULL            = 233
	SPLIT_WINDOW    = 234
	SET_WINDOW      = 235
	CALL_VS2        = 236
	ERASE_WINDOW    = 237
	ERASE_LINE      = 238
	SET_CURSOR      = 239
	GET_CURSOR      = 240
	SET_TEXT_STYLE  = 241
	BUFFER_MODE     = 242
	OUTPUT_STREAM   = 243
	INPUT_STREAM    = 244
	SOUND_EFFECT    = 245
	READ_CHAR       = 246
	SCAN_TABLE      = 247
	NOT             = 248
	CALL_VN         = 249
	CALL_VN2        = 250
	TOKENISE        = 251
	ENCODE_TEXT     = 252
	COPY_TABLE      = 253
	PRINT_TABLE     = 254
	CHECK_ARG_COUNT = 255
)

// EXT
const (
	ExtBase         = 1000
	SAVE            = 1000
	RESTORE         = 1001
	LOG_SHIFT       = 1002
	ART_SHIFT       = 1003
	SET_FONT        = 1004
	SAVE_UNDO       = 1009
	RESTORE_UNDO    = 1010
	PRINT_UNICODE   = 1011
	CHECK_UNICODE   = 1012
	SET_TRUE_COLOUR = 1013
	GESTALT         = 1030
)

var opcodeNames = map[uint16]string{
	JE: "je", JL: "jl", JG: "jg", DEC_CHK: "dec_chk", INC_CHK: "inc_chk", JIN: "jin",
	TEST: "test", OR: "or", AND: "and", TEST_ATTR: "test_attr", SET_ATTR: "set_attr",
	CLEAR_ATTR: "clear_attr", STORE: "store", INSERT_OBJ: "insert_obj", LOADW: "loadw",
	LOADB: "loadb", GET_PROP: "get_prop", GET_PROP_ADDR: "get_prop_addr",
	GET_NEXT_PROP: "get_next_prop", ADD: "add", SUB: "sub", MUL: "mul", DIV: "div",
	MOD: "mod", CALL_2S: "call_2s", CALL_2N: "call_2n", SET_COLOUR: "set_colour", THROW: "throw",

	JZ: "jz", GET_SIBLING: "get_sibling", GET_CHILD: "get_child", GET_PARENT: "get_parent",
	GET_PROP_LENGTH: "get_prop_len", INC: "inc", DEC: "dec", PRINT_ADDR: "print_addr",
	CALL_1S: "call_1s", REMOVE_OBJ: "remove_obj", PRINT_OBJ: "print_obj", RET: "ret",
	JUMP: "jump", PRINT_PADDR: "print_paddr", LOAD: "load",

	RTRUE: "rtrue", RFALSE: "rfalse", PRINT: "print", PRINT_RET: "print_ret", NOP: "nop",
	SAVE_V3: "save", RESTORE_V3: "restore", RESTART: "restart", RET_POPPED: "ret_popped",
	QUIT: "quit", NEW_LINE: "new_line", SHOW_STATUS: "show_status", VERIFY: "verify",
	PIRACY: "piracy",

	CALL_VS: "call_vs", STOREW: "storew", STOREB: "storeb", PUT_PROP: "put_prop",
	READ: "read", PRINT_CHAR: "print_char", PRINT_NUM: "print_num", RANDOM: "random",
	PUSH: "push", PULL: "pull", SPLIT_WINDOW: "split_window", SET_WINDOW: "set_window",
	CALL_VS2: "call_vs2", ERASE_WINDOW: "erase_window", ERASE_LINE: "erase_line",
	SET_CURSOR: "set_cursor", GET_CURSOR: "get_cursor", SET_TEXT_STYLE: "set_text_style",
	BUFFER_MODE: "buffer_mode", OUTPUT_STREAM: "output_stream", INPUT_STREAM: "input_stream",
	SOUND_EFFECT: "sound_effect", READ_CHAR: "read_char", SCAN_TABLE: "scan_table",
	NOT: "not", CALL_VN: "call_vn", CALL_VN2: "call_vn2", TOKENISE: "tokenise",
	ENCODE_TEXT: "encode_text", COPY_TABLE: "copy_table", PRINT_TABLE: "print_table",
	CHECK_ARG_COUNT: "check_arg_count",

	SAVE: "save", RESTORE: "restore", LOG_SHIFT: "log_shift", ART_SHIFT: "art_shift",
	SET_FONT: "set_font", SAVE_UNDO: "save_undo", RESTORE_UNDO: "restore_undo",
	PRINT_UNICODE: "print_unicode", CHECK_UNICODE: "check_unicode",
	SET_TRUE_COLOUR: "set_true_colour", GESTALT: "gestalt",
}

// OpcodeName returns the mnemonic of an opcode for the given version.
func OpcodeName(opcode uint16, version uint8) string {
	switch opcode {
	case 143:
		if version < 5 {
			return "not"
		}
		return "call_1n"
	case 185:
		if version < 5 {
			return "pop"
		}
		return "catch"
	}
	if name, ok := opcodeNames[opcode]; ok {
		return name
	}
	if opcode >= ExtBase {
		return fmt.Sprintf("ext_%d", opcode-ExtBase)
	}
	return fmt.Sprintf("unknown_%d", opcode)
}

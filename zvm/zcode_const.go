package zvm

import (
	"github.com/colorfulnotion/zdecomp/zvm/program"
)

// Import all opcode constants from the zvm/program package
const (
	ExtBase = program.ExtBase

	// 2OP
	JE            = program.JE
	JL            = program.JL
	JG            = program.JG
	DEC_CHK       = program.DEC_CHK
	INC_CHK       = program.INC_CHK
	JIN           = program.JIN
	TEST          = program.TEST
	OR            = program.OR
	AND           = program.AND
	TEST_ATTR     = program.TEST_ATTR
	SET_ATTR      = program.SET_ATTR
	CLEAR_ATTR    = program.CLEAR_ATTR
	STORE         = program.STORE
	INSERT_OBJ    = program.INSERT_OBJ
	LOADW         = program.LOADW
	LOADB         = program.LOADB
	GET_PROP      = program.GET_PROP
	GET_PROP_ADDR = program.GET_PROP_ADDR
	GET_NEXT_PROP = program.GET_NEXT_PROP
	ADD           = program.ADD
	SUB           = program.SUB
	MUL           = program.MUL
	DIV           = program.DIV
	MOD           = program.MOD
	CALL_2S       = program.CALL_2S
	CALL_2N       = program.CALL_2N
	SET_COLOUR    = program.SET_COLOUR
	THROW         = program.THROW

	// 1OP
	JZ              = program.JZ
	GET_SIBLING     = program.GET_SIBLING
	GET_CHILD       = program.GET_CHILD
	GET_PARENT      = program.GET_PARENT
	GET_PROP_LENGTH = program.GET_PROP_LENGTH
	INC             = program.INC
	DEC             = program.DEC
	PRINT_ADDR      = program.PRINT_ADDR
	CALL_1S         = program.CALL_1S
	REMOVE_OBJ      = program.REMOVE_OBJ
	PRINT_OBJ       = program.PRINT_OBJ
	RET             = program.RET
	JUMP            = program.JUMP
	PRINT_PADDR     = program.PRINT_PADDR
	LOAD            = program.LOAD
	NOT_V4          = program.NOT_V4
	CALL_1N         = program.CALL_1N

	// 0OP
	RTRUE       = program.RTRUE
	RFALSE      = program.RFALSE
	PRINT       = program.PRINT
	PRINT_RET   = program.PRINT_RET
	NOP         = program.NOP
	SAVE_V3     = program.SAVE_V3
	RESTORE_V3  = program.RESTORE_V3
	RESTART     = program.RESTART
	RET_POPPED  = program.RET_POPPED
	POP         = program.POP
	CATCH       = program.CATCH
	QUIT        = program.QUIT
	NEW_LINE    = program.NEW_LINE
	SHOW_STATUS = program.SHOW_STATUS
	VERIFY      = program.VERIFY
	EXTENDED    = program.EXTENDED
	PIRACY      = program.PIRACY

	// VAR
	CALL_VS         = program.CALL_VS
	STOREW          = program.STOREW
	STOREB          = program.STOREB
	PUT_PROP        = program.PUT_PROP
	READ            = program.READ
	PRINT_CHAR      = program.PRINT_CHAR
	PRINT_NUM       = program.PRINT_NUM
	RANDOM          = program.RANDOM
	PUSH            = program.PUSH
	PULL            = program.PULL
	SPLIT_WINDOW    = program.SPLIT_WINDOW
	SET_WINDOW      = program.SET_WINDOW
	CALL_VS2        = program.CALL_VS2
	ERASE_WINDOW    = program.ERASE_WINDOW
	ERASE_LINE      = program.ERASE_LINE
	SET_CURSOR      = program.SET_CURSOR
	GET_CURSOR      = program.GET_CURSOR
	SET_TEXT_STYLE  = program.SET_TEXT_STYLE
	BUFFER_MODE     = program.BUFFER_MODE
	OUTPUT_STREAM   = program.OUTPUT_STREAM
	INPUT_STREAM    = program.INPUT_STREAM
	SOUND_EFFECT    = program.SOUND_EFFECT
	READ_CHAR       = program.READ_CHAR
	SCAN_TABLE      = program.SCAN_TABLE
	NOT             = program.NOT
	CALL_VN         = program.CALL_VN
	CALL_VN2        = program.CALL_VN2
	TOKENISE        = program.TOKENISE
	ENCODE_TEXT     = program.ENCODE_TEXT
	COPY_TABLE      = program.COPY_TABLE
	PRINT_TABLE     = program.PRINT_TABLE
	CHECK_ARG_COUNT = program.CHECK_ARG_COUNT

	// EXT
	SAVE            = program.SAVE
	RESTORE         = program.RESTORE
	LOG_SHIFT       = program.LOG_SHIFT
	ART_SHIFT       = program.ART_SHIFT
	SET_FONT        = program.SET_FONT
	SAVE_UNDO       = program.SAVE_UNDO
	RESTORE_UNDO    = program.RESTORE_UNDO
	PRINT_UNICODE   = program.PRINT_UNICODE
	CHECK_UNICODE   = program.CHECK_UNICODE
	SET_TRUE_COLOUR = program.SET_TRUE_COLOUR
	GESTALT         = program.GESTALT
)

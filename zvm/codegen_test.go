package zvm

import (
	"errors"
	"strings"
	"testing"

	"github.com/colorfulnotion/zdecomp/zerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderAt(t *testing.T, version uint8, code ...byte) string {
	t.Helper()
	d := newTestSession(t, version, code...)
	inst, err := d.Decode(testCodeBase)
	require.NoError(t, err)
	js, err := d.RenderInstruction(inst)
	require.NoError(t, err)
	return js
}

func TestRenderInstruction(t *testing.T) {
	tests := []struct {
		name    string
		version uint8
		code    []byte
		want    string
	}{
		{"add to stack", 5, []byte{0x14, 0x02, 0x03, 0x00}, "t=2+3,s[e.sp++]=t"},
		{"add to local", 5, []byte{0x74, 0x01, 0x10, 0x05}, "l[4]=l[0]+e.m.getUint16(256)"},
		{"sub to global", 5, []byte{0x15, 0x07, 0x02, 0x11}, "t=7-2,e.ram.setUint16(258,t),t"},
		{"div truncates", 5, []byte{0x17, 0x07, 0x02, 0x00}, "t=(7/2)|0,s[e.sp++]=t"},
		{"signed large constant", 5, []byte{0xC2, 0x0F, 0xFF, 0xFF, 0x00, 0x01, 0xC0}, "if((-1<1)){return 0}"},
		{"signed variables", 5, []byte{0xC2, 0xAF, 0x00, 0x02, 0xC0}, "if(((s[--e.sp]<<16>>16)<(l[1]<<16>>16))){return 0}"},
		{"je two operands", 5, []byte{0x01, 0x01, 0x02, 0x41}, "if(!(1===2)){return 1}"},
		{"je many operands", 5, []byte{0xC1, 0x57, 0x01, 0x02, 0x03, 0xC0}, "if((e.jeq(1,2,3))){return 0}"},
		{"loadw", 5, []byte{0x0F, 0x10, 0x02, 0x03}, "l[2]=e.m.getUint16(16+2*2)"},
		{"storew", 5, []byte{0xE1, 0x57, 0x10, 0x02, 0x03}, "e.ram.setUint16(16+2*2,3)"},
		{"store indirect", 5, []byte{0x0D, 0x01, 0x05}, "e.indirect(1,5)"},
		{"print_num", 5, []byte{0xE6, 0xBF, 0x01}, "e.print(0,(l[0]<<16>>16))"},
		{"ret", 5, []byte{0x9B, 0x00}, "return 0"},
		{"ret_popped", 5, []byte{0xB8}, "return s[--e.sp]"},
		{"pop", 3, []byte{0xB9}, "s[--e.sp]"},
		{"catch", 5, []byte{0xB9, 0x00}, "t=e.frames.length+1,s[e.sp++]=t"},
		{"not before version 5", 3, []byte{0x8F, 0x00, 0x05, 0x00}, "t=~5,s[e.sp++]=t"},
		{"call_1n from version 5", 5, []byte{0x8F, 0x01, 0x00}, "e.call(256,-1,1027,[])"},
		{"call_vs", 5, []byte{0xE0, 0x2F, 0x12, 0x34, 0x01, 0x00}, "e.call(4660,0,1030,[l[0]])"},
		{"call_vn", 5, []byte{0xF9, 0x15, 0x01, 0x00, 0x02, 0x03, 0x04}, "e.call(256,-1,1031,[2,3,4])"},
		{"print_paddr version 3", 3, []byte{0x8D, 0x01, 0x00}, "e.print(2,256*2)"},
		{"print_paddr version 5", 5, []byte{0x8D, 0x01, 0x00}, "e.print(2,256*4)"},
		{"print_paddr version 8", 8, []byte{0x8D, 0x01, 0x00}, "e.print(2,256*8)"},
		{"print", 5, []byte{0xB2, 0x92, 0x34}, "e.print(2,1025)"},
		{"print_ret", 5, []byte{0xB3, 0x92, 0x34}, "e.print(2,1025);e.print(1,13);return 1"},
		{"nop", 5, []byte{0xB4}, ""},
		{"quit", 5, []byte{0xBA}, "e.stop=1;e.pc=1025;e.quit=1;e.Glk.glk_exit()"},
		{"show_status version 3", 3, []byte{0xBC}, "e.stop=1;e.pc=1025;e.v3_status()"},
		{"show_status version 5", 5, []byte{0xBC}, ""},
		{"get_child", 5, []byte{0x92, 0x05, 0x00, 0xC8}, "if((t=e.get_child(5),s[e.sp++]=t)){e.pc=1034;return}"},
		{"set_cursor", 5, []byte{0xEF, 0x5F, 0x01, 0x02}, "e.set_cursor(1-1,2-1)"},
		{"output_stream", 5, []byte{0xF3, 0x7F, 0x03}, "e.pc=1027;e.output_stream(3)"},
		{"read version 3", 3, []byte{0xE4, 0x0F, 0x10, 0x00, 0x20, 0x00}, "e.stop=1;e.pc=1030;e.read(0,4096,8192)"},
		{"read version 5", 5, []byte{0xE4, 0x0F, 0x10, 0x00, 0x20, 0x00, 0x03}, "e.stop=1;e.pc=1031;l[2]=e.read(3,4096,8192)"},
		{"read_char", 5, []byte{0xF6, 0x7F, 0x01, 0x00}, "e.stop=1;e.pc=1028;t=e.read_char(0,1),s[e.sp++]=t"},
		{"save_undo", 5, []byte{0xBE, 0x09, 0xFF, 0x03}, "l[2]=e.save_undo(1028,3)"},
		{"restore_undo", 5, []byte{0xBE, 0x0A, 0xFF, 0x00}, "if(e.restore_undo())return"},
		{"check_arg_count", 5, []byte{0xFF, 0x7F, 0x02, 0xC0}, "if((e.stack.getUint8(e.frameptr+5)&(1<<(2-1)))){return 0}"},
		{"gestalt", 5, []byte{0xBE, 0x1E, 0x5F, 0x01, 0x02, 0x00}, "t=e.gestalt(1,2),s[e.sp++]=t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, renderAt(t, tc.version, tc.code...))
		})
	}
}

func TestRenderJump(t *testing.T) {
	// jump +16 at 0x400; next is 0x403
	assert.Equal(t, "e.pc=16+1025", renderAt(t, 5, 0x8C, 0x00, 0x10))
	assert.Equal(t, "e.pc=-3+1025", renderAt(t, 5, 0x8C, 0xFF, 0xFD))
}

func TestRenderBranchTargets(t *testing.T) {
	// jz #0 with offsets 0, 1 and a jump back to the instruction itself
	assert.Equal(t, "if((0===0)){return 0}", renderAt(t, 5, 0x90, 0x00, 0xC0))
	assert.Equal(t, "if((0===0)){return 1}", renderAt(t, 5, 0x90, 0x00, 0xC1))
	assert.Equal(t, "if(!(0===0)){e.pc=1024;return}", renderAt(t, 5, 0x90, 0x00, 0x3F, 0xFE))
	assert.Equal(t, "if((0===0)){e.pc=1030;return}", renderAt(t, 5, 0x90, 0x00, 0xC5))
}

func TestRenderSaveRestore(t *testing.T) {
	// version 3 resumes at the branch byte and renders no branch
	assert.Equal(t, "e.stop=1;e.pc=1026;e.save(1025)", renderAt(t, 3, 0xB5, 0xC2))
	assert.Equal(t, "e.stop=1;e.pc=1026;e.restore(1025)", renderAt(t, 3, 0xB6, 0xC2))
	// later versions resume at the store byte
	assert.Equal(t, "e.stop=1;e.pc=1026;t=e.save(1025),s[e.sp++]=t", renderAt(t, 4, 0xB5, 0x00))
	assert.Equal(t, "e.stop=1;e.pc=1028;t=e.save(1027),s[e.sp++]=t", renderAt(t, 5, 0xBE, 0x00, 0xFF, 0x00))
	assert.Equal(t, "e.stop=1;e.pc=1028;l[0]=e.restore(1027)", renderAt(t, 5, 0xBE, 0x01, 0xFF, 0x01))
}

func TestRenderSuspendOrdering(t *testing.T) {
	js := renderAt(t, 5, 0xF6, 0x7F, 0x01, 0x00)
	resume := strings.Index(js, "e.pc=1028")
	stop := strings.Index(js, "e.stop=1")
	write := strings.Index(js, "s[e.sp++]")
	require.True(t, resume >= 0 && stop >= 0 && write >= 0, js)
	assert.Less(t, stop, write)
	assert.Less(t, resume, write)
}

func TestRenderUnknownOpcode(t *testing.T) {
	for _, code := range [][]byte{
		{0x00, 0x01, 0x02}, // 2OP 0
		{0x1F, 0x01, 0x02}, // 2OP 31
		{0xBE, 0x20, 0xFF}, // EXT 32
		{0xDD, 0xFF},       // 2OP 29 in variable form
	} {
		d := newTestSession(t, 5, code...)
		inst, err := d.Decode(testCodeBase)
		require.NoError(t, err)
		_, err = d.RenderInstruction(inst)
		require.Error(t, err)

		var unknown *UnknownOpcodeError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, inst.Opcode, unknown.Opcode)
		assert.Equal(t, uint32(testCodeBase), unknown.Addr)
		assert.ErrorIs(t, err, zerrors.ErrUnknownOpcode)
		assert.Equal(t, "Z2", zerrors.GetErrorCode(err))
	}
}

func TestRenderMissingStoreVariable(t *testing.T) {
	g := &generator{version: 5, packedMultiplier: 4}
	_, err := g.renderInstruction(&Instruction{Opcode: ADD, Stores: true, Operands: []Operand{{}, {}}})
	assert.Error(t, err)
	_, err = g.renderInstruction(&Instruction{Opcode: PRINT})
	assert.Error(t, err)
}

func TestRenderStoreGlobalWraps(t *testing.T) {
	// globals near the top of memory: variable 0xFF lives at 0xFFF0+478
	g := &generator{version: 5, globals: 0xFFF0, packedMultiplier: 4}
	var v uint8 = 0xFF
	code, err := g.renderInstruction(&Instruction{
		Opcode:   ADD,
		Stores:   true,
		Result:   &v,
		Operands: []Operand{{Kind: Constant, Value: 1}, {Kind: Constant, Value: 2}},
	})
	require.NoError(t, err)
	assert.Contains(t, code, "e.ram.setUint16(462,t)")

	// the decoder addresses the same variable identically
	img := NewImage(1)
	img.Bytes()[0] = 0xFF
	operand := readOperand(img, variable, Unsigned, 0xFFF0)
	assert.Equal(t, Operand{Kind: GlobalVariable, Value: 462}, operand)
}

func TestRenderBlock(t *testing.T) {
	// add 2 3 -> sp; rtrue
	d := newTestSession(t, 5, 0x14, 0x02, 0x03, 0x00, 0xB0)
	frag, err := d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Equal(t, uint32(testCodeBase), frag.Addr)
	assert.Equal(t, "var l=e.l,s=e.s,t=0;\n/* 1024/20 */ t=2+3,s[e.sp++]=t;\n/* 1028/176 */ return 1;", frag.Code)
	assert.Equal(t, 2, frag.Instructions)
	assert.Equal(t, uint32(testCodeBase+5), frag.Next)
	assert.False(t, frag.PausesVM)
	assert.Equal(t, Safe, frag.Safety())
}

func TestRenderBlockStopsAtFirstBlockEnd(t *testing.T) {
	// jz sp ?rtrue; jump +5; rtrue
	d := newTestSession(t, 5, 0xA0, 0x00, 0xC1, 0x8C, 0x00, 0x05, 0xB0)
	bb, err := d.Disassemble(testCodeBase)
	require.NoError(t, err)
	require.Len(t, bb.Instructions, 2)
	assert.Equal(t, uint16(JUMP), bb.Last().Opcode)
	assert.Equal(t, uint32(testCodeBase+6), bb.Last().Next)
	assert.Contains(t, bb.String(5), "jump")
}

func TestRenderBlockCalls(t *testing.T) {
	// call_vs 0x100 -> sp ends the block
	d := newTestSession(t, 5, 0xE0, 0x3F, 0x01, 0x00, 0x00)
	frag, err := d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x400}, frag.Calls)

	// a variable routine has no static target
	d = newTestSession(t, 5, 0xE0, 0xBF, 0x01, 0x00)
	frag, err = d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.Empty(t, frag.Calls)
}

func TestRenderBlockPauses(t *testing.T) {
	d := newTestSession(t, 5, 0xF6, 0x7F, 0x01, 0x00)
	frag, err := d.Fragment(testCodeBase)
	require.NoError(t, err)
	assert.True(t, frag.PausesVM)
	assert.Equal(t, Unsafe, frag.Safety())
}

func TestRenderBlockUnknownOpcode(t *testing.T) {
	d := newTestSession(t, 5, 0xB4, 0x00, 0x01, 0x02, 0xB0)
	_, err := d.Fragment(testCodeBase)
	var unknown *UnknownOpcodeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, uint16(0), unknown.Opcode)
	assert.Equal(t, uint32(testCodeBase+1), unknown.Addr)
}

func TestRenderBlockTooLong(t *testing.T) {
	d := newTestSession(t, 5).Clone()
	d.maxInstructions = 8
	// a run of nops never ends the block
	buf := d.img.Bytes()
	for i := testCodeBase; i < testCodeBase+64; i++ {
		buf[i] = 0xB4
	}
	_, err := d.Fragment(testCodeBase)
	assert.ErrorIs(t, err, zerrors.ErrBlockTooLong)
}

// Every opcode byte under every version either renders a block that ends
// inside the image or reports an unknown opcode.
func TestRenderEveryOpcodeByte(t *testing.T) {
	for version := uint8(3); version <= 8; version++ {
		for b := 0; b < 256; b++ {
			d := newTestSession(t, version)
			buf := d.Image()
			for i := testCodeBase; i < testCodeBase+64; i++ {
				buf[i] = 0xB0
			}
			buf[testCodeBase] = byte(b)

			frag, err := d.Fragment(testCodeBase)
			if err != nil {
				assert.ErrorIs(t, err, zerrors.ErrUnknownOpcode, "version %d byte 0x%02x", version, b)
				continue
			}
			assert.True(t, strings.HasPrefix(frag.Code, blockPrologue))
			assert.Greater(t, frag.Next, frag.Addr)
			assert.LessOrEqual(t, frag.Next, uint32(testCodeBase+64))
		}
	}
}

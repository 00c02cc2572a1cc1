package zvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBlock(t *testing.T) {
	assert.Equal(t, SafetyPending, ClassifyBlock(nil))
	assert.Equal(t, Safe, ClassifyBlock([]*Instruction{{Opcode: ADD}, {Opcode: RTRUE, EndsBlock: true}}))
	assert.Equal(t, Unsafe, ClassifyBlock([]*Instruction{{Opcode: ADD}, {Opcode: READ_CHAR, EndsBlock: true, PausesVM: true}}))
}

func TestFunctionSafetyString(t *testing.T) {
	assert.Equal(t, "safe", Safe.String())
	assert.Equal(t, "unsafe", Unsafe.String())
	assert.Equal(t, "pending", SafetyPending.String())
}

func TestFragmentSafety(t *testing.T) {
	assert.Equal(t, SafetyPending, (&Fragment{}).Safety())
	assert.Equal(t, Safe, (&Fragment{Instructions: 1}).Safety())
	assert.Equal(t, Unsafe, (&Fragment{Instructions: 1, PausesVM: true}).Safety())
}

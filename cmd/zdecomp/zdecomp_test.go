package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStory is a version 5 story with a call, a branch and a block that uses
// an opcode the generator does not know.
func testStory() []byte {
	data := make([]byte, 0x800)
	data[0x00] = 5
	data[0x06], data[0x07] = 0x01, 0x00 // initial pc
	data[0x0C], data[0x0D] = 0x06, 0x00 // globals
	data[0x0E], data[0x0F] = 0x07, 0x00 // static memory
	data[0x1A], data[0x1B] = 0x02, 0x00 // file length / 4

	code := []byte{
		0xE0, 0x3F, 0x01, 0x00, 0x00, // 0x100 call_vs 0x400 -> sp
		0xA0, 0x00, 0xC5, // 0x105 jz sp ?0x10b
		0xB0,       // 0x108 rtrue
		0x00, 0x00, // 0x109 padding
		0x00, 0x01, 0x02, // 0x10b unknown 2OP 0
		0xB0, // 0x10e rtrue
	}
	copy(data[0x100:], code)
	data[0x400] = 0    // no locals
	data[0x401] = 0xB1 // rfalse
	return data
}

func writeStory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.z5")
	require.NoError(t, os.WriteFile(path, testStory(), 0o644))
	return path
}

func TestResolveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zdecomp.toml")
	require.NoError(t, os.WriteFile(path, []byte("log-level = \"warn\"\nmax-block-instructions = 10\n"), 0o644))

	cfg, err := resolveConfig(&globalOptions{configPath: path})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 10, cfg.MaxBlockInstructions)

	cfg, err = resolveConfig(&globalOptions{configPath: path, logLevel: "debug", maxBlock: 20})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 20, cfg.MaxBlockInstructions)
}

func TestOpenStory(t *testing.T) {
	s, err := openStory(&globalOptions{logLevel: "error", cacheDir: t.TempDir()}, writeStory(t))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, uint8(5), s.d.Version())
	assert.Equal(t, uint32(0x100), s.entry(-1))
	assert.Equal(t, uint32(0x105), s.entry(0x105))
	assert.Equal(t, uint16(0x700), s.cfg.StaticMemory)

	frag, err := s.d.Fragment(s.entry(-1))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x400}, frag.Calls)
	assert.Contains(t, frag.Code, "e.call(256,0,261,[])")
}

func TestScan(t *testing.T) {
	s, err := openStory(&globalOptions{logLevel: "error"}, writeStory(t))
	require.NoError(t, err)
	defer s.Close()

	report := scan(s.d, s.d.Bytes(), s.entry(-1), 0)
	assert.Equal(t, 4, report.Blocks)
	assert.Equal(t, 3, report.Clean)
	assert.Equal(t, 1, report.Routines)
	assert.Equal(t, map[string]int{"Z2_UnknownOpcode": 1}, report.Failures)

	var out bytes.Buffer
	report.Write(&out)
	assert.Contains(t, out.String(), "failed Z2_UnknownOpcode: 1")

	limited := scan(s.d, s.d.Bytes(), s.entry(-1), 2)
	assert.Equal(t, 2, limited.Blocks)
}

func TestBlockTree(t *testing.T) {
	s, err := openStory(&globalOptions{logLevel: "error"}, writeStory(t))
	require.NoError(t, err)
	defer s.Close()

	bb, err := s.d.Disassemble(0x105)
	require.NoError(t, err)
	tree := blockTree(bb, 5).String()
	assert.Contains(t, tree, "block 0x105")
	assert.Contains(t, tree, "0x105 jz")
	assert.Contains(t, tree, "op0 sp")
	assert.Contains(t, tree, "branch iftrue=true -> 0x10b")
	assert.Contains(t, tree, "0x108 rtrue")
}

func TestConsoleVM(t *testing.T) {
	s, err := openStory(&globalOptions{logLevel: "error"}, writeStory(t))
	require.NoError(t, err)
	defer s.Close()

	vm, err := newConsoleVM(s)
	require.NoError(t, err)

	v, err := vm.RunString("fragment(0x108)")
	require.NoError(t, err)
	assert.Contains(t, v.String(), "return 1")

	v, err = vm.RunString("header.initialPC")
	require.NoError(t, err)
	assert.Equal(t, int64(0x100), v.ToInteger())

	v, err = vm.RunString("run(0x401)['return']")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.ToInteger())

	_, err = vm.RunString("fragment(0x10b)")
	assert.Error(t, err)
}

func TestDumpCompare(t *testing.T) {
	s, err := openStory(&globalOptions{logLevel: "error"}, writeStory(t))
	require.NoError(t, err)
	defer s.Close()

	report := scan(s.d, s.d.Bytes(), s.entry(-1), 0)
	dump := newFragmentDump(s.d.Version(), s.entry(-1), report)
	assert.Len(t, dump.Blocks, 3)
	assert.Contains(t, dump.Blocks["0x401"], "return 0")

	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.json")
	newPath := filepath.Join(dir, "new.json")
	require.NoError(t, writeDump(oldPath, dump))
	require.NoError(t, writeDump(newPath, dump))

	same, _, err := compareDumps(oldPath, newPath, false)
	require.NoError(t, err)
	assert.True(t, same)
	same, _, err = compareDumps(oldPath, newPath, true)
	require.NoError(t, err)
	assert.True(t, same)

	dump.Blocks["0x401"] = "return 1;"
	require.NoError(t, writeDump(newPath, dump))
	same, diff, err := compareDumps(oldPath, newPath, false)
	require.NoError(t, err)
	assert.False(t, same)
	assert.Contains(t, diff, "0x401")
	assert.Contains(t, diff, "return 1;")

	same, diff, err = compareDumps(oldPath, newPath, true)
	require.NoError(t, err)
	assert.False(t, same)
	assert.Contains(t, diff, "0x401")

	require.NoError(t, os.WriteFile(newPath, []byte("not json"), 0o644))
	_, _, err = compareDumps(oldPath, newPath, false)
	assert.Error(t, err)
}

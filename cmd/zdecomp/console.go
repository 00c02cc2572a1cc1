package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/colorfulnotion/zdecomp/zvm/jsenv"
	"github.com/dop251/goja"
)

// newConsoleVM binds the story's session into a JavaScript runtime:
//
//	fragment(addr)  JavaScript for the block at addr
//	disasm(addr)    decoded block as a tree
//	run(addr)       run the block against a fresh runtime object
//	header          the story header
func newConsoleVM(s *story) (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	if err := vm.Set("fragment", func(addr int64) (string, error) {
		frag, err := s.d.Fragment(uint32(addr))
		if err != nil {
			return "", err
		}
		return frag.Code, nil
	}); err != nil {
		return nil, err
	}
	if err := vm.Set("disasm", func(addr int64) (string, error) {
		bb, err := s.d.Disassemble(uint32(addr))
		if err != nil {
			return "", err
		}
		return blockTree(bb, s.d.Version()).String(), nil
	}); err != nil {
		return nil, err
	}
	if err := vm.Set("run", func(addr int64) (map[string]interface{}, error) {
		frag, err := s.d.Fragment(uint32(addr))
		if err != nil {
			return nil, err
		}
		image := append([]byte(nil), s.d.Bytes()...)
		env, err := jsenv.New(image, s.cfg.Globals)
		if err != nil {
			return nil, err
		}
		res, err := env.Run(fmt.Sprintf("block_%x", addr), frag.Code)
		if err != nil {
			return nil, err
		}
		calls := make([]string, 0, len(env.Calls()))
		for _, c := range env.Calls() {
			calls = append(calls, fmt.Sprintf("%s%v", c.Name, c.Args))
		}
		out := map[string]interface{}{"pc": env.PC(), "stop": env.Stopped(), "calls": calls}
		if res.Returned {
			out["return"] = res.Value
		}
		return out, nil
	}); err != nil {
		return nil, err
	}
	if err := vm.Set("header", s.header); err != nil {
		return nil, err
	}
	return vm, nil
}

func runConsole(s *story) error {
	vm, err := newConsoleVM(s)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "zdecomp> ",
		HistoryFile: filepath.Join(os.TempDir(), "zdecomp_console_history.txt"),
	})
	if err != nil {
		return fmt.Errorf("failed to start readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("story version %d, initial pc 0x%x\n", s.header.Version, s.header.InitialPC)
	fmt.Println("fragment(addr), disasm(addr), run(addr), header; 'exit' to quit")
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}
		value, err := vm.RunString(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(value.Export())
	}
}

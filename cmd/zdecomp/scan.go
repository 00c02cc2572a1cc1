package main

import (
	"fmt"
	"io"
	"sort"

	log "github.com/colorfulnotion/zdecomp/log"
	"github.com/colorfulnotion/zdecomp/zerrors"
	"github.com/colorfulnotion/zdecomp/zvm"
)

// scanReport summarises a reachability scan over a story.
type scanReport struct {
	Blocks   int
	Clean    int
	Routines int
	Failures map[string]int // error code -> count
	Pausing  int

	Fragments []*zvm.Fragment // clean blocks in visiting order
}

func (r *scanReport) Write(w io.Writer) {
	fmt.Fprintf(w, "blocks:   %d\n", r.Blocks)
	fmt.Fprintf(w, "clean:    %d\n", r.Clean)
	fmt.Fprintf(w, "pausing:  %d\n", r.Pausing)
	fmt.Fprintf(w, "routines: %d\n", r.Routines)
	codes := make([]string, 0, len(r.Failures))
	for code := range r.Failures {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "failed %s: %d\n", code, r.Failures[code])
	}
}

// returns lists the opcodes after which control does not continue at the
// next instruction.
func returns(opcode uint16) bool {
	switch opcode {
	case zvm.RTRUE, zvm.RFALSE, zvm.RET, zvm.RET_POPPED, zvm.PRINT_RET, zvm.QUIT, zvm.RESTART, zvm.THROW, zvm.JUMP:
		return true
	}
	return false
}

// routineStart skips a routine header: the local count and, before version
// 5, the initial values of the locals.
func routineStart(image []byte, version uint8, addr uint32) (uint32, bool) {
	if addr >= uint32(len(image)) {
		return 0, false
	}
	start := addr + 1
	if version < 5 {
		start += 2 * uint32(image[addr])
	}
	return start, start < uint32(len(image))
}

// successors returns the addresses a block can continue at.
func successors(d *zvm.Decompiler, image []byte, bb *zvm.BasicBlock, frag *zvm.Fragment) (blocks []uint32, routines []uint32) {
	for _, inst := range bb.Instructions {
		if target, ok := inst.BranchDestination(); ok {
			blocks = append(blocks, target)
		}
	}
	last := bb.Last()
	if last.Opcode == zvm.JUMP && len(last.Operands) == 1 && last.Operands[0].Kind == zvm.SignedConstant {
		blocks = append(blocks, uint32(int64(last.Next)+int64(int16(last.Operands[0].Value))-2))
	}
	if !returns(last.Opcode) {
		blocks = append(blocks, last.Next)
	}
	if frag != nil {
		for _, call := range frag.Calls {
			if start, ok := routineStart(image, d.Version(), call); ok {
				routines = append(routines, start)
			}
		}
	}
	return blocks, routines
}

// scan follows fall-through, branch, jump and call targets breadth first
// from entry and decompiles every block it reaches.
func scan(d *zvm.Decompiler, image []byte, entry uint32, maxBlocks int) *scanReport {
	report := &scanReport{Failures: make(map[string]int)}
	seen := map[uint32]bool{entry: true}
	queue := []uint32{entry}
	enqueue := func(addr uint32) {
		if !seen[addr] && addr < uint32(len(image)) {
			seen[addr] = true
			queue = append(queue, addr)
		}
	}

	for len(queue) > 0 && (maxBlocks <= 0 || report.Blocks < maxBlocks) {
		addr := queue[0]
		queue = queue[1:]
		report.Blocks++

		bb, err := d.Disassemble(addr)
		if err != nil {
			report.Failures[failureCode(err)]++
			log.Debug(log.CLIMonitoring, "block does not decode", "addr", addr, "err", err)
			continue
		}
		frag, err := d.Fragment(addr)
		if err != nil {
			report.Failures[failureCode(err)]++
			log.Debug(log.CLIMonitoring, "block does not decompile", "addr", addr, "err", err)
		} else {
			report.Clean++
			report.Fragments = append(report.Fragments, frag)
			if frag.PausesVM {
				report.Pausing++
			}
		}

		blocks, routines := successors(d, image, bb, frag)
		for _, b := range blocks {
			enqueue(b)
		}
		for _, r := range routines {
			if !seen[r] {
				report.Routines++
			}
			enqueue(r)
		}
	}
	return report
}

func failureCode(err error) string {
	if code := zerrors.GetErrorCodeWithName(err); code != "" {
		return code
	}
	return "other"
}

package codegen

import (
	"fmt"

	"nanoforge/internal/ir"
)

// execState is the per-call register file. Functions are pure transforms,
// so a fresh state per invocation keeps variants safe for unbounded
// concurrent execution.
type execState struct {
	regs       []uint64
	cmpL, cmpR uint64
}

// resolveLabels maps label names to the index of their defining
// instruction. Unresolved jump targets are a compile fault.
func resolveLabels(fn *ir.Function) (map[string]int, error) {
	labels := make(map[string]int)
	for pc, instr := range fn.Instructions {
		if instr.Op == ir.Label {
			if _, dup := labels[instr.Dest.Label]; dup {
				return nil, fmt.Errorf("duplicate label %q", instr.Dest.Label)
			}
			labels[instr.Dest.Label] = pc
		}
	}
	for _, instr := range fn.Instructions {
		switch instr.Op {
		case ir.Jmp, ir.Je, ir.Jne, ir.Jl, ir.Jle, ir.Jg, ir.Jge:
			if _, ok := labels[instr.Dest.Label]; !ok {
				return nil, fmt.Errorf("undefined label %q", instr.Dest.Label)
			}
		}
	}
	return labels, nil
}

func (s *execState) load(op ir.Operand) uint64 {
	if op.Kind == ir.KindImm {
		return op.Imm
	}
	return s.regs[op.Reg]
}

func jumpTaken(op ir.Opcode, l, r uint64) bool {
	switch op {
	case ir.Je:
		return l == r
	case ir.Jne:
		return l != r
	case ir.Jl:
		return l < r
	case ir.Jle:
		return l <= r
	case ir.Jg:
		return l > r
	case ir.Jge:
		return l >= r
	}
	return false
}

// compileScalar is the reference implementation: a plain interpreter over
// the instruction list. It is the guaranteed-available baseline every
// function carries.
func compileScalar(fn *ir.Function) (func(uint64) uint64, error) {
	labels, err := resolveLabels(fn)
	if err != nil {
		return nil, err
	}
	instrs := fn.Instructions
	numRegs := fn.NumRegs

	return func(input uint64) uint64 {
		s := execState{regs: make([]uint64, numRegs)}
		pc := 0
		for pc < len(instrs) {
			instr := &instrs[pc]
			switch instr.Op {
			case ir.Mov:
				s.regs[instr.Dest.Reg] = s.load(instr.Src1)
			case ir.Add:
				s.regs[instr.Dest.Reg] += s.load(instr.Src1)
			case ir.Sub:
				s.regs[instr.Dest.Reg] -= s.load(instr.Src1)
			case ir.Mul:
				s.regs[instr.Dest.Reg] *= s.load(instr.Src1)
			case ir.Cmp:
				s.cmpL, s.cmpR = s.load(instr.Src1), s.load(instr.Src2)
			case ir.Jmp:
				pc = labels[instr.Dest.Label]
			case ir.Je, ir.Jne, ir.Jl, ir.Jle, ir.Jg, ir.Jge:
				if jumpTaken(instr.Op, s.cmpL, s.cmpR) {
					pc = labels[instr.Dest.Label]
				}
			case ir.Label:
				// no-op
			case ir.Ret:
				return s.regs[0]
			case ir.LoadArg:
				if instr.ArgIndex == 0 {
					s.regs[instr.Dest.Reg] = input
				} else {
					s.regs[instr.Dest.Reg] = 0
				}
			}
			pc++
		}
		return s.regs[0]
	}, nil
}

// step executes one pre-compiled instruction and returns the next pc, or
// -1 on return.
type step func(s *execState, pc int) int

// compileSteps translates every instruction into a closure, removing the
// per-instruction opcode dispatch the scalar interpreter pays.
func compileSteps(fn *ir.Function) ([]step, error) {
	labels, err := resolveLabels(fn)
	if err != nil {
		return nil, err
	}

	steps := make([]step, len(fn.Instructions))
	for pc, instr := range fn.Instructions {
		instr := instr
		switch instr.Op {
		case ir.Mov:
			dest := instr.Dest.Reg
			if instr.Src1.Kind == ir.KindImm {
				imm := instr.Src1.Imm
				steps[pc] = func(s *execState, pc int) int { s.regs[dest] = imm; return pc + 1 }
			} else {
				src := instr.Src1.Reg
				steps[pc] = func(s *execState, pc int) int { s.regs[dest] = s.regs[src]; return pc + 1 }
			}
		case ir.Add:
			dest := instr.Dest.Reg
			src := instr.Src1
			steps[pc] = func(s *execState, pc int) int { s.regs[dest] += s.load(src); return pc + 1 }
		case ir.Sub:
			dest := instr.Dest.Reg
			src := instr.Src1
			steps[pc] = func(s *execState, pc int) int { s.regs[dest] -= s.load(src); return pc + 1 }
		case ir.Mul:
			dest := instr.Dest.Reg
			src := instr.Src1
			steps[pc] = func(s *execState, pc int) int { s.regs[dest] *= s.load(src); return pc + 1 }
		case ir.Cmp:
			src1, src2 := instr.Src1, instr.Src2
			steps[pc] = func(s *execState, pc int) int {
				s.cmpL, s.cmpR = s.load(src1), s.load(src2)
				return pc + 1
			}
		case ir.Jmp:
			target := labels[instr.Dest.Label]
			steps[pc] = func(_ *execState, _ int) int { return target + 1 }
		case ir.Je, ir.Jne, ir.Jl, ir.Jle, ir.Jg, ir.Jge:
			op := instr.Op
			target := labels[instr.Dest.Label]
			steps[pc] = func(s *execState, pc int) int {
				if jumpTaken(op, s.cmpL, s.cmpR) {
					return target + 1
				}
				return pc + 1
			}
		case ir.Label:
			steps[pc] = func(_ *execState, pc int) int { return pc + 1 }
		case ir.Ret:
			steps[pc] = func(_ *execState, _ int) int { return -1 }
		case ir.LoadArg:
			dest := instr.Dest.Reg
			if instr.ArgIndex == 0 {
				steps[pc] = func(s *execState, pc int) int { s.regs[dest] = s.regs[argSlot(s)]; return pc + 1 }
			} else {
				steps[pc] = func(s *execState, pc int) int { s.regs[dest] = 0; return pc + 1 }
			}
		default:
			return nil, fmt.Errorf("unsupported opcode %s", instr.Op)
		}
	}
	return steps, nil
}

// argSlot is the register that carries the call input before LoadArg moves
// it into the parameter's own register. It is the last slot of the file.
func argSlot(s *execState) int {
	return len(s.regs) - 1
}

// compileThreaded builds the unrolled threaded-code variant: instructions
// pre-compiled to closures, executed four per loop iteration.
func compileThreaded(fn *ir.Function) (func(uint64) uint64, error) {
	steps, err := compileSteps(fn)
	if err != nil {
		return nil, err
	}
	numRegs := fn.NumRegs + 1 // extra slot for the incoming argument
	n := len(steps)

	return func(input uint64) uint64 {
		s := execState{regs: make([]uint64, numRegs)}
		s.regs[numRegs-1] = input
		pc := 0
		for pc >= 0 && pc < n {
			pc = steps[pc](&s, pc)
			if pc < 0 || pc >= n {
				break
			}
			pc = steps[pc](&s, pc)
			if pc < 0 || pc >= n {
				break
			}
			pc = steps[pc](&s, pc)
			if pc < 0 || pc >= n {
				break
			}
			pc = steps[pc](&s, pc)
		}
		return s.regs[0]
	}, nil
}

// basicBlock is a run of straight-line micro-ops ending in a terminator
// that yields the next block's pc (or -1 on return).
type basicBlock struct {
	ops  []step
	term step
	end  int // pc of the terminator, passed to term for fallthrough
}

// compileBlocks builds the block-fused variant tagged for AVX2 hosts:
// basic blocks are precompiled into op runs executed without inter-
// instruction pc checks, the strategy vector-capable hosts benefit from.
func compileBlocks(fn *ir.Function) (func(uint64) uint64, error) {
	steps, err := compileSteps(fn)
	if err != nil {
		return nil, err
	}
	n := len(steps)

	// Block leaders: entry, label targets, and jump successors.
	leader := make([]bool, n+1)
	leader[0] = true
	for pc, instr := range fn.Instructions {
		switch instr.Op {
		case ir.Label:
			leader[pc] = true
		case ir.Jmp, ir.Je, ir.Jne, ir.Jl, ir.Jle, ir.Jg, ir.Jge, ir.Ret:
			if pc+1 <= n {
				leader[pc+1] = true
			}
		}
	}

	// blockAt[pc] -> compiled block starting at pc, or nil.
	blockAt := make([]*basicBlock, n)
	for start := 0; start < n; start++ {
		if !leader[start] {
			continue
		}
		end := start
		for end < n-1 && !isTerminator(fn.Instructions[end].Op) && !leader[end+1] {
			end++
		}
		blk := &basicBlock{end: end}
		for pc := start; pc < end; pc++ {
			blk.ops = append(blk.ops, steps[pc])
		}
		blk.term = steps[end]
		blockAt[start] = blk
	}

	numRegs := fn.NumRegs + 1
	return func(input uint64) uint64 {
		s := execState{regs: make([]uint64, numRegs)}
		s.regs[numRegs-1] = input
		pc := 0
		for pc >= 0 && pc < n {
			blk := blockAt[pc]
			if blk == nil {
				// Mid-block entry cannot happen for lowered programs, but
				// fall back to stepping rather than trusting it.
				pc = steps[pc](&s, pc)
				continue
			}
			base := pc
			for i, op := range blk.ops {
				op(&s, base+i)
			}
			pc = blk.term(&s, blk.end)
		}
		return s.regs[0]
	}, nil
}

// compileBlocksWide is the AVX-512-tagged strategy: block fusion plus a
// fixed-size register file when the program fits in sixteen slots, which
// keeps the state on the stack.
func compileBlocksWide(fn *ir.Function) (func(uint64) uint64, error) {
	run, err := compileBlocks(fn)
	if err != nil {
		return nil, err
	}
	if fn.NumRegs+1 > 16 {
		return run, nil
	}

	steps, err := compileSteps(fn)
	if err != nil {
		return nil, err
	}
	n := len(steps)
	numRegs := fn.NumRegs + 1
	return func(input uint64) uint64 {
		var file [16]uint64
		s := execState{regs: file[:numRegs]}
		s.regs[numRegs-1] = input
		pc := 0
		for pc >= 0 && pc < n {
			pc = steps[pc](&s, pc)
		}
		return s.regs[0]
	}, nil
}

func isTerminator(op ir.Opcode) bool {
	switch op {
	case ir.Jmp, ir.Je, ir.Jne, ir.Jl, ir.Jle, ir.Jg, ir.Jge, ir.Ret:
		return true
	}
	return false
}

package ir

import (
	"testing"

	"nanoforge/internal/lang"
)

func lower(t *testing.T, src string) *Function {
	t.Helper()
	prog, err := lang.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lowered, err := Lower(prog)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	entry := lowered.Main()
	if entry == nil {
		t.Fatal("missing lowered entry")
	}
	return entry
}

func TestLowerEmitsLoadArgForParams(t *testing.T) {
	fn := lower(t, "fn main(n) { return n }")
	if len(fn.Instructions) == 0 || fn.Instructions[0].Op != LoadArg {
		t.Fatalf("first instruction is %v, want LoadArg", fn.Instructions[0].Op)
	}
	if fn.Instructions[0].ArgIndex != 0 {
		t.Fatalf("arg index = %d, want 0", fn.Instructions[0].ArgIndex)
	}
}

func TestLowerReturnWritesRegisterZero(t *testing.T) {
	fn := lower(t, "fn main() { return 5 }")
	var foundMov, foundRet bool
	for _, instr := range fn.Instructions {
		if instr.Op == Mov && instr.Dest.Kind == KindReg && instr.Dest.Reg == 0 {
			foundMov = true
		}
		if instr.Op == Ret {
			foundRet = true
		}
	}
	if !foundMov || !foundRet {
		t.Fatalf("return lowering incomplete: mov=%v ret=%v", foundMov, foundRet)
	}
}

func TestLowerFallOffEmitsImplicitReturn(t *testing.T) {
	fn := lower(t, "fn main(n) { x = n }")
	last := fn.Instructions[len(fn.Instructions)-1]
	if last.Op != Ret {
		t.Fatalf("last instruction is %v, want Ret", last.Op)
	}
}

func TestLowerWhileDesugarsToCmpAndJumps(t *testing.T) {
	fn := lower(t, `fn main(n) {
    i = 0
    while i < n {
        i = i + 1
    }
    return i
}`)
	var cmps, condJumps, labels int
	for _, instr := range fn.Instructions {
		switch instr.Op {
		case Cmp:
			cmps++
		case Je, Jne, Jl, Jle, Jg, Jge:
			condJumps++
		case Label:
			labels++
		}
	}
	if cmps == 0 || condJumps == 0 || labels < 2 {
		t.Fatalf("while not desugared: cmps=%d jumps=%d labels=%d", cmps, condJumps, labels)
	}
}

func TestLowerOperandKinds(t *testing.T) {
	fn := lower(t, "fn main(n) {\n    x = n + 3\n    return x\n}")

	var immSeen, regSeen bool
	for _, instr := range fn.Instructions {
		switch instr.Op {
		case Add:
			if instr.Src1.Kind == KindImm && instr.Src1.Imm == 3 {
				immSeen = true
			}
		case Mov:
			if instr.Src1.Kind == KindReg {
				regSeen = true
			}
		}
	}
	if !immSeen {
		t.Fatal("integer literal did not lower to an immediate operand")
	}
	if !regSeen {
		t.Fatal("identifier did not lower to a register operand")
	}
}

func TestLowerVariablesShareRegisters(t *testing.T) {
	fn := lower(t, "fn main() {\n    x = 1\n    x = 2\n    return x\n}")

	// Same variable must land in the same register both times.
	var dests []int
	for _, instr := range fn.Instructions {
		if instr.Op == Mov && instr.Src1.Kind == KindImm && instr.Src1.Imm <= 2 && instr.Src1.Imm >= 1 {
			dests = append(dests, instr.Dest.Reg)
		}
	}
	if len(dests) != 2 || dests[0] != dests[1] {
		t.Fatalf("variable register allocation inconsistent: %v", dests)
	}
	if fn.NumRegs < 2 {
		t.Fatalf("num regs = %d, want at least 2", fn.NumRegs)
	}
}

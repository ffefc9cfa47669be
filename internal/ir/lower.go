package ir

import (
	"fmt"

	"nanoforge/internal/lang"
)

// Lower flattens a parsed program into linear IR. Structured control flow
// (if/while/for) desugars into cmp + conditional jumps over generated
// labels; explicit label/goto statements pass through.
func Lower(prog *lang.Program) (*Program, error) {
	out := &Program{}
	for _, decl := range prog.Functions {
		fn, err := lowerFunc(decl)
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, fn)
	}
	return out, nil
}

type lowerer struct {
	fn      *Function
	regs    map[string]int
	nextReg int
	labels  int
}

func lowerFunc(decl *lang.FuncDecl) (*Function, error) {
	l := &lowerer{
		fn:   &Function{Name: decl.Name, Params: decl.Params},
		regs: make(map[string]int),
		// Register 0 is the return slot.
		nextReg: 1,
	}

	for i, param := range decl.Params {
		l.emit(Instruction{Op: LoadArg, Dest: Reg(l.reg(param)), ArgIndex: i})
	}
	if err := l.lowerBlock(decl.Body); err != nil {
		return nil, fmt.Errorf("fn %s: %w", decl.Name, err)
	}

	// A function that falls off the end returns 0.
	l.emit(Instruction{Op: Mov, Dest: Reg(0), Src1: Imm(0)})
	l.emit(Instruction{Op: Ret})

	l.fn.NumRegs = l.nextReg
	return l.fn, nil
}

func (l *lowerer) emit(instr Instruction) {
	l.fn.Instructions = append(l.fn.Instructions, instr)
}

func (l *lowerer) reg(name string) int {
	if r, ok := l.regs[name]; ok {
		return r
	}
	r := l.nextReg
	l.nextReg++
	l.regs[name] = r
	return r
}

// operand converts an AST leaf expression into an IR operand, allocating a
// register on first use of a variable.
func (l *lowerer) operand(x lang.Expr) (Operand, error) {
	switch x := x.(type) {
	case *lang.IntLit:
		return Imm(x.Value), nil
	case *lang.Ident:
		return Reg(l.reg(x.Name)), nil
	default:
		return Operand{}, fmt.Errorf("unsupported operand %T", x)
	}
}

func (l *lowerer) genLabel(prefix string) string {
	l.labels++
	return fmt.Sprintf("%s_%d", prefix, l.labels)
}

func (l *lowerer) lowerBlock(stmts []lang.Stmt) error {
	for _, s := range stmts {
		if err := l.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) lowerStmt(s lang.Stmt) error {
	switch s := s.(type) {
	case *lang.AssignStmt:
		return l.lowerAssign(s)

	case *lang.ReturnStmt:
		src, err := l.operand(s.X)
		if err != nil {
			return err
		}
		l.emit(Instruction{Op: Mov, Dest: Reg(0), Src1: src})
		l.emit(Instruction{Op: Ret})
		return nil

	case *lang.LabelStmt:
		l.emit(Instruction{Op: Label, Dest: Lbl(s.Name)})
		return nil

	case *lang.GotoStmt:
		l.emit(Instruction{Op: Jmp, Dest: Lbl(s.Name)})
		return nil

	case *lang.IfStmt:
		elseLabel := l.genLabel("if_else")
		endLabel := l.genLabel("if_end")
		if err := l.lowerCondJump(s.Cond, elseLabel, true); err != nil {
			return err
		}
		if err := l.lowerBlock(s.Then); err != nil {
			return err
		}
		l.emit(Instruction{Op: Jmp, Dest: Lbl(endLabel)})
		l.emit(Instruction{Op: Label, Dest: Lbl(elseLabel)})
		if err := l.lowerBlock(s.Else); err != nil {
			return err
		}
		l.emit(Instruction{Op: Label, Dest: Lbl(endLabel)})
		return nil

	case *lang.WhileStmt:
		startLabel := l.genLabel("while_start")
		endLabel := l.genLabel("while_end")
		l.emit(Instruction{Op: Label, Dest: Lbl(startLabel)})
		if err := l.lowerCondJump(s.Cond, endLabel, true); err != nil {
			return err
		}
		if err := l.lowerBlock(s.Body); err != nil {
			return err
		}
		l.emit(Instruction{Op: Jmp, Dest: Lbl(startLabel)})
		l.emit(Instruction{Op: Label, Dest: Lbl(endLabel)})
		return nil

	case *lang.ForStmt:
		if err := l.lowerAssign(s.Init); err != nil {
			return err
		}
		startLabel := l.genLabel("for_start")
		endLabel := l.genLabel("for_end")
		l.emit(Instruction{Op: Label, Dest: Lbl(startLabel)})
		if err := l.lowerCondJump(s.Cond, endLabel, true); err != nil {
			return err
		}
		if err := l.lowerBlock(s.Body); err != nil {
			return err
		}
		if err := l.lowerAssign(s.Post); err != nil {
			return err
		}
		l.emit(Instruction{Op: Jmp, Dest: Lbl(startLabel)})
		l.emit(Instruction{Op: Label, Dest: Lbl(endLabel)})
		return nil

	default:
		return fmt.Errorf("unsupported statement %T", s)
	}
}

func (l *lowerer) lowerAssign(s *lang.AssignStmt) error {
	switch x := s.X.(type) {
	case *lang.BinaryExpr:
		src1, err := l.operand(x.X)
		if err != nil {
			return err
		}
		src2, err := l.operand(x.Y)
		if err != nil {
			return err
		}
		dest := Reg(l.reg(s.Name))
		l.emit(Instruction{Op: Mov, Dest: dest, Src1: src1})
		var op Opcode
		switch x.Op {
		case "+":
			op = Add
		case "-":
			op = Sub
		case "*":
			op = Mul
		default:
			return fmt.Errorf("unsupported operator %q", x.Op)
		}
		l.emit(Instruction{Op: op, Dest: dest, Src1: src2})
		return nil
	default:
		src, err := l.operand(s.X)
		if err != nil {
			return err
		}
		l.emit(Instruction{Op: Mov, Dest: Reg(l.reg(s.Name)), Src1: src})
		return nil
	}
}

// lowerCondJump emits cmp plus a jump to target. With invert set the jump
// fires when the condition is false, which is the shape structured control
// flow wants.
func (l *lowerer) lowerCondJump(cond lang.Cond, target string, invert bool) error {
	src1, err := l.operand(cond.X)
	if err != nil {
		return err
	}
	src2, err := l.operand(cond.Y)
	if err != nil {
		return err
	}
	l.emit(Instruction{Op: Cmp, Src1: src1, Src2: src2})

	op := cond.Op
	if invert {
		op = invertCmp(op)
	}
	var jump Opcode
	switch op {
	case "==":
		jump = Je
	case "!=":
		jump = Jne
	case "<":
		jump = Jl
	case "<=":
		jump = Jle
	case ">":
		jump = Jg
	case ">=":
		jump = Jge
	default:
		return fmt.Errorf("unknown comparison %q", cond.Op)
	}
	l.emit(Instruction{Op: jump, Dest: Lbl(target)})
	return nil
}

func invertCmp(op string) string {
	switch op {
	case "==":
		return "!="
	case "!=":
		return "=="
	case "<":
		return ">="
	case "<=":
		return ">"
	case ">":
		return "<="
	case ">=":
		return "<"
	}
	return op
}

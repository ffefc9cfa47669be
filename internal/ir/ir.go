// Package ir defines the linear intermediate representation that variant
// synthesis consumes: flat instruction lists over virtual registers with
// labels and conditional jumps, lowered from the parsed AST.
package ir

type Opcode int

const (
	Mov Opcode = iota
	Add
	Sub
	Mul
	Cmp
	Jmp
	Je
	Jne
	Jl
	Jle
	Jg
	Jge
	Label
	Ret
	LoadArg
)

var opcodeNames = [...]string{
	Mov: "mov", Add: "add", Sub: "sub", Mul: "mul", Cmp: "cmp",
	Jmp: "jmp", Je: "je", Jne: "jne", Jl: "jl", Jle: "jle",
	Jg: "jg", Jge: "jge", Label: "label", Ret: "ret", LoadArg: "loadarg",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "invalid"
}

type OperandKind int

const (
	KindNone OperandKind = iota
	KindReg
	KindImm
	KindLabel
)

// Operand is a virtual register, an immediate, or a label reference.
type Operand struct {
	Kind  OperandKind
	Reg   int
	Imm   uint64
	Label string
}

func Reg(r int) Operand       { return Operand{Kind: KindReg, Reg: r} }
func Imm(v uint64) Operand    { return Operand{Kind: KindImm, Imm: v} }
func Lbl(name string) Operand { return Operand{Kind: KindLabel, Label: name} }

type Instruction struct {
	Op   Opcode
	Dest Operand
	Src1 Operand
	Src2 Operand

	// ArgIndex is the parameter index for LoadArg.
	ArgIndex int
}

type Function struct {
	Name         string
	Params       []string
	Instructions []Instruction

	// NumRegs is one past the highest virtual register in use.
	NumRegs int
}

type Program struct {
	Functions []*Function
}

// Main returns the entry function, or nil.
func (p *Program) Main() *Function {
	for _, fn := range p.Functions {
		if fn.Name == "main" {
			return fn
		}
	}
	return nil
}

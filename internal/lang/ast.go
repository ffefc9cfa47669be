package lang

// Program is the root of a parsed script. It is transient: the compiler
// consumes it and does not retain it after variant synthesis.
type Program struct {
	Functions []*FuncDecl
}

// Entry returns the declared entry function.
func (p *Program) Entry() *FuncDecl {
	for _, fn := range p.Functions {
		if fn.Name == EntryName {
			return fn
		}
	}
	return nil
}

// EntryName is the required entry-point function name.
const EntryName = "main"

type FuncDecl struct {
	Name   string
	Params []string
	Body   []Stmt
	Line   int
	Col    int
}

type Stmt interface{ stmt() }

type AssignStmt struct {
	Name string
	X    Expr
}

type ReturnStmt struct {
	X Expr
}

type IfStmt struct {
	Cond Cond
	Then []Stmt
	Else []Stmt
}

type WhileStmt struct {
	Cond Cond
	Body []Stmt
}

type ForStmt struct {
	Init *AssignStmt
	Cond Cond
	Post *AssignStmt
	Body []Stmt
}

type LabelStmt struct {
	Name string
}

type GotoStmt struct {
	Name string
}

func (*AssignStmt) stmt() {}
func (*ReturnStmt) stmt() {}
func (*IfStmt) stmt()     {}
func (*WhileStmt) stmt()  {}
func (*ForStmt) stmt()    {}
func (*LabelStmt) stmt()  {}
func (*GotoStmt) stmt()   {}

type Expr interface{ expr() }

// Ident references a script variable.
type Ident struct {
	Name string
}

// IntLit is an unsigned 64-bit integer literal. Arithmetic wraps.
type IntLit struct {
	Value uint64
}

// BinaryExpr applies Op ("+", "-", "*") to two operands.
type BinaryExpr struct {
	Op string
	X  Expr
	Y  Expr
}

func (*Ident) expr()      {}
func (*IntLit) expr()     {}
func (*BinaryExpr) expr() {}

// Cond is a comparison between two operands. Op is one of
// "==", "!=", "<", "<=", ">", ">=".
type Cond struct {
	Op string
	X  Expr
	Y  Expr
}

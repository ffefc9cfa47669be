// Package lang turns script source text into a validated AST.
//
// Validation happens in two stages with distinct error kinds: the text must
// be well-formed UTF-8 (ErrInvalidEncoding, checked before any token is
// read) and must then match the grammar (ErrSyntax, carrying a line:col
// location). Parsing has no side effects; the returned Program is owned by
// the caller and is typically discarded after compilation.
package lang

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Parse validates and parses one script.
func Parse(source string) (*Program, error) {
	if !utf8.ValidString(source) {
		return nil, ErrInvalidEncoding
	}

	p := &parser{tokens: scan(source)}
	prog := &Program{}
	for p.peek() != nil {
		fn, err := p.parseFunc()
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, fn)
	}
	if prog.Entry() == nil {
		return nil, syntaxErrorf(1, 1, "missing entry point: fn %s not found", EntryName)
	}
	return prog, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() *token {
	if p.pos < len(p.tokens) {
		return &p.tokens[p.pos]
	}
	return nil
}

func (p *parser) next() *token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

// last reports the position of the most recently consumed token, for
// diagnostics at end of input.
func (p *parser) last() (int, int) {
	if p.pos == 0 || len(p.tokens) == 0 {
		return 1, 1
	}
	i := p.pos - 1
	if i >= len(p.tokens) {
		i = len(p.tokens) - 1
	}
	return p.tokens[i].line, p.tokens[i].col
}

func (p *parser) expect(text string) error {
	t := p.next()
	if t == nil {
		line, col := p.last()
		return syntaxErrorf(line, col, "expected %q, found end of input", text)
	}
	if t.text != text {
		return syntaxErrorf(t.line, t.col, "expected %q, found %q", text, t.text)
	}
	return nil
}

func (p *parser) parseFunc() (*FuncDecl, error) {
	t := p.next()
	if t == nil || t.text != "fn" {
		if t == nil {
			line, col := p.last()
			return nil, syntaxErrorf(line, col, "expected fn, found end of input")
		}
		return nil, syntaxErrorf(t.line, t.col, "unexpected token %q: top-level code must be wrapped in fn %s() { ... }", t.text, EntryName)
	}

	name := p.next()
	if name == nil {
		line, col := p.last()
		return nil, syntaxErrorf(line, col, "expected function name")
	}
	fn := &FuncDecl{Name: name.text, Line: name.line, Col: name.col}

	if err := p.expect("("); err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t == nil {
			line, col := p.last()
			return nil, syntaxErrorf(line, col, "unterminated parameter list")
		}
		if t.text == ")" {
			p.next()
			break
		}
		if t.text == "," {
			p.next()
			continue
		}
		fn.Params = append(fn.Params, p.next().text)
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func (p *parser) parseBlock() ([]Stmt, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var stmts []Stmt
	for {
		t := p.peek()
		if t == nil {
			line, col := p.last()
			return nil, syntaxErrorf(line, col, "expected \"}\", found end of input")
		}
		if t.text == "}" {
			p.next()
			return stmts, nil
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
}

func (p *parser) parseStmt() (Stmt, error) {
	t := p.next()
	switch t.text {
	case "return":
		x, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{X: x}, nil

	case "label":
		name := p.next()
		if name == nil {
			line, col := p.last()
			return nil, syntaxErrorf(line, col, "expected label name")
		}
		return &LabelStmt{Name: name.text}, nil

	case "goto":
		name := p.next()
		if name == nil {
			line, col := p.last()
			return nil, syntaxErrorf(line, col, "expected goto target")
		}
		return &GotoStmt{Name: name.text}, nil

	case "if":
		cond, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		then, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt := &IfStmt{Cond: cond, Then: then}
		if nxt := p.peek(); nxt != nil && nxt.text == "else" {
			p.next()
			stmt.Else, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
		return stmt, nil

	case "while":
		cond, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Cond: cond, Body: body}, nil

	case "for":
		return p.parseFor()

	default:
		// Assignment: ident = expr
		if !isIdent(t.text) {
			return nil, syntaxErrorf(t.line, t.col, "unexpected token %q", t.text)
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Name: t.text, X: x}, nil
	}
}

func (p *parser) parseFor() (Stmt, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	init, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	post, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForStmt{Init: init, Cond: cond, Post: post, Body: body}, nil
}

func (p *parser) parseAssign() (*AssignStmt, error) {
	name := p.next()
	if name == nil {
		line, col := p.last()
		return nil, syntaxErrorf(line, col, "expected assignment")
	}
	if !isIdent(name.text) {
		return nil, syntaxErrorf(name.line, name.col, "expected identifier, found %q", name.text)
	}
	if err := p.expect("="); err != nil {
		return nil, err
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &AssignStmt{Name: name.text, X: x}, nil
}

// parseExpr parses an operand optionally followed by one binary operator
// and a second operand.
func (p *parser) parseExpr() (Expr, error) {
	x, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	nxt := p.peek()
	if nxt == nil || (nxt.text != "+" && nxt.text != "-" && nxt.text != "*") {
		return x, nil
	}
	op := p.next().text
	y, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: op, X: x, Y: y}, nil
}

func (p *parser) parseCond() (Cond, error) {
	x, err := p.parseOperand()
	if err != nil {
		return Cond{}, err
	}
	op := p.next()
	if op == nil {
		line, col := p.last()
		return Cond{}, syntaxErrorf(line, col, "expected comparison operator")
	}
	switch op.text {
	case "==", "!=", "<", "<=", ">", ">=":
	default:
		return Cond{}, syntaxErrorf(op.line, op.col, "unknown comparison operator %q", op.text)
	}
	y, err := p.parseOperand()
	if err != nil {
		return Cond{}, err
	}
	return Cond{Op: op.text, X: x, Y: y}, nil
}

func (p *parser) parseOperand() (Expr, error) {
	t := p.next()
	if t == nil {
		line, col := p.last()
		return nil, syntaxErrorf(line, col, "expected operand, found end of input")
	}
	if n, err := strconv.ParseUint(t.text, 10, 64); err == nil {
		return &IntLit{Value: n}, nil
	}
	if !isIdent(t.text) {
		return nil, syntaxErrorf(t.line, t.col, "expected operand, found %q", t.text)
	}
	return &Ident{Name: t.text}, nil
}

func isIdent(s string) bool {
	if s == "" || strings.ContainsAny(s, punct) {
		return false
	}
	switch s {
	case "fn", "return", "if", "else", "while", "for", "label", "goto":
		return false
	}
	return s[0] < '0' || s[0] > '9'
}

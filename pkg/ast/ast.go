// Package ast defines the typed, name-bound Decaf syntax tree the back end
// consumes. Every name reference already points at its symbol-table
// descriptor, and every block carries its scope.
package ast

import (
	"github.com/raymyers/ralph-decaf/pkg/diag"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// Node is the base interface for all tree nodes
type Node interface {
	Position() diag.Pos
}

// Stmt is the interface for all statement nodes
type Stmt interface {
	Node
	implStmt()
}

// Expr is the interface for all expression nodes
type Expr interface {
	Node
	implExpr()
}

// Location is an assignable expression
type Location interface {
	Expr
	implLocation()
}

// Span records where a node came from. Embed it to satisfy Node.
type Span struct {
	Pos diag.Pos
}

func (s Span) Position() diag.Pos { return s.Pos }

// At is shorthand for a Span at file:line:col.
func At(file string, line, col int) Span {
	return Span{Pos: diag.Pos{File: file, Line: line, Col: col}}
}

// BinaryOp represents binary operators
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd // &&
	OpOr  // ||
)

func (op BinaryOp) String() string {
	names := []string{"+", "-", "*", "/", "%", "<", "<=", ">", ">=", "==", "!=", "&&", "||"}
	if int(op) >= 0 && int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// IsConditional reports whether op is && or ||.
func (op BinaryOp) IsConditional() bool { return op == OpAnd || op == OpOr }

// IsBoolean reports whether op yields a boolean.
func (op BinaryOp) IsBoolean() bool { return op >= OpLt && op <= OpOr }

// Program is a whole class: its fields and methods
type Program struct {
	Span
	File    string
	Source  string
	Scope   *symtab.Scope
	Fields  []*FieldDecl
	Methods []*MethodDecl
}

type FieldDecl struct {
	Span
	Desc *symtab.Descriptor
}

type MethodDecl struct {
	Span
	Method *symtab.Method
	Body   *Block
}

// Block represents a braced statement list with its own scope
type Block struct {
	Span
	Scope *symtab.Scope
	Stmts []Stmt
}

// Assign represents `dest = value`
type Assign struct {
	Span
	Dest  Location
	Value Expr
}

// If represents a conditional; Else may be nil
type If struct {
	Span
	Cond Expr
	Then *Block
	Else *Block
}

// For represents `for (v = init, end) body`. End is evaluated once before
// the first iteration.
type For struct {
	Span
	Var  *ScalarLoc
	Init Expr
	End  Expr
	Body *Block
}

// Return represents a return statement; Value is nil for a bare return
type Return struct {
	Span
	Value Expr
}

type Break struct{ Span }

type Continue struct{ Span }

// ExprStmt is a method call or callout evaluated for its effects
type ExprStmt struct {
	Span
	Call Expr
}

type IntLit struct {
	Span
	Value int64
}

type BoolLit struct {
	Span
	Value bool
}

// StringLit only appears as a callout argument
type StringLit struct {
	Span
	Value string
}

// ScalarLoc is a reference to a scalar variable
type ScalarLoc struct {
	Span
	Desc *symtab.Descriptor
}

// ArrayLoc is an element reference `name[index]`
type ArrayLoc struct {
	Span
	Desc  *symtab.Descriptor
	Index Expr
}

type Binary struct {
	Span
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// Not is logical negation
type Not struct {
	Span
	X Expr
}

// Neg is arithmetic negation
type Neg struct {
	Span
	X Expr
}

type MethodCall struct {
	Span
	Method *symtab.Method
	Args   []Expr
}

// Callout invokes an external routine by name. Its value is an int.
type Callout struct {
	Span
	Name string
	Args []Expr
}

// Marker methods for interface implementation
func (*Assign) implStmt()   {}
func (*If) implStmt()       {}
func (*For) implStmt()      {}
func (*Return) implStmt()   {}
func (*Break) implStmt()    {}
func (*Continue) implStmt() {}
func (*ExprStmt) implStmt() {}
func (*Block) implStmt()    {}

func (*IntLit) implExpr()     {}
func (*BoolLit) implExpr()    {}
func (*StringLit) implExpr()  {}
func (*ScalarLoc) implExpr()  {}
func (*ArrayLoc) implExpr()   {}
func (*Binary) implExpr()     {}
func (*Not) implExpr()        {}
func (*Neg) implExpr()        {}
func (*MethodCall) implExpr() {}
func (*Callout) implExpr()    {}

func (*ScalarLoc) implLocation() {}
func (*ArrayLoc) implLocation()  {}

// TypeOf returns the static type of e.
func TypeOf(e Expr) symtab.Type {
	switch e := e.(type) {
	case *IntLit, *Neg, *Callout:
		return symtab.Int
	case *BoolLit, *Not:
		return symtab.Bool
	case *StringLit:
		return symtab.String
	case *ScalarLoc:
		return e.Desc.Type
	case *ArrayLoc:
		return e.Desc.Type.Elem()
	case *Binary:
		if e.Op.IsBoolean() {
			return symtab.Bool
		}
		return symtab.Int
	case *MethodCall:
		return e.Method.Return
	}
	return symtab.Void
}

// ContainsCall reports whether evaluating e may call a method.
func ContainsCall(e Expr) bool {
	switch e := e.(type) {
	case *MethodCall:
		return true
	case *Callout:
		for _, a := range e.Args {
			if ContainsCall(a) {
				return true
			}
		}
	case *ArrayLoc:
		return ContainsCall(e.Index)
	case *Binary:
		return ContainsCall(e.Left) || ContainsCall(e.Right)
	case *Not:
		return ContainsCall(e.X)
	case *Neg:
		return ContainsCall(e.X)
	}
	return false
}

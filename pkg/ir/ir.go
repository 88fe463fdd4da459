// Package ir defines the three-address operand and statement model shared by
// the CFG builder, the analyses, the optimizer and the emitter.
package ir

import (
	"github.com/raymyers/ralph-decaf/pkg/ast"
	"github.com/raymyers/ralph-decaf/pkg/diag"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// --- Operands ---

// Operand is a statement input or destination. Operands are comparable
// values: two operands are equal iff they are structurally equal, so they
// can be used directly as map keys.
type Operand interface {
	implOperand()
}

// ConstInt is an integer literal
type ConstInt struct {
	Value int64
}

// ConstBool is a boolean literal
type ConstBool struct {
	Value bool
}

// Var names a scalar variable
type Var struct {
	Desc *symtab.Descriptor
}

// ArrayVar names one element of an array. Index is a constant or a scalar.
type ArrayVar struct {
	Desc  *symtab.Descriptor
	Index Operand
}

func (ConstInt) implOperand()  {}
func (ConstBool) implOperand() {}
func (Var) implOperand()       {}
func (ArrayVar) implOperand()  {}

// DescOf returns the descriptor behind a variable operand, or nil.
func DescOf(o Operand) *symtab.Descriptor {
	switch o := o.(type) {
	case Var:
		return o.Desc
	case ArrayVar:
		return o.Desc
	}
	return nil
}

// IsConst reports whether o is a literal.
func IsConst(o Operand) bool {
	switch o.(type) {
	case ConstInt, ConstBool:
		return true
	}
	return false
}

// IsImmutableTemp reports whether o is a temporary that is never overwritten
// once assigned.
func IsImmutableTemp(o Operand) bool {
	v, ok := o.(Var)
	return ok && v.Desc.Immutable
}

// TypeOf returns the value type of o.
func TypeOf(o Operand) symtab.Type {
	switch o := o.(type) {
	case ConstInt:
		return symtab.Int
	case ConstBool:
		return symtab.Bool
	case Var:
		return o.Desc.Type
	case ArrayVar:
		return o.Desc.Type.Elem()
	}
	return symtab.Void
}

// --- Opcodes ---

type Opcode int

const (
	OpInvalid Opcode = iota
	OpMove
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpReturn
	OpEnter
)

var opcodeNames = [...]string{
	OpInvalid: "INVALID",
	OpMove:    "MOVE",
	OpAdd:     "ADD",
	OpSub:     "SUBTRACT",
	OpMul:     "MULTIPLY",
	OpDiv:     "DIVIDE",
	OpMod:     "MOD",
	OpNeg:     "UNARY_MINUS",
	OpNot:     "NOT",
	OpEq:      "EQUAL",
	OpNe:      "NOT_EQUAL",
	OpLt:      "LESS_THAN",
	OpLe:      "LESS_EQUAL",
	OpGt:      "GREATER_THAN",
	OpGe:      "GREATER_EQUAL",
	OpReturn:  "RETURN",
	OpEnter:   "ENTER",
}

func (op Opcode) String() string {
	if op >= 0 && int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "INVALID"
}

// IsRelational reports whether op is one of the six comparisons.
func (op Opcode) IsRelational() bool { return op >= OpEq && op <= OpGe }

// Negate returns the comparison that holds exactly when op does not. Other
// opcodes are returned unchanged.
func (op Opcode) Negate() Opcode {
	switch op {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpLt:
		return OpGe
	case OpGe:
		return OpLt
	case OpLe:
		return OpGt
	case OpGt:
		return OpLe
	}
	return op
}

// IsExpression reports whether op computes a value from its arguments, as
// opposed to copying (MOVE) or marking control (RETURN, ENTER).
func (op Opcode) IsExpression() bool { return op >= OpAdd && op <= OpGe }

// --- Statements ---

// Statement is one atomic action in a CFG node or block
type Statement interface {
	implStatement()
	Origin() ast.Node
}

// Op is an arithmetic, comparison, move or control-marker statement.
// MOVE copies Arg1 into Result. RETURN reads the optional Arg1. ENTER
// carries the frame size in Arg1.
type Op struct {
	Opcode Opcode
	Arg1   Operand
	Arg2   Operand
	Result Operand
	Node   ast.Node
}

// Call invokes a method, or an external routine when Builtin is set.
// Result is nil when the value is discarded.
type Call struct {
	Callee  string
	Args    []Operand
	Result  Operand
	Builtin bool
	Node    ast.Node
}

// Argument exposes an operand as a fragment result. It only exists while
// building the CFG.
type Argument struct {
	Operand Operand
	Node    ast.Node
}

// Dummy is an empty merge point. It only exists while building the CFG.
type Dummy struct {
	Node ast.Node
}

func (Op) implStatement()       {}
func (Call) implStatement()     {}
func (Argument) implStatement() {}
func (Dummy) implStatement()    {}

func (s Op) Origin() ast.Node       { return s.Node }
func (s Call) Origin() ast.Node     { return s.Node }
func (s Argument) Origin() ast.Node { return s.Node }
func (s Dummy) Origin() ast.Node    { return s.Node }

// PosOf returns the source position a statement came from.
func PosOf(s Statement) diag.Pos {
	if n := s.Origin(); n != nil {
		return n.Position()
	}
	return diag.Pos{}
}

// Defines returns the operand a statement writes, or nil.
func Defines(s Statement) Operand {
	switch s := s.(type) {
	case Op:
		if s.Opcode == OpReturn || s.Opcode == OpEnter {
			return nil
		}
		return s.Result
	case Call:
		return s.Result
	}
	return nil
}

// ResultOf returns the operand whose value a statement exposes to a parent
// expression, or nil.
func ResultOf(s Statement) Operand {
	if a, ok := s.(Argument); ok {
		return a.Operand
	}
	return Defines(s)
}

// Uses returns the operands a statement reads, including array indices.
func Uses(s Statement) []Operand {
	var ops []Operand
	add := func(o Operand) {
		if o == nil {
			return
		}
		ops = append(ops, o)
		if av, ok := o.(ArrayVar); ok {
			ops = append(ops, av.Index)
		}
	}
	switch s := s.(type) {
	case Op:
		if s.Opcode == OpEnter {
			return nil
		}
		add(s.Arg1)
		add(s.Arg2)
		if av, ok := s.Result.(ArrayVar); ok {
			ops = append(ops, av.Index)
		}
	case Call:
		for _, a := range s.Args {
			add(a)
		}
	case Argument:
		add(s.Operand)
	}
	return ops
}

// IsPlaceholder reports whether s is a builder-only statement that must not
// survive block coalescing.
func IsPlaceholder(s Statement) bool {
	switch s.(type) {
	case Argument, Dummy:
		return true
	}
	return false
}

package dataflow

import (
	"fmt"
	"sort"

	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// Expr is the right-hand side of an expression statement. Two statements
// compute the same expression iff their Exprs are equal.
type Expr struct {
	Op   ir.Opcode
	Arg1 ir.Operand
	Arg2 ir.Operand
}

// ExprOf extracts the expression computed by s, if any.
func ExprOf(s ir.Statement) (Expr, bool) {
	op, ok := s.(ir.Op)
	if !ok || !op.Opcode.IsExpression() {
		return Expr{}, false
	}
	return Expr{Op: op.Opcode, Arg1: op.Arg1, Arg2: op.Arg2}, true
}

func (e Expr) String() string {
	if e.Arg2 == nil {
		return fmt.Sprintf("%s(%s)", e.Op, ir.FormatOperand(e.Arg1))
	}
	return fmt.Sprintf("%s(%s, %s)", e.Op, ir.FormatOperand(e.Arg1), ir.FormatOperand(e.Arg2))
}

func (e Expr) operands() []ir.Operand {
	var ops []ir.Operand
	for _, o := range []ir.Operand{e.Arg1, e.Arg2} {
		if o == nil {
			continue
		}
		ops = append(ops, o)
		if av, ok := o.(ir.ArrayVar); ok {
			ops = append(ops, av.Index)
		}
	}
	return ops
}

// KilledBy reports whether writing def invalidates e. A write to any
// element of an array kills every expression reading that array.
func (e Expr) KilledBy(def ir.Operand) bool {
	switch d := def.(type) {
	case ir.Var:
		for _, o := range e.operands() {
			if v, ok := o.(ir.Var); ok && v.Desc == d.Desc {
				return true
			}
		}
	case ir.ArrayVar:
		for _, o := range e.operands() {
			if av, ok := o.(ir.ArrayVar); ok && av.Desc == d.Desc {
				return true
			}
		}
	}
	return false
}

// readsGlobal reports whether e reads a field a called method could change.
func (e Expr) readsGlobal() bool {
	for _, o := range e.operands() {
		if d := ir.DescOf(o); d != nil && d.Kind == symtab.Field {
			return true
		}
	}
	return false
}

// ExprSet is a set of expressions. Operations return new sets.
type ExprSet map[Expr]struct{}

// NewExprSet creates a set holding es.
func NewExprSet(es ...Expr) ExprSet {
	s := make(ExprSet, len(es))
	for _, e := range es {
		s[e] = struct{}{}
	}
	return s
}

func (s ExprSet) Add(e Expr) { s[e] = struct{}{} }

func (s ExprSet) Contains(e Expr) bool {
	_, ok := s[e]
	return ok
}

func (s ExprSet) Copy() ExprSet {
	c := make(ExprSet, len(s))
	for e := range s {
		c[e] = struct{}{}
	}
	return c
}

func (s ExprSet) Union(o ExprSet) ExprSet {
	u := s.Copy()
	for e := range o {
		u[e] = struct{}{}
	}
	return u
}

func (s ExprSet) Minus(o ExprSet) ExprSet {
	d := make(ExprSet, len(s))
	for e := range s {
		if !o.Contains(e) {
			d[e] = struct{}{}
		}
	}
	return d
}

func (s ExprSet) Intersect(o ExprSet) ExprSet {
	r := make(ExprSet)
	for e := range s {
		if o.Contains(e) {
			r[e] = struct{}{}
		}
	}
	return r
}

func (s ExprSet) Equal(o ExprSet) bool {
	if len(s) != len(o) {
		return false
	}
	for e := range s {
		if !o.Contains(e) {
			return false
		}
	}
	return true
}

// Slice returns the members sorted by their printed form.
func (s ExprSet) Slice() []Expr {
	es := make([]Expr, 0, len(s))
	for e := range s {
		es = append(es, e)
	}
	sort.Slice(es, func(i, j int) bool { return es[i].String() < es[j].String() })
	return es
}

// matching returns the members for which keep holds.
func (s ExprSet) matching(keep func(Expr) bool) ExprSet {
	m := make(ExprSet)
	for e := range s {
		if keep(e) {
			m[e] = struct{}{}
		}
	}
	return m
}

// ExprLattice orders the sets over a fixed universe by inclusion. Top is
// the universe, Bottom the empty set and Meet intersection.
type ExprLattice struct {
	universe ExprSet
}

var _ Lattice[ExprSet] = ExprLattice{}

// NewExprLattice collects the expressions computed in the blocks reachable
// from entry.
func NewExprLattice(entry *cfg.Block) ExprLattice {
	u := NewExprSet()
	for _, b := range cfg.Walk(entry) {
		for _, s := range b.Stmts {
			if e, ok := ExprOf(s); ok {
				u.Add(e)
			}
		}
	}
	return ExprLattice{universe: u}
}

func (l ExprLattice) Bottom() ExprSet { return NewExprSet() }

func (l ExprLattice) Top() ExprSet { return l.universe.Copy() }

func (l ExprLattice) Meet(x, y ExprSet) ExprSet { return x.Intersect(y) }

func (l ExprLattice) Equal(x, y ExprSet) bool { return x.Equal(y) }

// AvailableExpressions is a forward must-analysis: an expression is
// available at a point if every path there computes it and none of its
// operands is redefined afterwards.
type AvailableExpressions struct {
	ExprLattice
}

var _ Problem[ExprSet] = AvailableExpressions{}

// NewAvailableExpressions prepares the analysis for the method entered at
// entry.
func NewAvailableExpressions(entry *cfg.Block) AvailableExpressions {
	return AvailableExpressions{ExprLattice: NewExprLattice(entry)}
}

func (a AvailableExpressions) Direction() Direction { return Forward }

// Boundary: nothing has been computed on entry to a method.
func (a AvailableExpressions) Boundary() ExprSet { return a.Bottom() }

// Step generates the expression s computes, then kills what s invalidates.
// A statement that redefines one of its own operands, like x = x + 1,
// generates nothing.
func (a AvailableExpressions) Step(s ir.Statement, in ExprSet) ExprSet {
	out := in
	if e, ok := ExprOf(s); ok {
		out = out.Union(NewExprSet(e))
	}
	if call, ok := s.(ir.Call); ok && !call.Builtin {
		out = out.Minus(out.matching(Expr.readsGlobal))
	}
	if def := ir.Defines(s); def != nil {
		out = out.Minus(out.matching(func(e Expr) bool { return e.KilledBy(def) }))
	}
	return out
}

func (a AvailableExpressions) Height() int { return len(a.universe) + 1 }

// AnalyzeAvailable solves available expressions for one method.
func AnalyzeAvailable(entry *cfg.Block) (*Result[ExprSet], error) {
	return Solve[ExprSet](entry, NewAvailableExpressions(entry))
}

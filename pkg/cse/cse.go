// Package cse eliminates redundant computations inside basic blocks by local
// value numbering.
//
// Every operand read in a block gets a value number, and every expression is
// keyed by its opcode and the value numbers of its operands. The first
// computation of an expression leaves its value in an immutable temporary
// (a holder); a later computation with the same key becomes a move from the
// holder. Nothing is carried across block boundaries.
package cse

import (
	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/diag"
	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// exprKey identifies an expression by its opcode and operand value numbers.
// Unary expressions use -1 for the missing operand.
type exprKey struct {
	op   ir.Opcode
	a, b int
}

// Stats counts what one run changed.
type Stats struct {
	Rewritten int // expressions turned into moves from a holder
	Dropped   int // self-moves removed
	Temps     int // holder temporaries allocated
}

func (s *Stats) add(o Stats) {
	s.Rewritten += o.Rewritten
	s.Dropped += o.Dropped
	s.Temps += o.Temps
}

// Optimizer rewrites blocks in place. It is not safe for concurrent use.
type Optimizer struct {
	reporter *diag.Reporter

	nextVal  int
	varToVal map[ir.Operand]int
	expToVal map[exprKey]int
	valToTmp map[int]ir.Var
}

// New creates an optimizer reporting into r.
func New(r *diag.Reporter) *Optimizer {
	return &Optimizer{reporter: r}
}

// reset clears the per-block tables.
func (o *Optimizer) reset() {
	o.nextVal = 0
	o.varToVal = make(map[ir.Operand]int)
	o.expToVal = make(map[exprKey]int)
	o.valToTmp = make(map[int]ir.Var)
}

// Optimize runs over every block of every method of g.
func (o *Optimizer) Optimize(g *cfg.Graph) Stats {
	var total Stats
	for _, m := range g.Methods() {
		total.add(o.OptimizeMethod(m))
	}
	return total
}

// OptimizeMethod runs over every block reachable from m's entry.
func (o *Optimizer) OptimizeMethod(m *cfg.Method) Stats {
	var total Stats
	for _, b := range cfg.Walk(m.Entry) {
		total.add(o.OptimizeBlock(b))
	}
	return total
}

// OptimizeBlock value-numbers one block and replaces its statement list.
// The last statement of a branching block computes the branch condition and
// is left exactly as it is.
func (o *Optimizer) OptimizeBlock(b *cfg.Block) Stats {
	o.reset()
	var st Stats
	out := make([]ir.Statement, 0, len(b.Stmts))

	for i, s := range b.Stmts {
		terminator := b.IsBranch() && i == len(b.Stmts)-1
		switch s := s.(type) {
		case ir.Call:
			if !s.Builtin {
				o.forgetGlobals()
			}
			for _, a := range s.Args {
				o.valueOf(a)
			}
			if s.Result != nil {
				o.assign(s.Result, o.fresh())
			}
			out = append(out, s)

		case ir.Op:
			switch {
			case s.Opcode == ir.OpReturn || s.Opcode == ir.OpEnter:
				out = append(out, s)

			case s.Opcode == ir.OpMove:
				if s.Arg1 == s.Result {
					st.Dropped++
					continue
				}
				o.move(s)
				out = append(out, s)

			case s.Opcode.IsExpression() && s.Result != nil:
				key := o.keyOf(s)
				if !terminator {
					if val, ok := o.expToVal[key]; ok {
						if h, ok := o.valToTmp[val]; ok && h != s.Result {
							mv := ir.Op{Opcode: ir.OpMove, Arg1: h, Result: s.Result, Node: s.Node}
							o.assign(s.Result, val)
							out = append(out, mv)
							st.Rewritten++
							continue
						}
					}
				}
				val := o.fresh()
				o.expToVal[key] = val
				o.assign(s.Result, val)
				out = append(out, s)
				if terminator {
					continue
				}
				if copyStmt, ok := o.hold(b, s, val, b.Stmts[i+1:]); ok {
					out = append(out, copyStmt)
					st.Temps++
				}

			default:
				// Unknown opcodes still define their result.
				if s.Result != nil {
					o.assign(s.Result, o.fresh())
				}
				out = append(out, s)
			}

		default:
			out = append(out, s)
		}
	}
	b.Stmts = out
	return st
}

func (o *Optimizer) fresh() int {
	v := o.nextVal
	o.nextVal++
	return v
}

// valueOf returns the value number of an operand, numbering it on first
// sight. Literals are numbered like variables so that x := 1 followed by
// x + 2 and 1 + 2 share a key.
func (o *Optimizer) valueOf(op ir.Operand) int {
	if op == nil {
		return -1
	}
	if av, ok := op.(ir.ArrayVar); ok {
		o.valueOf(av.Index)
	}
	if v, ok := o.varToVal[op]; ok {
		return v
	}
	v := o.fresh()
	o.varToVal[op] = v
	return v
}

func (o *Optimizer) keyOf(s ir.Op) exprKey {
	return exprKey{op: s.Opcode, a: o.valueOf(s.Arg1), b: o.valueOf(s.Arg2)}
}

// move records d := src. The destination takes the source's value number.
// A move into an immutable temporary can become the holder of that value,
// but a literal never gets a holder.
func (o *Optimizer) move(s ir.Op) {
	val := o.valueOf(s.Arg1)
	o.assign(s.Result, val)
	if ir.IsConst(s.Arg1) || !ir.IsImmutableTemp(s.Result) {
		return
	}
	if _, ok := o.valToTmp[val]; !ok {
		o.valToTmp[val] = s.Result.(ir.Var)
	}
}

// hold makes sure the value just computed into s.Result survives later
// writes to it. An immutable temporary destination holds itself; a
// following "MOVE d -> t" left by an earlier run is reused; otherwise a new
// temporary is allocated and the returned copy must be emitted after s.
func (o *Optimizer) hold(b *cfg.Block, s ir.Op, val int, rest []ir.Statement) (ir.Statement, bool) {
	d, ok := s.Result.(ir.Var)
	if !ok {
		return nil, false
	}
	if d.Desc.Immutable {
		o.valToTmp[val] = d
		return nil, false
	}
	if len(rest) > 0 {
		if mv, ok := rest[0].(ir.Op); ok && mv.Opcode == ir.OpMove && mv.Arg1 == s.Result && ir.IsImmutableTemp(mv.Result) {
			return nil, false
		}
	}
	if b.Scope == nil || b.Scope.Frame() == nil {
		o.reporter.Errorf(ir.PosOf(s), diag.Optimize, "block %s has no frame for a temporary", b.ID)
		return nil, false
	}
	t := ir.Var{Desc: b.Scope.AllocTemp(d.Desc.Type, true)}
	o.varToVal[t] = val
	o.valToTmp[val] = t
	return ir.Op{Opcode: ir.OpMove, Arg1: d, Result: t, Node: s.Node}, true
}

// assign gives dest the value number val after invalidating everything the
// write makes stale.
func (o *Optimizer) assign(dest ir.Operand, val int) {
	switch d := dest.(type) {
	case ir.ArrayVar:
		// Indices are not compared: any element write hides every cached
		// element of the same array.
		for k := range o.varToVal {
			if av, ok := k.(ir.ArrayVar); ok && av.Desc == d.Desc {
				delete(o.varToVal, k)
			}
		}
	case ir.Var:
		for k := range o.varToVal {
			if av, ok := k.(ir.ArrayVar); ok && av.Index == dest {
				delete(o.varToVal, k)
			}
		}
		for v, h := range o.valToTmp {
			if h == d {
				delete(o.valToTmp, v)
			}
		}
	}
	o.varToVal[dest] = val
}

// forgetGlobals drops every cached field value, including elements of
// global arrays and elements indexed by a global.
func (o *Optimizer) forgetGlobals() {
	for k := range o.varToVal {
		if isGlobal(k) {
			delete(o.varToVal, k)
			continue
		}
		if av, ok := k.(ir.ArrayVar); ok && isGlobal(av.Index) {
			delete(o.varToVal, k)
		}
	}
}

func isGlobal(op ir.Operand) bool {
	d := ir.DescOf(op)
	return d != nil && d.Kind == symtab.Field
}

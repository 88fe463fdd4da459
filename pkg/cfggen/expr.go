package cfggen

import (
	"github.com/raymyers/ralph-decaf/pkg/ast"
	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

var binaryOpcodes = map[ast.BinaryOp]ir.Opcode{
	ast.OpAdd: ir.OpAdd,
	ast.OpSub: ir.OpSub,
	ast.OpMul: ir.OpMul,
	ast.OpDiv: ir.OpDiv,
	ast.OpMod: ir.OpMod,
	ast.OpLt:  ir.OpLt,
	ast.OpLe:  ir.OpLe,
	ast.OpGt:  ir.OpGt,
	ast.OpGe:  ir.OpGe,
	ast.OpEq:  ir.OpEq,
	ast.OpNe:  ir.OpNe,
}

// expr lowers e into a fragment whose exit exposes e's value.
func (b *Builder) expr(e ast.Expr) cfg.Fragment {
	switch e := e.(type) {
	case *ast.IntLit:
		return b.arena.Single(ir.Argument{Operand: ir.ConstInt{Value: e.Value}, Node: e})
	case *ast.BoolLit:
		return b.arena.Single(ir.Argument{Operand: ir.ConstBool{Value: e.Value}, Node: e})
	case *ast.StringLit:
		return b.arena.Single(ir.Argument{Operand: ir.Var{Desc: b.stringDesc(e.Value)}, Node: e})
	case *ast.ScalarLoc:
		return b.arena.Single(ir.Argument{Operand: ir.Var{Desc: e.Desc}, Node: e})
	case *ast.ArrayLoc:
		frag, idx := b.index(e.Index, false)
		return b.arena.AppendStmt(frag, ir.Argument{Operand: ir.ArrayVar{Desc: e.Desc, Index: idx}, Node: e})
	case *ast.Binary:
		if e.Op.IsConditional() {
			return b.materialize(e)
		}
		op, ok := binaryOpcodes[e.Op]
		if !ok {
			b.errorf(e, "unsupported operator %q", e.Op)
			op = ir.OpInvalid
		}
		left, l := b.value(e.Left, ast.ContainsCall(e.Right))
		right, r := b.value(e.Right, false)
		frag := b.arena.Link(left, right)
		return b.arena.AppendStmt(frag, ir.Op{Opcode: op, Arg1: l, Arg2: r, Result: b.temp(ast.TypeOf(e), true), Node: e})
	case *ast.Not:
		frag, x := b.value(e.X, false)
		return b.arena.AppendStmt(frag, ir.Op{Opcode: ir.OpNot, Arg1: x, Result: b.temp(symtab.Bool, true), Node: e})
	case *ast.Neg:
		frag, x := b.value(e.X, false)
		return b.arena.AppendStmt(frag, ir.Op{Opcode: ir.OpNeg, Arg1: x, Result: b.temp(symtab.Int, true), Node: e})
	case *ast.MethodCall, *ast.Callout:
		return b.call(e, false)
	default:
		b.errorf(e, "unsupported expression %T", e)
		return b.arena.Single(ir.Argument{Operand: ir.ConstInt{Value: 0}, Node: e})
	}
}

// value lowers e and returns its result operand. When a call evaluated
// later in the same expression could change the operand (a global or an
// array element), the value is first copied into a temporary.
func (b *Builder) value(e ast.Expr, callFollows bool) (cfg.Fragment, ir.Operand) {
	frag := b.expr(e)
	v := b.arena.ResultOf(frag)
	if v == nil {
		b.errorf(e, "expression has no value")
		v = ir.ConstInt{Value: 0}
	}
	if callFollows && volatile(v) {
		return b.snapshot(frag, v, e)
	}
	return frag, v
}

// index lowers an array index. The result is always a constant or a
// scalar, since the emitter addresses elements through a single register.
func (b *Builder) index(e ast.Expr, callFollows bool) (cfg.Fragment, ir.Operand) {
	frag, v := b.value(e, callFollows)
	if _, ok := v.(ir.ArrayVar); ok {
		return b.snapshot(frag, v, e)
	}
	return frag, v
}

func (b *Builder) snapshot(frag cfg.Fragment, v ir.Operand, n ast.Node) (cfg.Fragment, ir.Operand) {
	t := b.temp(ir.TypeOf(v), true)
	frag = b.arena.AppendStmt(frag, ir.Op{Opcode: ir.OpMove, Arg1: v, Result: t, Node: n})
	return frag, t
}

func volatile(v ir.Operand) bool {
	switch v := v.(type) {
	case ir.ArrayVar:
		return true
	case ir.Var:
		return v.Desc.IsGlobal() && v.Desc.Kind == symtab.Field
	}
	return false
}

// call lowers a method call or callout. Arguments are evaluated left to
// right. With discard set the result is not stored.
func (b *Builder) call(e ast.Expr, discard bool) cfg.Fragment {
	var (
		callee  string
		args    []ast.Expr
		ret     symtab.Type
		builtin bool
	)
	switch c := e.(type) {
	case *ast.MethodCall:
		callee, args, ret = c.Method.Name, c.Args, c.Method.Return
	case *ast.Callout:
		callee, args, ret, builtin = c.Name, c.Args, symtab.Int, true
	default:
		b.errorf(e, "not a call: %T", e)
		return b.arena.Single(ir.Dummy{Node: e})
	}

	frag := b.arena.Single(ir.Dummy{Node: e})
	ops := make([]ir.Operand, len(args))
	for i, a := range args {
		callFollows := false
		for _, later := range args[i+1:] {
			if ast.ContainsCall(later) {
				callFollows = true
				break
			}
		}
		argFrag, v := b.value(a, callFollows)
		frag = b.arena.Link(frag, argFrag)
		ops[i] = v
	}

	call := ir.Call{Callee: callee, Args: ops, Builtin: builtin, Node: e}
	if !discard && ret != symtab.Void {
		call.Result = b.temp(ret, true)
	}
	return b.arena.AppendStmt(frag, call)
}

// stringDesc interns a literal and returns the descriptor naming its label.
func (b *Builder) stringDesc(text string) *symtab.Descriptor {
	label := b.graph.AddString(text)
	if d, ok := b.strings[label]; ok {
		return d
	}
	d := &symtab.Descriptor{
		Name: label,
		Type: symtab.String,
		Kind: symtab.StringLit,
		Loc:  symtab.Location{Kind: symtab.Global, Symbol: label},
	}
	b.strings[label] = d
	return d
}

// cond lowers e as a branch condition: control reaches ifso when e is true
// and ifnot otherwise. It returns the node where evaluation starts. The
// right operand of && and || is lowered first so the left operand can
// branch straight to it, which gives true short-circuit evaluation.
func (b *Builder) cond(e ast.Expr, ifso, ifnot cfg.NodeID) cfg.NodeID {
	switch c := e.(type) {
	case *ast.Binary:
		switch c.Op {
		case ast.OpAnd:
			// c1 && c2: if c1 then (if c2 then ifso else ifnot) else ifnot
			inner := b.cond(c.Right, ifso, ifnot)
			return b.cond(c.Left, inner, ifnot)
		case ast.OpOr:
			// c1 || c2: if c1 then ifso else (if c2 then ifso else ifnot)
			inner := b.cond(c.Right, ifso, ifnot)
			return b.cond(c.Left, ifso, inner)
		}
		if op, ok := binaryOpcodes[c.Op]; ok && op.IsRelational() {
			return b.compare(c, op, c, ifso, ifnot)
		}
	case *ast.Not:
		// !(a < b) is a >= b.
		if x, ok := c.X.(*ast.Binary); ok {
			if op, ok := binaryOpcodes[x.Op]; ok && op.IsRelational() {
				return b.compare(x, op.Negate(), c, ifso, ifnot)
			}
		}
		return b.cond(c.X, ifnot, ifso)
	case *ast.BoolLit:
		if c.Value {
			return ifso
		}
		return ifnot
	}

	// Anything else: compute the value and test it against true.
	frag, v := b.value(e, false)
	frag = b.arena.AppendStmt(frag, ir.Op{
		Opcode: ir.OpEq,
		Arg1:   v,
		Arg2:   ir.ConstBool{Value: true},
		Result: b.temp(symtab.Bool, true),
		Node:   e,
	})
	b.branch(frag.Exit, ifso, ifnot)
	return frag.Enter
}

// compare lowers the operands of e, compares them with op and branches on
// the outcome.
func (b *Builder) compare(e *ast.Binary, op ir.Opcode, n ast.Node, ifso, ifnot cfg.NodeID) cfg.NodeID {
	left, l := b.value(e.Left, ast.ContainsCall(e.Right))
	right, r := b.value(e.Right, false)
	frag := b.arena.AppendStmt(b.arena.Link(left, right), ir.Op{Opcode: op, Arg1: l, Arg2: r, Result: b.temp(symtab.Bool, true), Node: n})
	b.branch(frag.Exit, ifso, ifnot)
	return frag.Enter
}

func (b *Builder) branch(n, ifso, ifnot cfg.NodeID) {
	b.arena.SetBranch(n, ifso)
	b.arena.SetNext(n, ifnot)
}

// materialize turns && or || used as a value into 0/1 by branching into
// two moves that meet at a node exposing the result.
func (b *Builder) materialize(e *ast.Binary) cfg.Fragment {
	t := b.temp(symtab.Bool, false)
	done := b.arena.NewNode(ir.Argument{Operand: t, Node: e})
	yes := b.arena.NewNode(ir.Op{Opcode: ir.OpMove, Arg1: ir.ConstBool{Value: true}, Result: t, Node: e})
	no := b.arena.NewNode(ir.Op{Opcode: ir.OpMove, Arg1: ir.ConstBool{Value: false}, Result: t, Node: e})
	b.arena.SetNext(yes, done)
	b.arena.SetNext(no, done)
	return cfg.Fragment{Enter: b.cond(e, yes, no), Exit: done}
}

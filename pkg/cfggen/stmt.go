package cfggen

import (
	"github.com/raymyers/ralph-decaf/pkg/ast"
	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// block lowers a braced statement list. The leading dummy keeps empty
// blocks representable; coalescing drops it.
func (b *Builder) block(blk *ast.Block) cfg.Fragment {
	saved := b.scope
	if blk.Scope != nil {
		b.setScope(blk.Scope)
	}
	defer b.setScope(saved)

	frag := b.arena.Single(ir.Dummy{Node: blk})
	for _, s := range blk.Stmts {
		frag = b.arena.Link(frag, b.stmt(s))
	}
	return frag
}

func (b *Builder) stmt(s ast.Stmt) cfg.Fragment {
	switch s := s.(type) {
	case *ast.Block:
		return b.block(s)
	case *ast.Assign:
		return b.assign(s)
	case *ast.If:
		return b.ifStmt(s)
	case *ast.For:
		return b.forStmt(s)
	case *ast.Return:
		if s.Value == nil {
			return b.arena.Single(ir.Op{Opcode: ir.OpReturn, Node: s})
		}
		frag, v := b.value(s.Value, false)
		return b.arena.AppendStmt(frag, ir.Op{Opcode: ir.OpReturn, Arg1: v, Node: s})
	case *ast.Break:
		return b.jump(s, func(l loopTargets) cfg.NodeID { return l.breakTo }, "break")
	case *ast.Continue:
		return b.jump(s, func(l loopTargets) cfg.NodeID { return l.continueTo }, "continue")
	case *ast.ExprStmt:
		return b.call(s.Call, true)
	default:
		b.errorf(s, "unsupported statement %T", s)
		return b.arena.Single(ir.Dummy{Node: s})
	}
}

// assign evaluates the destination index (if any), then the value, then
// stores with a MOVE.
func (b *Builder) assign(s *ast.Assign) cfg.Fragment {
	switch d := s.Dest.(type) {
	case *ast.ScalarLoc:
		frag, v := b.value(s.Value, false)
		return b.arena.AppendStmt(frag, ir.Op{Opcode: ir.OpMove, Arg1: v, Result: ir.Var{Desc: d.Desc}, Node: s})
	case *ast.ArrayLoc:
		idxFrag, idx := b.index(d.Index, ast.ContainsCall(s.Value))
		valFrag, v := b.value(s.Value, false)
		frag := b.arena.Link(idxFrag, valFrag)
		dst := ir.ArrayVar{Desc: d.Desc, Index: idx}
		return b.arena.AppendStmt(frag, ir.Op{Opcode: ir.OpMove, Arg1: v, Result: dst, Node: s})
	default:
		b.errorf(s, "unsupported assignment target %T", s.Dest)
		return b.arena.Single(ir.Dummy{Node: s})
	}
}

// ifStmt: the condition branches into the arms, and both arms meet at a
// shared dummy.
func (b *Builder) ifStmt(s *ast.If) cfg.Fragment {
	merge := b.arena.NewNode(ir.Dummy{Node: s})

	thenFrag := b.block(s.Then)
	b.arena.Join(thenFrag.Exit, merge)

	elseEnter := merge
	if s.Else != nil {
		elseFrag := b.block(s.Else)
		b.arena.Join(elseFrag.Exit, merge)
		elseEnter = elseFrag.Enter
	}

	enter := b.cond(s.Cond, thenFrag.Enter, elseEnter)
	return cfg.Fragment{Enter: enter, Exit: merge}
}

// forStmt lowers a pre-test counting loop:
//
//	v = init; bound = end
//	test: t = v < bound; if t goto body else exit
//	body: ...; v = v + 1; goto test
//	exit:
//
// init, end and the body are each lowered exactly once.
func (b *Builder) forStmt(s *ast.For) cfg.Fragment {
	v := ir.Var{Desc: s.Var.Desc}

	initFrag, init := b.value(s.Init, false)
	frag := b.arena.AppendStmt(initFrag, ir.Op{Opcode: ir.OpMove, Arg1: init, Result: v, Node: s})

	endFrag, bound := b.value(s.End, false)
	frag = b.arena.Link(frag, endFrag)
	if !ir.IsConst(bound) {
		t := b.temp(ir.TypeOf(bound), true)
		frag = b.arena.AppendStmt(frag, ir.Op{Opcode: ir.OpMove, Arg1: bound, Result: t, Node: s.End})
		bound = t
	}

	flag := b.temp(symtab.Bool, true)
	test := b.arena.NewNode(ir.Op{Opcode: ir.OpLt, Arg1: v, Arg2: bound, Result: flag, Node: s})
	b.arena.Join(frag.Exit, test)

	exit := b.arena.NewNode(ir.Dummy{Node: s})
	incr := b.arena.NewNode(ir.Op{Opcode: ir.OpAdd, Arg1: v, Arg2: ir.ConstInt{Value: 1}, Result: v, Node: s})
	b.arena.SetNext(incr, test)

	b.loops = append(b.loops, loopTargets{continueTo: incr, breakTo: exit})
	body := b.block(s.Body)
	b.loops = b.loops[:len(b.loops)-1]
	b.arena.Join(body.Exit, incr)

	b.arena.SetBranch(test, body.Enter)
	b.arena.SetNext(test, exit)
	return cfg.Fragment{Enter: frag.Enter, Exit: exit}
}

// jump lowers break/continue to a dummy already wired to its target, so
// whatever is linked after it stays unreachable.
func (b *Builder) jump(s ast.Stmt, target func(loopTargets) cfg.NodeID, what string) cfg.Fragment {
	n := b.arena.NewNode(ir.Dummy{Node: s})
	if len(b.loops) == 0 {
		b.errorf(s, "%s outside of a loop", what)
		return cfg.Fragment{Enter: n, Exit: n}
	}
	b.arena.SetNext(n, target(b.loops[len(b.loops)-1]))
	return cfg.Fragment{Enter: n, Exit: n}
}

// Package cfg holds the control-flow graph in two forms: an arena of
// single-statement nodes that the builder wires together, and the basic
// blocks that later passes consume.
package cfg

import (
	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// NodeID addresses a node in an Arena. Zero means "no node".
type NodeID int

// Arena stores single-statement nodes. Successor and predecessor relations
// live in side tables keyed by NodeID. Each node also records the scope that
// was current when it was allocated.
type Arena struct {
	stmts  []ir.Statement // index 0 unused
	scopes []*symtab.Scope
	scope  *symtab.Scope
	next   map[NodeID]NodeID
	branch map[NodeID]NodeID
	preds  map[NodeID][]NodeID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		stmts:  make([]ir.Statement, 1), // Node IDs start at 1
		scopes: make([]*symtab.Scope, 1),
		next:   make(map[NodeID]NodeID),
		branch: make(map[NodeID]NodeID),
		preds:  make(map[NodeID][]NodeID),
	}
}

// NewNode allocates a node holding s.
func (a *Arena) NewNode(s ir.Statement) NodeID {
	a.stmts = append(a.stmts, s)
	a.scopes = append(a.scopes, a.scope)
	return NodeID(len(a.stmts) - 1)
}

// SetScope sets the scope recorded for nodes allocated from now on.
func (a *Arena) SetScope(s *symtab.Scope) { a.scope = s }

// Scope returns the scope current when n was allocated, or nil.
func (a *Arena) Scope(n NodeID) *symtab.Scope { return a.scopes[n] }

func (a *Arena) Stmt(n NodeID) ir.Statement { return a.stmts[n] }

// SetNext makes succ the fallthrough successor of n.
func (a *Arena) SetNext(n, succ NodeID) {
	if old, ok := a.next[n]; ok {
		a.removePred(old, n)
	}
	a.next[n] = succ
	a.preds[succ] = append(a.preds[succ], n)
}

// SetBranch makes succ the taken-branch successor of n, turning n into a
// conditional branch.
func (a *Arena) SetBranch(n, succ NodeID) {
	if old, ok := a.branch[n]; ok {
		a.removePred(old, n)
	}
	a.branch[n] = succ
	a.preds[succ] = append(a.preds[succ], n)
}

func (a *Arena) removePred(n, pred NodeID) {
	ps := a.preds[n]
	for i, p := range ps {
		if p == pred {
			a.preds[n] = append(ps[:i:i], ps[i+1:]...)
			return
		}
	}
}

func (a *Arena) Next(n NodeID) (NodeID, bool) {
	s, ok := a.next[n]
	return s, ok
}

func (a *Arena) Branch(n NodeID) (NodeID, bool) {
	s, ok := a.branch[n]
	return s, ok
}

// IsBranch reports whether n is a conditional branch.
func (a *Arena) IsBranch(n NodeID) bool {
	_, ok := a.branch[n]
	return ok
}

// Preds returns the incoming edges of n. An edge appears once per
// successor slot, so a branch whose both targets are n counts twice.
func (a *Arena) Preds(n NodeID) []NodeID { return a.preds[n] }

// Result returns the operand n exposes to a parent expression, or nil.
func (a *Arena) Result(n NodeID) ir.Operand { return ir.ResultOf(a.stmts[n]) }

// terminated reports whether control never falls out of n into whatever is
// linked after it: it already has a successor, or it returns.
func (a *Arena) terminated(n NodeID) bool {
	if _, ok := a.next[n]; ok {
		return true
	}
	if _, ok := a.branch[n]; ok {
		return true
	}
	op, ok := a.stmts[n].(ir.Op)
	return ok && op.Opcode == ir.OpReturn
}

// Join sets succ as the fallthrough of n unless n is already terminated.
func (a *Arena) Join(n, succ NodeID) {
	if !a.terminated(n) {
		a.SetNext(n, succ)
	}
}

// Fragment is a partially built sub-graph entered at Enter and left at Exit.
type Fragment struct {
	Enter NodeID
	Exit  NodeID
}

// Single wraps a new node holding s as a one-node fragment.
func (a *Arena) Single(s ir.Statement) Fragment {
	n := a.NewNode(s)
	return Fragment{Enter: n, Exit: n}
}

// Append attaches n after f's exit.
func (a *Arena) Append(f Fragment, n NodeID) Fragment {
	a.Join(f.Exit, n)
	return Fragment{Enter: f.Enter, Exit: n}
}

// AppendStmt attaches a new node holding s after f's exit.
func (a *Arena) AppendStmt(f Fragment, s ir.Statement) Fragment {
	return a.Append(f, a.NewNode(s))
}

// Link sequences g after f.
func (a *Arena) Link(f, g Fragment) Fragment {
	a.Join(f.Exit, g.Enter)
	return Fragment{Enter: f.Enter, Exit: g.Exit}
}

// ResultOf returns the operand exposed by f's exit.
func (a *Arena) ResultOf(f Fragment) ir.Operand { return a.Result(f.Exit) }

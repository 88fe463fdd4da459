// Package dataflow is a monotone-framework solver over basic blocks, with
// two instantiations: available expressions and sign analysis.
//
// The solver knows nothing about statements. A Problem supplies a Lattice
// of facts plus a Step rule for a single statement; Solve folds Step over
// each block and iterates a worklist until no block's output changes.
package dataflow

import (
	"errors"
	"fmt"

	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/ir"
)

// Direction selects which way facts flow.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// ErrNoFixedPoint is returned when iteration exceeds the bound implied by
// the lattice height, which means a step or meet is not monotone.
var ErrNoFixedPoint = errors.New("data-flow analysis did not reach a fixed point")

// Problem describes one analysis over facts of type F.
type Problem[F any] interface {
	Lattice[F]
	Direction() Direction
	// Boundary is the fact flowing into the entry block (forward) or out of
	// exit blocks (backward).
	Boundary() F
	// Step computes the fact after s given the fact before it, in the
	// direction of flow.
	Step(s ir.Statement, in F) F
	// Height bounds how many times one block's fact can change.
	Height() int
}

// Result holds the fixed point. For a backward problem In is the fact at
// the bottom of a block and Out the fact at its top.
type Result[F any] struct {
	In         map[*cfg.Block]F
	Out        map[*cfg.Block]F
	Order      []*cfg.Block
	Iterations int
}

// transfer folds p.Step over the statements of b.
func transfer[F any](p Problem[F], b *cfg.Block, in F) F {
	fact := in
	if p.Direction() == Backward {
		for i := len(b.Stmts) - 1; i >= 0; i-- {
			fact = p.Step(b.Stmts[i], fact)
		}
		return fact
	}
	for _, s := range b.Stmts {
		fact = p.Step(s, fact)
	}
	return fact
}

// Solve runs p over the blocks reachable from entry.
//
// A block's input is the meet of the outputs already computed for the
// blocks feeding it. Inputs not yet computed are skipped, and a block none
// of whose inputs is computed starts from Bottom; it is queued again once
// one of them is.
func Solve[F any](entry *cfg.Block, p Problem[F]) (*Result[F], error) {
	order := cfg.ReversePostorder(entry)
	preds := cfg.Predecessors(entry)

	// flowIn lists the blocks whose output feeds b; flowOut the blocks b
	// feeds.
	flowIn := func(b *cfg.Block) []*cfg.Block { return preds[b] }
	flowOut := func(b *cfg.Block) []*cfg.Block { return b.Successors() }
	isBoundary := func(b *cfg.Block) bool { return b == entry }
	if p.Direction() == Backward {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
		flowIn, flowOut = flowOut, flowIn
		isBoundary = func(b *cfg.Block) bool { return len(b.Successors()) == 0 }
	}

	res := &Result[F]{
		In:    make(map[*cfg.Block]F, len(order)),
		Out:   make(map[*cfg.Block]F, len(order)),
		Order: order,
	}

	bound := len(order) * (2*p.Height() + 3)
	queue := append([]*cfg.Block(nil), order...)
	queued := make(map[*cfg.Block]bool, len(order))
	for _, b := range order {
		queued[b] = true
	}

	for len(queue) > 0 {
		res.Iterations++
		if res.Iterations > bound {
			return res, fmt.Errorf("%w after %d iterations over %d blocks", ErrNoFixedPoint, bound, len(order))
		}
		b := queue[0]
		queue = queue[1:]
		queued[b] = false

		var in F
		if isBoundary(b) {
			in = p.Boundary()
		} else {
			seen := false
			for _, s := range flowIn(b) {
				out, ok := res.Out[s]
				switch {
				case !ok:
				case !seen:
					in, seen = out, true
				default:
					in = p.Meet(in, out)
				}
			}
			if !seen {
				in = p.Bottom()
			}
		}
		res.In[b] = in

		out := transfer(p, b, in)
		if prev, ok := res.Out[b]; ok && p.Equal(out, prev) {
			continue
		}
		res.Out[b] = out
		for _, s := range flowOut(b) {
			if !queued[s] {
				queued[s] = true
				queue = append(queue, s)
			}
		}
	}
	return res, nil
}

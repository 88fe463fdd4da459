package cfg

import (
	"fmt"

	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// Block is a basic block: a straight-line statement list entered only at
// the top and left only at the bottom. A block with Branch set ends in a
// relational Op whose outcome selects Branch (true) or Next (false).
type Block struct {
	ID     string
	Stmts  []ir.Statement
	Next   *Block
	Branch *Block
	Scope  *symtab.Scope
}

// IsBranch reports whether the block ends in a conditional branch.
func (b *Block) IsBranch() bool { return b.Branch != nil }

// Last returns the final statement, or nil for an empty block.
func (b *Block) Last() ir.Statement {
	if len(b.Stmts) == 0 {
		return nil
	}
	return b.Stmts[len(b.Stmts)-1]
}

// Successors lists the branch target first, then the fallthrough.
func (b *Block) Successors() []*Block {
	var succs []*Block
	if b.Branch != nil {
		succs = append(succs, b.Branch)
	}
	if b.Next != nil {
		succs = append(succs, b.Next)
	}
	return succs
}

// Coalesce merges the nodes reachable from entry into basic blocks. A new
// block starts at the entry, at every branch target and fallthrough of a
// branch, and at every node with more than one incoming edge. Builder-only
// placeholder statements are dropped, and an edge into a run of nothing but
// placeholders is tunnelled through to the first real statement after it.
// The entry block is labelled entryID; the rest get labelPrefix plus a
// counter. Each block takes the scope of its first statement's node, or
// scope when that node recorded none.
func (a *Arena) Coalesce(entry NodeID, entryID, labelPrefix string, scope *symtab.Scope) *Block {
	c := &coalescer{
		arena:  a,
		blocks: make(map[NodeID]*Block),
		prefix: labelPrefix,
		scope:  scope,
	}
	return c.block(entry, entryID)
}

type coalescer struct {
	arena  *Arena
	blocks map[NodeID]*Block
	prefix string
	scope  *symtab.Scope
	count  int
}

func (c *coalescer) block(start NodeID, id string) *Block {
	if id == "" {
		start = c.tunnel(start)
	}
	if b, ok := c.blocks[start]; ok {
		return b
	}
	if id == "" {
		c.count++
		id = fmt.Sprintf("%s%d", c.prefix, c.count)
	}
	b := &Block{ID: id}
	c.blocks[start] = b
	c.fill(b, start)
	if b.Scope == nil {
		b.Scope = c.scopeOf(start)
	}
	return b
}

// fill appends the run of nodes starting at n to b and wires its
// successors.
func (c *coalescer) fill(b *Block, n NodeID) {
	for {
		if s := c.arena.Stmt(n); !ir.IsPlaceholder(s) {
			if len(b.Stmts) == 0 {
				b.Scope = c.scopeOf(n)
			}
			b.Stmts = append(b.Stmts, s)
		}
		if target, ok := c.arena.Branch(n); ok {
			b.Branch = c.block(target, "")
			if fall, ok := c.arena.Next(n); ok {
				b.Next = c.block(fall, "")
			}
			return
		}
		succ, ok := c.arena.Next(n)
		if !ok {
			return
		}
		if _, seen := c.blocks[succ]; seen || len(c.arena.Preds(succ)) > 1 {
			b.Next = c.block(succ, "")
			return
		}
		n = succ
	}
}

func (c *coalescer) scopeOf(n NodeID) *symtab.Scope {
	if s := c.arena.Scope(n); s != nil {
		return s
	}
	return c.scope
}

// tunnel skips placeholder-only nodes that simply fall through.
func (c *coalescer) tunnel(n NodeID) NodeID {
	seen := make(map[NodeID]bool)
	for !seen[n] && ir.IsPlaceholder(c.arena.Stmt(n)) && !c.arena.IsBranch(n) {
		seen[n] = true
		next, ok := c.arena.Next(n)
		if !ok {
			return n
		}
		n = next
	}
	return n
}

// Walk returns the blocks reachable from entry in breadth-first order,
// branch target before fallthrough, each exactly once.
func Walk(entry *Block) []*Block {
	var order []*Block
	visited := map[*Block]bool{entry: true}
	queue := []*Block{entry}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		order = append(order, b)
		for _, s := range b.Successors() {
			if !visited[s] {
				visited[s] = true
				queue = append(queue, s)
			}
		}
	}
	return order
}

// ReversePostorder returns the blocks reachable from entry in reverse
// postorder of a depth-first walk.
func ReversePostorder(entry *Block) []*Block {
	visited := make(map[*Block]bool)
	var postorder []*Block

	var dfs func(b *Block)
	dfs = func(b *Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		// Visit successors first
		for _, s := range b.Successors() {
			dfs(s)
		}
		postorder = append(postorder, b)
	}
	dfs(entry)

	order := make([]*Block, len(postorder))
	for i, b := range postorder {
		order[len(postorder)-1-i] = b
	}
	return order
}

// Predecessors maps every block reachable from entry to its predecessors.
func Predecessors(entry *Block) map[*Block][]*Block {
	preds := make(map[*Block][]*Block)
	for _, b := range Walk(entry) {
		if _, ok := preds[b]; !ok {
			preds[b] = nil
		}
		for _, s := range b.Successors() {
			preds[s] = append(preds[s], b)
		}
	}
	return preds
}

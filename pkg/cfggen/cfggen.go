// Package cfggen lowers the typed syntax tree into the control-flow graph.
// Each tree node becomes a cfg.Fragment; expression values are threaded
// through fragment exits, conditions are compiled against explicit
// true/false targets, and each method is finally coalesced into basic
// blocks.
package cfggen

import (
	"github.com/raymyers/ralph-decaf/pkg/ast"
	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/diag"
	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// Builder holds the state of one lowering run.
type Builder struct {
	reporter *diag.Reporter
	graph    *cfg.Graph
	arena    *cfg.Arena
	scope    *symtab.Scope
	loops    []loopTargets
	strings  map[string]*symtab.Descriptor // label -> descriptor
}

// loopTargets are the nodes break and continue jump to.
type loopTargets struct {
	continueTo cfg.NodeID
	breakTo    cfg.NodeID
}

// New creates a builder reporting into r.
func New(r *diag.Reporter) *Builder {
	return &Builder{
		reporter: r,
		strings:  make(map[string]*symtab.Descriptor),
	}
}

// Build lowers prog with a fresh builder.
func Build(prog *ast.Program, r *diag.Reporter) *cfg.Graph {
	return New(r).Build(prog)
}

// Build lowers every field and method of prog into a new graph.
func (b *Builder) Build(prog *ast.Program) *cfg.Graph {
	b.graph = cfg.NewGraph()
	for _, f := range prog.Fields {
		b.graph.AddGlobal(f.Desc)
	}
	for _, m := range prog.Methods {
		b.graph.AddMethod(b.BuildMethod(m))
	}
	return b.graph
}

// BuildMethod lowers one method body, prefixes it with the ENTER marker
// and coalesces the result into basic blocks.
func (b *Builder) BuildMethod(md *ast.MethodDecl) *cfg.Method {
	b.Graph()
	b.arena = cfg.NewArena()
	b.setScope(md.Method.Scope)
	b.loops = nil

	body := b.block(md.Body)
	// ENTER is created last so it sees every temporary the body allocated.
	frame := md.Method.Scope.Frame().Size()
	enter := b.arena.Single(ir.Op{Opcode: ir.OpEnter, Arg1: ir.ConstInt{Value: frame}, Node: md})
	frag := b.arena.Link(enter, body)

	name := md.Method.Name
	entry := b.arena.Coalesce(frag.Enter, name, ".L"+name+"_", md.Method.Scope)
	return &cfg.Method{Name: name, Desc: md.Method, Entry: entry}
}

// Graph returns the graph string literals are interned into, creating it on
// first use.
func (b *Builder) Graph() *cfg.Graph {
	if b.graph == nil {
		b.graph = cfg.NewGraph()
	}
	return b.graph
}

// setScope makes s the scope for temporaries and for nodes allocated from
// now on.
func (b *Builder) setScope(s *symtab.Scope) {
	b.scope = s
	b.arena.SetScope(s)
}

func (b *Builder) errorf(n ast.Node, format string, args ...any) {
	var pos diag.Pos
	if n != nil {
		pos = n.Position()
	}
	b.reporter.Errorf(pos, diag.Build, format, args...)
}

func (b *Builder) temp(typ symtab.Type, immutable bool) ir.Var {
	return ir.Var{Desc: b.scope.AllocTemp(typ, immutable)}
}

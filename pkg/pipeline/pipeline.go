// Package pipeline drives one compilation: build the CFG, analyze it,
// optimize it and emit assembly. Each pass runs over every method before the
// next pass starts. A method whose pass fails is reported and dropped from
// the remaining passes; the other methods continue.
package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/raymyers/ralph-decaf/pkg/asm"
	"github.com/raymyers/ralph-decaf/pkg/asmgen"
	"github.com/raymyers/ralph-decaf/pkg/ast"
	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/cfggen"
	"github.com/raymyers/ralph-decaf/pkg/cse"
	"github.com/raymyers/ralph-decaf/pkg/dataflow"
	"github.com/raymyers/ralph-decaf/pkg/diag"
)

// Options selects optional passes and debug output.
type Options struct {
	// Optimize enables common subexpression elimination.
	Optimize bool

	DumpCFG       bool // blocks as built
	DumpCSE       bool // blocks after optimization
	DumpAvailable bool // available-expression sets
	DumpSigns     bool // sign environments

	// Dump receives debug dumps. Nil discards them.
	Dump io.Writer
	// Trace, when set, receives one line per pass and method.
	Trace io.Writer
}

// Result is everything a run produced. Program is nil only when no method
// survived.
type Result struct {
	Graph     *cfg.Graph
	Program   *asm.Program
	Available map[string]*dataflow.Result[dataflow.ExprSet]
	Signs     map[string]*dataflow.Result[dataflow.SignEnv]
	Stats     cse.Stats
	// Failed lists methods abandoned after an internal error, in order.
	Failed []string
}

// run carries the state of one pipeline invocation
type run struct {
	opts     Options
	reporter *diag.Reporter
	result   *Result
	decls    map[string]*ast.MethodDecl
}

// Run compiles prog, reporting every problem into r.
func Run(prog *ast.Program, opts Options, r *diag.Reporter) *Result {
	if opts.Dump == nil {
		opts.Dump = io.Discard
	}
	p := &run{
		opts:     opts,
		reporter: r,
		result: &Result{
			Available: make(map[string]*dataflow.Result[dataflow.ExprSet]),
			Signs:     make(map[string]*dataflow.Result[dataflow.SignEnv]),
		},
		decls: make(map[string]*ast.MethodDecl),
	}

	methods := p.build(prog)
	methods = p.analyze(methods)
	if opts.Optimize {
		methods = p.optimize(methods)
	}
	p.emit(prog, methods)
	return p.result
}

func (p *run) build(prog *ast.Program) []*cfg.Method {
	b := cfggen.New(p.reporter)
	g := b.Graph()
	p.result.Graph = g
	for _, f := range prog.Fields {
		g.AddGlobal(f.Desc)
	}

	var methods []*cfg.Method
	for _, md := range prog.Methods {
		name := md.Method.Name
		p.decls[name] = md
		p.guard(name, "cfg", func() error {
			m := b.BuildMethod(md)
			g.AddMethod(m)
			methods = append(methods, m)
			return nil
		})
	}

	if p.opts.DumpCFG {
		printer := cfg.NewPrinter(p.opts.Dump)
		for _, m := range methods {
			printer.PrintMethod(m)
		}
	}
	return methods
}

func (p *run) analyze(methods []*cfg.Method) []*cfg.Method {
	return p.each(methods, "analysis", func(m *cfg.Method) error {
		avail, err := dataflow.AnalyzeAvailable(m.Entry)
		if err != nil {
			return fmt.Errorf("available expressions: %w", err)
		}
		signs, err := dataflow.AnalyzeSigns(m.Entry)
		if err != nil {
			return fmt.Errorf("sign analysis: %w", err)
		}
		p.result.Available[m.Name] = avail
		p.result.Signs[m.Name] = signs

		if p.opts.DumpAvailable {
			dataflow.PrintAvailable(p.opts.Dump, m.Name, avail)
		}
		if p.opts.DumpSigns {
			dataflow.PrintSigns(p.opts.Dump, m.Name, signs)
		}
		return nil
	})
}

func (p *run) optimize(methods []*cfg.Method) []*cfg.Method {
	opt := cse.New(p.reporter)
	methods = p.each(methods, "cse", func(m *cfg.Method) error {
		st := opt.OptimizeMethod(m)
		p.result.Stats.Rewritten += st.Rewritten
		p.result.Stats.Dropped += st.Dropped
		p.result.Stats.Temps += st.Temps
		return nil
	})

	if p.opts.DumpCSE {
		printer := cfg.NewPrinter(p.opts.Dump)
		for _, m := range methods {
			printer.PrintMethod(m)
		}
	}
	return methods
}

func (p *run) emit(prog *ast.Program, methods []*cfg.Method) {
	e := asmgen.New(p.result.Graph, p.reporter, asmgen.Options{
		Source: diag.NewSource(prog.File, prog.Source),
	})

	var fns []asm.Function
	p.each(methods, "emit", func(m *cfg.Method) error {
		fns = append(fns, e.EmitMethod(m))
		return nil
	})
	if len(fns) == 0 && len(prog.Methods) > 0 {
		return
	}
	p.result.Program = e.Assemble(fns)
}

// each runs pass over every method and returns the ones that completed.
func (p *run) each(methods []*cfg.Method, pass string, fn func(*cfg.Method) error) []*cfg.Method {
	var ok []*cfg.Method
	for _, m := range methods {
		if p.guard(m.Name, pass, func() error { return fn(m) }) {
			ok = append(ok, m)
		}
	}
	return ok
}

var passPhases = map[string]diag.Phase{
	"cfg":      diag.Build,
	"analysis": diag.Analysis,
	"cse":      diag.Optimize,
	"emit":     diag.Emit,
}

// guard runs one pass over one method and reports whether it completed. A
// panic, or an analysis that never reaches a fixed point, is an internal
// error; any other error is charged to the pass.
func (p *run) guard(method, pass string, fn func() error) (completed bool) {
	if p.opts.Trace != nil {
		fmt.Fprintf(p.opts.Trace, "ralph-decaf: pass %s: %s\n", pass, method)
	}
	defer func() {
		if v := recover(); v != nil {
			completed = false
			p.fail(method, diag.Internal, fmt.Sprintf("internal compiler error in %s during %s: %v", method, pass, v))
		}
	}()

	err := fn()
	switch {
	case err == nil:
		return true
	case errors.Is(err, dataflow.ErrNoFixedPoint):
		p.fail(method, diag.Internal, fmt.Sprintf("internal compiler error in %s during %s: %v", method, pass, err))
	default:
		p.fail(method, passPhases[pass], fmt.Sprintf("%s failed in %s: %v", pass, method, err))
	}
	return false
}

// fail reports msg at the declaration of method and drops the method.
func (p *run) fail(method string, phase diag.Phase, msg string) {
	var pos diag.Pos
	if md, ok := p.decls[method]; ok {
		pos = md.Position()
	}
	p.reporter.Report(pos, phase, msg)
	p.result.Failed = append(p.result.Failed, method)
}

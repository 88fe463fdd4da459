// Package loader decodes a typed Decaf program from YAML. The document
// carries the program after parsing and semantic checking: every name is
// declared, every type is known, and locals may already be assigned to
// registers.
//
// Statements and expressions are one-key mappings naming their kind, e.g.
//
//	stmts:
//	  - assign: {loc: {var: x}, value: {op: {op: "+", left: {var: x}, right: {int: 1}}}}
//	    line: 4
//	    col: 5
//
// Any mapping may also carry line and col keys.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-decaf/pkg/ast"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// ErrUndefined is wrapped by errors for names with no declaration in scope.
var ErrUndefined = errors.New("undefined name")

// document is the top level of an input file
type document struct {
	File    string      `yaml:"file"`
	Source  string      `yaml:"source"`
	Fields  []fieldDoc  `yaml:"fields"`
	Methods []methodDoc `yaml:"methods"`
}

type fieldDoc struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Length int64  `yaml:"length,omitempty"`
	Line   int    `yaml:"line,omitempty"`
	Col    int    `yaml:"col,omitempty"`
}

type paramDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type methodDoc struct {
	Name   string     `yaml:"name"`
	Type   string     `yaml:"type"`
	Params []paramDoc `yaml:"params,omitempty"`
	Body   blockDoc   `yaml:"body"`
	Line   int        `yaml:"line,omitempty"`
	Col    int        `yaml:"col,omitempty"`
}

type blockDoc struct {
	Locals []localDoc  `yaml:"locals,omitempty"`
	Stmts  []yaml.Node `yaml:"stmts,omitempty"`
	Line   int         `yaml:"line,omitempty"`
	Col    int         `yaml:"col,omitempty"`
}

type localDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Register string `yaml:"register,omitempty"`
}

type assignDoc struct {
	Loc   yaml.Node `yaml:"loc"`
	Value yaml.Node `yaml:"value"`
}

type ifDoc struct {
	Cond yaml.Node `yaml:"cond"`
	Then blockDoc  `yaml:"then"`
	Else *blockDoc `yaml:"else,omitempty"`
}

type forDoc struct {
	Var  string    `yaml:"var"`
	Init yaml.Node `yaml:"init"`
	End  yaml.Node `yaml:"end"`
	Body blockDoc  `yaml:"body"`
}

type returnDoc struct {
	Value yaml.Node `yaml:"value,omitempty"`
}

type callDoc struct {
	Name string      `yaml:"name"`
	Args []yaml.Node `yaml:"args,omitempty"`
}

type indexDoc struct {
	Name  string    `yaml:"name"`
	Index yaml.Node `yaml:"index"`
}

type opDoc struct {
	Op    string    `yaml:"op"`
	Left  yaml.Node `yaml:"left"`
	Right yaml.Node `yaml:"right"`
}

var typeNames = map[string]symtab.Type{
	"void":      symtab.Void,
	"int":       symtab.Int,
	"boolean":   symtab.Bool,
	"int[]":     symtab.IntArray,
	"boolean[]": symtab.BoolArray,
}

var binaryOps = map[string]ast.BinaryOp{
	"+":  ast.OpAdd,
	"-":  ast.OpSub,
	"*":  ast.OpMul,
	"/":  ast.OpDiv,
	"%":  ast.OpMod,
	"<":  ast.OpLt,
	"<=": ast.OpLe,
	">":  ast.OpGt,
	">=": ast.OpGe,
	"==": ast.OpEq,
	"!=": ast.OpNe,
	"&&": ast.OpAnd,
	"||": ast.OpOr,
}

// Locals may only be placed in callee-saved registers.
var allocatable = map[string]bool{"rbx": true, "r12": true, "r13": true, "r14": true, "r15": true}

// LoadFile reads and decodes the program at path.
func LoadFile(path string) (*ast.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	prog, err := Load(f)
	if err != nil {
		return nil, err
	}
	if prog.File == "" {
		prog.File = path
	}
	return prog, nil
}

// Load decodes a program document from r.
func Load(r io.Reader) (*ast.Program, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty program document")
		}
		return nil, fmt.Errorf("decoding program: %w", err)
	}

	l := &loader{file: doc.File}
	return l.program(&doc)
}

// loader holds the scope chain while a document is converted
type loader struct {
	file  string
	class *symtab.Scope
	scope *symtab.Scope
}

// at returns the source span of a node. Nodes without line/col keys get
// no position.
func (l *loader) at(line, col int) ast.Span {
	if line <= 0 {
		return ast.Span{}
	}
	return ast.At(l.file, line, col)
}

// errorf reports a problem at a document node's own YAML line.
func (l *loader) errorf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %w", n.Line, fmt.Errorf(format, args...))
}

func (l *loader) program(doc *document) (*ast.Program, error) {
	l.class = symtab.NewClassScope()
	prog := &ast.Program{
		File:   doc.File,
		Source: doc.Source,
		Scope:  l.class,
	}

	for _, fd := range doc.Fields {
		typ, err := l.typ(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		if typ == symtab.Void {
			return nil, fmt.Errorf("field %s cannot be void", fd.Name)
		}
		if typ.IsArray() && fd.Length <= 0 {
			return nil, fmt.Errorf("array %s needs a positive length", fd.Name)
		}
		d := l.class.DeclareField(fd.Name, typ, fd.Length)
		prog.Fields = append(prog.Fields, &ast.FieldDecl{Span: l.at(fd.Line, fd.Col), Desc: d})
	}

	// Declare every method first so calls may refer forward.
	for _, md := range doc.Methods {
		ret, err := l.typ(md.Type)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", md.Name, err)
		}
		m := l.class.DeclareMethod(md.Name, ret)
		for _, p := range md.Params {
			typ, err := l.typ(p.Type)
			if err != nil {
				return nil, fmt.Errorf("method %s: parameter %s: %w", md.Name, p.Name, err)
			}
			m.DeclareParam(p.Name, typ)
		}
	}

	for i := range doc.Methods {
		md := &doc.Methods[i]
		m, _ := l.class.LookupMethod(md.Name)
		l.scope = m.Scope
		body, err := l.block(&md.Body, false)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", md.Name, err)
		}
		prog.Methods = append(prog.Methods, &ast.MethodDecl{Span: l.at(md.Line, md.Col), Method: m, Body: body})
	}
	return prog, nil
}

func (l *loader) typ(name string) (symtab.Type, error) {
	t, ok := typeNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown type %q", name)
	}
	return t, nil
}

// block converts a statement list. Nested blocks open a new scope; a
// method body shares the method scope with the parameters.
func (l *loader) block(bd *blockDoc, nested bool) (*ast.Block, error) {
	saved := l.scope
	if nested {
		l.scope = l.scope.NewBlockScope()
	}
	defer func() { l.scope = saved }()

	blk := &ast.Block{Span: l.at(bd.Line, bd.Col), Scope: l.scope}
	for _, ld := range bd.Locals {
		typ, err := l.typ(ld.Type)
		if err != nil {
			return nil, fmt.Errorf("local %s: %w", ld.Name, err)
		}
		if ld.Register == "" {
			l.scope.DeclareLocal(ld.Name, typ)
			continue
		}
		if !allocatable[ld.Register] {
			return nil, fmt.Errorf("local %s cannot live in %%%s", ld.Name, ld.Register)
		}
		l.scope.DeclareRegisterLocal(ld.Name, typ, ld.Register)
	}

	for i := range bd.Stmts {
		s, err := l.stmt(&bd.Stmts[i])
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, s)
	}
	return blk, nil
}

// tagged splits a one-key mapping into its kind and payload. Scalars such
// as "break" are kinds without a payload.
func (l *loader) tagged(n *yaml.Node) (string, *yaml.Node, ast.Span, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil, ast.Span{}, nil
	case yaml.MappingNode:
	default:
		return "", nil, ast.Span{}, l.errorf(n, "expected a mapping")
	}

	var (
		kind      string
		payload   *yaml.Node
		line, col int
	)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "line":
			if err := val.Decode(&line); err != nil {
				return "", nil, ast.Span{}, l.errorf(n, "bad line: %v", err)
			}
		case "col":
			if err := val.Decode(&col); err != nil {
				return "", nil, ast.Span{}, l.errorf(n, "bad col: %v", err)
			}
		default:
			if kind != "" {
				return "", nil, ast.Span{}, l.errorf(n, "both %s and %s in one node", kind, key.Value)
			}
			kind, payload = key.Value, val
		}
	}
	if kind == "" {
		return "", nil, ast.Span{}, l.errorf(n, "node has no kind")
	}
	return kind, payload, l.at(line, col), nil
}

// decode unpacks the payload of the tagged node n.
func (l *loader) decode(n, payload *yaml.Node, kind string, v any) error {
	if payload == nil {
		return l.errorf(n, "%s needs a value", kind)
	}
	if err := payload.Decode(v); err != nil {
		return l.errorf(n, "%s: %v", kind, err)
	}
	return nil
}

func (l *loader) stmt(n *yaml.Node) (ast.Stmt, error) {
	kind, payload, pos, err := l.tagged(n)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "assign":
		var d assignDoc
		if err := l.decode(n, payload, kind, &d); err != nil {
			return nil, err
		}
		dest, err := l.expr(&d.Loc)
		if err != nil {
			return nil, err
		}
		loc, ok := dest.(ast.Location)
		if !ok {
			return nil, l.errorf(n, "cannot assign to %T", dest)
		}
		value, err := l.expr(&d.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Span: pos, Dest: loc, Value: value}, nil

	case "if":
		var d ifDoc
		if err := l.decode(n, payload, kind, &d); err != nil {
			return nil, err
		}
		cond, err := l.expr(&d.Cond)
		if err != nil {
			return nil, err
		}
		then, err := l.block(&d.Then, true)
		if err != nil {
			return nil, err
		}
		s := &ast.If{Span: pos, Cond: cond, Then: then}
		if d.Else != nil {
			if s.Else, err = l.block(d.Else, true); err != nil {
				return nil, err
			}
		}
		return s, nil

	case "for":
		var d forDoc
		if err := l.decode(n, payload, kind, &d); err != nil {
			return nil, err
		}
		desc, err := l.lookup(n, d.Var)
		if err != nil {
			return nil, err
		}
		init, err := l.expr(&d.Init)
		if err != nil {
			return nil, err
		}
		end, err := l.expr(&d.End)
		if err != nil {
			return nil, err
		}
		body, err := l.block(&d.Body, true)
		if err != nil {
			return nil, err
		}
		return &ast.For{Span: pos, Var: &ast.ScalarLoc{Span: pos, Desc: desc}, Init: init, End: end, Body: body}, nil

	case "return":
		s := &ast.Return{Span: pos}
		if payload == nil || payload.Tag == "!!null" {
			return s, nil
		}
		var d returnDoc
		if err := l.decode(n, payload, kind, &d); err != nil {
			return nil, err
		}
		if d.Value.Kind != 0 {
			if s.Value, err = l.expr(&d.Value); err != nil {
				return nil, err
			}
		}
		return s, nil

	case "break":
		return &ast.Break{Span: pos}, nil
	case "continue":
		return &ast.Continue{Span: pos}, nil

	case "call", "callout":
		call, err := l.call(n, kind, payload, pos)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Span: pos, Call: call}, nil

	case "block":
		var d blockDoc
		if err := l.decode(n, payload, kind, &d); err != nil {
			return nil, err
		}
		if d.Line == 0 {
			d.Line, d.Col = pos.Pos.Line, pos.Pos.Col
		}
		return l.block(&d, true)
	}
	return nil, l.errorf(n, "unknown statement %q", kind)
}

func (l *loader) expr(n *yaml.Node) (ast.Expr, error) {
	kind, payload, pos, err := l.tagged(n)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "int":
		var v int64
		if err := l.decode(n, payload, kind, &v); err != nil {
			return nil, err
		}
		return &ast.IntLit{Span: pos, Value: v}, nil

	case "bool":
		var v bool
		if err := l.decode(n, payload, kind, &v); err != nil {
			return nil, err
		}
		return &ast.BoolLit{Span: pos, Value: v}, nil

	case "string":
		var v string
		if err := l.decode(n, payload, kind, &v); err != nil {
			return nil, err
		}
		return &ast.StringLit{Span: pos, Value: v}, nil

	case "var":
		var name string
		if err := l.decode(n, payload, kind, &name); err != nil {
			return nil, err
		}
		desc, err := l.lookup(n, name)
		if err != nil {
			return nil, err
		}
		return &ast.ScalarLoc{Span: pos, Desc: desc}, nil

	case "index":
		var d indexDoc
		if err := l.decode(n, payload, kind, &d); err != nil {
			return nil, err
		}
		desc, err := l.lookup(n, d.Name)
		if err != nil {
			return nil, err
		}
		if !desc.Type.IsArray() {
			return nil, l.errorf(n, "%s is not an array", d.Name)
		}
		index, err := l.expr(&d.Index)
		if err != nil {
			return nil, err
		}
		return &ast.ArrayLoc{Span: pos, Desc: desc, Index: index}, nil

	case "op":
		var d opDoc
		if err := l.decode(n, payload, kind, &d); err != nil {
			return nil, err
		}
		bop, ok := binaryOps[d.Op]
		if !ok {
			return nil, l.errorf(n, "unknown operator %q", d.Op)
		}
		left, err := l.expr(&d.Left)
		if err != nil {
			return nil, err
		}
		right, err := l.expr(&d.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Span: pos, Op: bop, Left: left, Right: right}, nil

	case "not", "neg":
		if payload == nil {
			return nil, l.errorf(n, "%s needs an operand", kind)
		}
		x, err := l.expr(payload)
		if err != nil {
			return nil, err
		}
		if kind == "not" {
			return &ast.Not{Span: pos, X: x}, nil
		}
		return &ast.Neg{Span: pos, X: x}, nil

	case "call", "callout":
		return l.call(n, kind, payload, pos)
	}
	return nil, l.errorf(n, "unknown expression %q", kind)
}

func (l *loader) call(n *yaml.Node, kind string, payload *yaml.Node, pos ast.Span) (ast.Expr, error) {
	var d callDoc
	if err := l.decode(n, payload, kind, &d); err != nil {
		return nil, err
	}
	args := make([]ast.Expr, len(d.Args))
	for i := range d.Args {
		a, err := l.expr(&d.Args[i])
		if err != nil {
			return nil, err
		}
		args[i] = a
	}

	if kind == "callout" {
		return &ast.Callout{Span: pos, Name: d.Name, Args: args}, nil
	}
	m, ok := l.class.LookupMethod(d.Name)
	if !ok {
		return nil, l.errorf(n, "method %s: %w", d.Name, ErrUndefined)
	}
	if len(args) != len(m.Params) {
		return nil, l.errorf(n, "method %s takes %d arguments, got %d", d.Name, len(m.Params), len(args))
	}
	return &ast.MethodCall{Span: pos, Method: m, Args: args}, nil
}

func (l *loader) lookup(n *yaml.Node, name string) (*symtab.Descriptor, error) {
	d, ok := l.scope.Lookup(name)
	if !ok {
		return nil, l.errorf(n, "variable %s: %w", name, ErrUndefined)
	}
	return d, nil
}

package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raymyers/ralph-decaf/pkg/ast"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

const sumProgram = `
file: sum.decaf
source: |
  class Program {
    int total;
    int a[10];
    int add(int x, int y) {
      return x + y;
    }
    void main() {
      int i;
      for (i = 0, 10) {
        a[i] = add(i, total);
      }
      callout("printf", "%d\n", a[9]);
    }
  }
fields:
  - {name: total, type: int, line: 2, col: 3}
  - {name: a, type: "int[]", length: 10, line: 3, col: 3}
methods:
  - name: add
    type: int
    params:
      - {name: x, type: int}
      - {name: y, type: int}
    line: 4
    col: 3
    body:
      stmts:
        - return: {value: {op: {op: "+", left: {var: x}, right: {var: y}}}}
          line: 5
          col: 5
  - name: main
    type: void
    body:
      locals:
        - {name: i, type: int, register: rbx}
      stmts:
        - for:
            var: i
            init: {int: 0}
            end: {int: 10}
            body:
              stmts:
                - assign:
                    loc: {index: {name: a, index: {var: i}}}
                    value: {call: {name: add, args: [{var: i}, {var: total}]}}
                  line: 10
                  col: 7
        - callout:
            name: printf
            args:
              - {string: "%d\n"}
              - {index: {name: a, index: {int: 9}}}
`

func TestLoadProgram(t *testing.T) {
	prog, err := Load(strings.NewReader(sumProgram))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if prog.File != "sum.decaf" {
		t.Errorf("File = %q, want sum.decaf", prog.File)
	}
	if !strings.HasPrefix(prog.Source, "class Program {\n") {
		t.Errorf("Source = %q", prog.Source)
	}
	if len(prog.Fields) != 2 || len(prog.Methods) != 2 {
		t.Fatalf("got %d fields and %d methods, want 2 and 2", len(prog.Fields), len(prog.Methods))
	}

	a := prog.Fields[1].Desc
	if a.Type != symtab.IntArray || a.Length != 10 || a.Loc.Kind != symtab.Global {
		t.Errorf("array a = %+v", a)
	}
	if got := prog.Fields[0].Position().String(); got != "sum.decaf:2:3" {
		t.Errorf("field position = %q, want sum.decaf:2:3", got)
	}

	add := prog.Methods[0]
	if add.Method.Return != symtab.Int || len(add.Method.Params) != 2 {
		t.Errorf("add = %+v", add.Method)
	}
	ret, ok := add.Body.Stmts[0].(*ast.Return)
	if !ok {
		t.Fatalf("got %T, want *ast.Return", add.Body.Stmts[0])
	}
	if bin, ok := ret.Value.(*ast.Binary); !ok || bin.Op != ast.OpAdd {
		t.Errorf("return value = %#v, want x + y", ret.Value)
	}
	if got := ret.Position().String(); got != "sum.decaf:5:5" {
		t.Errorf("return position = %q, want sum.decaf:5:5", got)
	}

	main := prog.Methods[1]
	i, ok := main.Method.Scope.Lookup("i")
	if !ok || i.Loc.Kind != symtab.Register || i.Loc.Reg != "rbx" {
		t.Errorf("i = %+v, want a local in rbx", i)
	}
	loop, ok := main.Body.Stmts[0].(*ast.For)
	if !ok {
		t.Fatalf("got %T, want *ast.For", main.Body.Stmts[0])
	}
	assign := loop.Body.Stmts[0].(*ast.Assign)
	if _, ok := assign.Dest.(*ast.ArrayLoc); !ok {
		t.Errorf("dest = %T, want *ast.ArrayLoc", assign.Dest)
	}
	call, ok := assign.Value.(*ast.MethodCall)
	if !ok || call.Method != add.Method || len(call.Args) != 2 {
		t.Errorf("value = %#v, want a call to add", assign.Value)
	}

	out, ok := main.Body.Stmts[1].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("got %T, want *ast.ExprStmt", main.Body.Stmts[1])
	}
	callout := out.Call.(*ast.Callout)
	if s, ok := callout.Args[0].(*ast.StringLit); callout.Name != "printf" || !ok || s.Value != "%d\n" {
		t.Errorf("callout = %#v", callout)
	}
	if out.Position().IsValid() {
		t.Errorf("statement without line/col should have no position, got %v", out.Position())
	}
}

func TestLoadStatements(t *testing.T) {
	src := `
methods:
  - name: main
    type: void
    body:
      locals:
        - {name: b, type: boolean}
      stmts:
        - if:
            cond: {op: {op: "&&", left: {var: b}, right: {not: {bool: false}}}}
            then:
              stmts:
                - break
            else:
              locals:
                - {name: b, type: int}
              stmts:
                - assign: {loc: {var: b}, value: {neg: {int: 3}}}
                - continue
        - block:
            stmts:
              - return
        - return:
`
	prog, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	stmts := prog.Methods[0].Body.Stmts
	if len(stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(stmts))
	}

	ifs := stmts[0].(*ast.If)
	if _, ok := ifs.Then.Stmts[0].(*ast.Break); !ok {
		t.Errorf("then = %T, want *ast.Break", ifs.Then.Stmts[0])
	}
	if _, ok := ifs.Else.Stmts[1].(*ast.Continue); !ok {
		t.Errorf("else[1] = %T, want *ast.Continue", ifs.Else.Stmts[1])
	}

	// The else block's b shadows the method's boolean b.
	assign := ifs.Else.Stmts[0].(*ast.Assign)
	if d := assign.Dest.(*ast.ScalarLoc).Desc; d.Type != symtab.Int {
		t.Errorf("shadowed b has type %v, want int", d.Type)
	}
	if ifs.Else.Scope == prog.Methods[0].Method.Scope {
		t.Error("nested block should open its own scope")
	}

	if blk, ok := stmts[1].(*ast.Block); !ok || len(blk.Stmts) != 1 {
		t.Errorf("got %#v, want a nested block holding a return", stmts[1])
	}
	if r := stmts[2].(*ast.Return); r.Value != nil {
		t.Errorf("bare return has value %#v", r.Value)
	}
}

func TestLoadForwardCall(t *testing.T) {
	src := `
methods:
  - name: main
    type: void
    body:
      stmts:
        - call: {name: helper, args: [{int: 1}]}
  - name: helper
    type: void
    params: [{name: n, type: int}]
    body: {}
`
	prog, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	call := prog.Methods[0].Body.Stmts[0].(*ast.ExprStmt).Call.(*ast.MethodCall)
	if call.Method != prog.Methods[1].Method {
		t.Error("call should resolve to the later declaration")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		want      string
		undefined bool
	}{
		{
			name:      "undefined variable",
			src:       "methods: [{name: main, type: void, body: {stmts: [{assign: {loc: {var: x}, value: {int: 1}}}]}}]",
			want:      "variable x",
			undefined: true,
		},
		{
			name:      "undefined method",
			src:       "methods: [{name: main, type: void, body: {stmts: [{call: {name: nope}}]}}]",
			want:      "method nope",
			undefined: true,
		},
		{
			name: "unknown type",
			src:  "fields: [{name: f, type: float}]",
			want: `unknown type "float"`,
		},
		{
			name: "array without length",
			src:  "fields: [{name: a, type: \"int[]\"}]",
			want: "positive length",
		},
		{
			name: "unknown statement",
			src:  "methods: [{name: main, type: void, body: {stmts: [{loop: {}}]}}]",
			want: `unknown statement "loop"`,
		},
		{
			name: "unknown operator",
			src:  "methods: [{name: main, type: int, body: {stmts: [{return: {value: {op: {op: \"^\", left: {int: 1}, right: {int: 2}}}}}]}}]",
			want: `unknown operator "^"`,
		},
		{
			name: "two kinds",
			src:  "methods: [{name: main, type: int, body: {stmts: [{return: {value: {int: 1, bool: true}}}]}}]",
			want: "both int and bool",
		},
		{
			name: "wrong argument count",
			src:  "methods: [{name: main, type: void, body: {stmts: [{call: {name: main, args: [{int: 1}]}}]}}]",
			want: "takes 0 arguments, got 1",
		},
		{
			name: "caller-saved register",
			src:  "methods: [{name: main, type: void, body: {locals: [{name: x, type: int, register: rdi}]}}]",
			want: "cannot live in %rdi",
		},
		{
			name: "index into scalar",
			src:  "fields: [{name: n, type: int}]\nmethods: [{name: main, type: int, body: {stmts: [{return: {value: {index: {name: n, index: {int: 0}}}}}]}}]",
			want: "n is not an array",
		},
		{
			name: "malformed yaml",
			src:  "methods: [",
			want: "decoding program",
		},
		{
			name: "empty document",
			src:  "",
			want: "empty program document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %q, want it to contain %q", err, tt.want)
			}
			if got := errors.Is(err, ErrUndefined); got != tt.undefined {
				t.Errorf("errors.Is(err, ErrUndefined) = %v, want %v", got, tt.undefined)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.yaml")
	src := "methods: [{name: main, type: void, body: {}}]\n"
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	prog, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if prog.File != path {
		t.Errorf("File = %q, want the path %q", prog.File, path)
	}
	if len(prog.Methods) != 1 || prog.Methods[0].Method.Name != "main" {
		t.Errorf("methods = %+v", prog.Methods)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

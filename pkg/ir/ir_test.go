package ir

import (
	"testing"

	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

func TestFormat(t *testing.T) {
	class := symtab.NewClassScope()
	arr := class.DeclareField("a", symtab.IntArray, 4)
	m := class.DeclareMethod("main", symtab.Void)
	x := m.Scope.DeclareLocal("x", symtab.Int)
	tmp := m.Scope.AllocTemp(symtab.Int, true)

	tests := []struct {
		name string
		stmt Statement
		want string
	}{
		{"add", Op{Opcode: OpAdd, Arg1: ConstInt{1}, Arg2: ConstInt{2}, Result: Var{tmp}}, "ADD(1, 2) -> %t2"},
		{"move to array", Op{Opcode: OpMove, Arg1: Var{x}, Result: ArrayVar{arr, ConstInt{3}}}, "MOVE(x) -> a[3]"},
		{"bare return", Op{Opcode: OpReturn}, "RETURN()"},
		{"enter", Op{Opcode: OpEnter, Arg1: ConstInt{16}}, "ENTER(16)"},
		{"call", Call{Callee: "f", Args: []Operand{Var{x}, ConstBool{true}}, Result: Var{tmp}}, "CALL f(x, true) -> %t2"},
		{"callout", Call{Callee: "printf", Args: []Operand{ConstInt{7}}, Builtin: true}, "CALLOUT printf(7)"},
		{"argument", Argument{Operand: ArrayVar{arr, Var{x}}}, "ARG a[x]"},
		{"dummy", Dummy{}, "NOP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.stmt); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOperandEquality(t *testing.T) {
	class := symtab.NewClassScope()
	arr := class.DeclareField("a", symtab.IntArray, 4)
	i := class.DeclareField("i", symtab.Int, 0)

	seen := map[Operand]int{}
	seen[ArrayVar{arr, Var{i}}] = 1
	if seen[ArrayVar{arr, Var{i}}] != 1 {
		t.Error("structurally equal operands should hash equally")
	}
	if _, ok := seen[ArrayVar{arr, ConstInt{0}}]; ok {
		t.Error("different index should be a different key")
	}
}

func TestDefinesAndUses(t *testing.T) {
	class := symtab.NewClassScope()
	arr := class.DeclareField("a", symtab.IntArray, 4)
	i := class.DeclareField("i", symtab.Int, 0)
	j := class.DeclareField("j", symtab.Int, 0)

	store := Op{Opcode: OpMove, Arg1: Var{j}, Result: ArrayVar{arr, Var{i}}}
	if got := Defines(store); got != (ArrayVar{arr, Var{i}}) {
		t.Errorf("got %v, want a[i]", got)
	}
	uses := Uses(store)
	if len(uses) != 2 || uses[0] != (Var{j}) || uses[1] != (Var{i}) {
		t.Errorf("got uses %v, want [j i]", uses)
	}
	if Defines(Op{Opcode: OpReturn, Arg1: Var{i}}) != nil {
		t.Error("RETURN defines nothing")
	}
	if ResultOf(Argument{Operand: ConstInt{5}}) != (ConstInt{5}) {
		t.Error("argument exposes its operand")
	}
}

func TestOpcodeClasses(t *testing.T) {
	for _, op := range []Opcode{OpEq, OpNe, OpLt, OpLe, OpGt, OpGe} {
		if !op.IsRelational() || !op.IsExpression() {
			t.Errorf("%s should be relational", op)
		}
	}
	for _, op := range []Opcode{OpMove, OpReturn, OpEnter, OpInvalid} {
		if op.IsExpression() {
			t.Errorf("%s should not be an expression", op)
		}
	}
	if Opcode(99).String() != "INVALID" {
		t.Error("out of range opcode should print INVALID")
	}
}

func TestOpcodeNegate(t *testing.T) {
	pairs := [][2]Opcode{{OpEq, OpNe}, {OpLt, OpGe}, {OpLe, OpGt}}
	for _, p := range pairs {
		if got := p[0].Negate(); got != p[1] {
			t.Errorf("%s.Negate() = %s, want %s", p[0], got, p[1])
		}
		if got := p[1].Negate(); got != p[0] {
			t.Errorf("%s.Negate() = %s, want %s", p[1], got, p[0])
		}
	}
	if got := OpAdd.Negate(); got != OpAdd {
		t.Errorf("ADD.Negate() = %s, want ADD", got)
	}
}

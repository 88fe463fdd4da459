package asm

import "testing"

func TestInstructionInterface(t *testing.T) {
	// Verify all instruction types implement the Instruction interface
	var _ Instruction = MOVQ{}
	var _ Instruction = PUSHQ{}
	var _ Instruction = POPQ{}
	var _ Instruction = CMOVQ{}
	var _ Instruction = ADDQ{}
	var _ Instruction = SUBQ{}
	var _ Instruction = IMULQ{}
	var _ Instruction = IDIVQ{}
	var _ Instruction = CQTO{}
	var _ Instruction = NEGQ{}
	var _ Instruction = ANDQ{}
	var _ Instruction = XORQ{}
	var _ Instruction = CMPQ{}
	var _ Instruction = JMP{}
	var _ Instruction = Jcc{}
	var _ Instruction = CALL{}
	var _ Instruction = ENTER{}
	var _ Instruction = LEAVE{}
	var _ Instruction = RET{}
	var _ Instruction = LabelDef{}
	var _ Instruction = Comment{}
}

func TestOperandInterface(t *testing.T) {
	var _ Operand = RAX
	var _ Operand = Imm(0)
	var _ Operand = SymAddr("")
	var _ Operand = Mem{}
	var _ Operand = Sym("")
	var _ Operand = Indexed{}
}

func TestFunctionAppend(t *testing.T) {
	fn := NewFunction("main")
	fn.Append(RET{})
	fn.AppendNote(MOVQ{Src: Imm(1), Dst: R10}, "x = 1")
	fn.AppendLabel(".Lmain_1")

	if len(fn.Code) != 3 {
		t.Fatalf("got %d lines, want 3", len(fn.Code))
	}
	if fn.Code[1].Note != "x = 1" {
		t.Errorf("note = %q, want %q", fn.Code[1].Note, "x = 1")
	}
	if l, ok := fn.Code[2].Inst.(LabelDef); !ok || l.Name != ".Lmain_1" {
		t.Errorf("got %#v, want label .Lmain_1", fn.Code[2].Inst)
	}
}

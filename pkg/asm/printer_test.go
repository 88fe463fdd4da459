package asm

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintArithmeticInstructions(t *testing.T) {
	tests := []struct {
		name string
		inst Instruction
		want string
	}{
		{"ADDQ", ADDQ{Src: R11, Dst: R10}, "\taddq\t%r11, %r10\n"},
		{"SUBQ", SUBQ{Src: R11, Dst: R10}, "\tsubq\t%r11, %r10\n"},
		{"IMULQ", IMULQ{Src: R11, Dst: R10}, "\timulq\t%r11, %r10\n"},
		{"IDIVQ", IDIVQ{Src: R11}, "\tidivq\t%r11\n"},
		{"CQTO", CQTO{}, "\tcqto\n"},
		{"ANDQ", ANDQ{Src: Imm(-16), Dst: RSP}, "\tandq\t$-16, %rsp\n"},
		{"NEGQ", NEGQ{Dst: R10}, "\tnegq\t%r10\n"},
		{"XORQ", XORQ{Src: RAX, Dst: RAX}, "\txorq\t%rax, %rax\n"},
		{"CMPQ imm", CMPQ{Src: Imm(0), Dst: R10}, "\tcmpq\t$0, %r10\n"},
		{"CMPQ sym", CMPQ{Src: Sym("a_size"), Dst: R10}, "\tcmpq\ta_size, %r10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf)
			p.printInstruction(tt.inst)
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintMoveInstructions(t *testing.T) {
	tests := []struct {
		name string
		inst Instruction
		want string
	}{
		{"imm to reg", MOVQ{Src: Imm(-5), Dst: R10}, "\tmovq\t$-5, %r10\n"},
		{"stack load", MOVQ{Src: Mem{Base: RBP, Offset: -16}, Dst: R10}, "\tmovq\t-16(%rbp), %r10\n"},
		{"param load", MOVQ{Src: Mem{Base: RBP, Offset: 16}, Dst: R11}, "\tmovq\t16(%rbp), %r11\n"},
		{"global store", MOVQ{Src: R10, Dst: Sym("g")}, "\tmovq\t%r10, g\n"},
		{"array load", MOVQ{Src: Indexed{Symbol: "a", Index: R10, Scale: 8}, Dst: R10}, "\tmovq\ta(,%r10,8), %r10\n"},
		{"string address", MOVQ{Src: SymAddr(".str0"), Dst: RDI}, "\tmovq\t$.str0, %rdi\n"},
		{"push", PUSHQ{Src: RBX}, "\tpushq\t%rbx\n"},
		{"pop", POPQ{Dst: RDX}, "\tpopq\t%rdx\n"},
		{"cmov", CMOVQ{Cond: CondLE, Src: R10, Dst: RAX}, "\tcmovleq\t%r10, %rax\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf)
			p.printInstruction(tt.inst)
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintControlInstructions(t *testing.T) {
	tests := []struct {
		name string
		inst Instruction
		want string
	}{
		{"JMP", JMP{Target: ".Lmain_2"}, "\tjmp\t.Lmain_2\n"},
		{"JGE", Jcc{Cond: CondGE, Target: "error_handler"}, "\tjge\terror_handler\n"},
		{"JNE", Jcc{Cond: CondNE, Target: ".Lf_1"}, "\tjne\t.Lf_1\n"},
		{"CALL", CALL{Target: "printf"}, "\tcall\tprintf\n"},
		{"ENTER", ENTER{Size: 32}, "\tenter\t$32, $0\n"},
		{"LEAVE", LEAVE{}, "\tleave\n"},
		{"RET", RET{}, "\tret\n"},
		{"label", LabelDef{Name: ".Lmain_1"}, ".Lmain_1:\n"},
		{"comment", Comment{Text: "unsupported"}, "\t# unsupported\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf)
			p.printInstruction(tt.inst)
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintNote(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.printLine(Line{Inst: MOVQ{Src: Imm(1), Dst: R10}, Note: "x = @1;"})
	want := "\tmovq\t$1, %r10\t# x = @1;\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintProgram(t *testing.T) {
	fn := NewFunction("main")
	fn.Global = true
	fn.Append(ENTER{Size: 16})
	fn.Append(LEAVE{})
	fn.Append(RET{})

	prog := &Program{
		Strings:   []StringData{{Label: ".str0", Text: "hi %d\n"}},
		Data:      []DataVar{{Name: "g"}, {Name: "a", Cells: 5, IsArray: true}},
		Functions: []Function{*fn},
	}

	var buf bytes.Buffer
	NewPrinter(&buf).PrintProgram(prog)
	out := buf.String()

	expected := []string{
		"\t.section\t.rodata\n.str0:\n\t.string\t\"hi %d\\n\"\n",
		"\t.data\n",
		"g:\n\t.quad\t0\n",
		"a:\n\t.rept\t5\n\t.quad\t0\n\t.endr\na_size:\n\t.quad\t5\n",
		"\t.text\n",
		"\t.globl\tmain\n",
		"main:\n\tenter\t$16, $0\n\tleave\n\tret\n",
	}
	for _, exp := range expected {
		if !strings.Contains(out, exp) {
			t.Errorf("output missing %q\ngot:\n%s", exp, out)
		}
	}
	if strings.Index(out, ".rodata") > strings.Index(out, ".data\n") {
		t.Error("string section should come before the data section")
	}
}

func TestPrintProgramWithoutData(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintProgram(&Program{})
	if got := buf.String(); got != "\t.text\n" {
		t.Errorf("got %q, want only the text section", got)
	}
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\nb", `a\nb`},
		{`say "hi"`, `say \"hi\"`},
		{`back\slash`, `back\\slash`},
		{"tab\there", `tab\there`},
		{"bell\a", `bell\007`},
	}
	for _, tt := range tests {
		if got := EscapeString(tt.in); got != tt.want {
			t.Errorf("EscapeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

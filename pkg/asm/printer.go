package asm

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs x86-64 assembly in GNU as AT&T syntax
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new assembly printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram outputs an entire program
func (p *Printer) PrintProgram(prog *Program) {
	// Output read-only data section (string literals)
	if len(prog.Strings) > 0 {
		fmt.Fprintf(p.w, "\t.section\t.rodata\n")
		for _, s := range prog.Strings {
			fmt.Fprintf(p.w, "%s:\n", s.Label)
			fmt.Fprintf(p.w, "\t.string\t\"%s\"\n", EscapeString(s.Text))
		}
		fmt.Fprintf(p.w, "\n")
	}

	// Output read-write data section (globals)
	if len(prog.Data) > 0 {
		fmt.Fprintf(p.w, "\t.data\n")
		fmt.Fprintf(p.w, "\t.align\t8\n")
		for _, d := range prog.Data {
			p.printData(d)
		}
		fmt.Fprintf(p.w, "\n")
	}

	// Output functions
	fmt.Fprintf(p.w, "\t.text\n")
	for _, f := range prog.Functions {
		p.printFunction(f)
	}
}

func (p *Printer) printData(d DataVar) {
	fmt.Fprintf(p.w, "%s:\n", d.Name)
	if !d.IsArray {
		fmt.Fprintf(p.w, "\t.quad\t0\n")
		return
	}
	if d.Cells > 0 {
		fmt.Fprintf(p.w, "\t.rept\t%d\n", d.Cells)
		fmt.Fprintf(p.w, "\t.quad\t0\n")
		fmt.Fprintf(p.w, "\t.endr\n")
	}
	fmt.Fprintf(p.w, "%s_size:\n", d.Name)
	fmt.Fprintf(p.w, "\t.quad\t%d\n", d.Cells)
}

func (p *Printer) printFunction(f Function) {
	if f.Global {
		fmt.Fprintf(p.w, "\t.globl\t%s\n", f.Name)
		fmt.Fprintf(p.w, "\t.type\t%s, @function\n", f.Name)
	}
	fmt.Fprintf(p.w, "%s:\n", f.Name)
	for _, line := range f.Code {
		p.printLine(line)
	}
	fmt.Fprintf(p.w, "\n")
}

func (p *Printer) printLine(l Line) {
	if l.Note == "" {
		p.printInstruction(l.Inst)
		return
	}
	var sb strings.Builder
	inner := NewPrinter(&sb)
	inner.printInstruction(l.Inst)
	text := strings.TrimSuffix(sb.String(), "\n")
	fmt.Fprintf(p.w, "%s\t# %s\n", text, l.Note)
}

// operandString renders an operand in AT&T syntax
func operandString(o Operand) string {
	switch o := o.(type) {
	case Reg:
		return "%" + string(o)
	case Imm:
		return fmt.Sprintf("$%d", int64(o))
	case SymAddr:
		return "$" + string(o)
	case Mem:
		return fmt.Sprintf("%d(%%%s)", o.Offset, o.Base)
	case Sym:
		return string(o)
	case Indexed:
		return fmt.Sprintf("%s(,%%%s,%d)", o.Symbol, o.Index, o.Scale)
	default:
		return fmt.Sprintf("?%T", o)
	}
}

func (p *Printer) binary(mnemonic string, src, dst Operand) {
	fmt.Fprintf(p.w, "\t%s\t%s, %s\n", mnemonic, operandString(src), operandString(dst))
}

func (p *Printer) unary(mnemonic string, o Operand) {
	fmt.Fprintf(p.w, "\t%s\t%s\n", mnemonic, operandString(o))
}

func (p *Printer) printInstruction(inst Instruction) {
	switch i := inst.(type) {
	// Labels
	case LabelDef:
		fmt.Fprintf(p.w, "%s:\n", i.Name)
	case Comment:
		fmt.Fprintf(p.w, "\t# %s\n", i.Text)

	// Data movement
	case MOVQ:
		p.binary("movq", i.Src, i.Dst)
	case PUSHQ:
		p.unary("pushq", i.Src)
	case POPQ:
		p.unary("popq", i.Dst)
	case CMOVQ:
		p.binary("cmov"+string(i.Cond)+"q", i.Src, i.Dst)

	// Arithmetic
	case ADDQ:
		p.binary("addq", i.Src, i.Dst)
	case SUBQ:
		p.binary("subq", i.Src, i.Dst)
	case IMULQ:
		p.binary("imulq", i.Src, i.Dst)
	case IDIVQ:
		p.unary("idivq", i.Src)
	case CQTO:
		fmt.Fprintf(p.w, "\tcqto\n")
	case NEGQ:
		p.unary("negq", i.Dst)
	case ANDQ:
		p.binary("andq", i.Src, i.Dst)
	case XORQ:
		p.binary("xorq", i.Src, i.Dst)
	case CMPQ:
		p.binary("cmpq", i.Src, i.Dst)

	// Control flow
	case JMP:
		fmt.Fprintf(p.w, "\tjmp\t%s\n", i.Target)
	case Jcc:
		fmt.Fprintf(p.w, "\tj%s\t%s\n", i.Cond, i.Target)
	case CALL:
		fmt.Fprintf(p.w, "\tcall\t%s\n", i.Target)
	case ENTER:
		fmt.Fprintf(p.w, "\tenter\t$%d, $0\n", i.Size)
	case LEAVE:
		fmt.Fprintf(p.w, "\tleave\n")
	case RET:
		fmt.Fprintf(p.w, "\tret\n")

	default:
		fmt.Fprintf(p.w, "\t# unknown instruction: %T\n", inst)
	}
}

// EscapeString quotes text for a GNU as .string directive. Printable ASCII
// passes through; everything else becomes an escape.
func EscapeString(text string) string {
	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&sb, "\\%03o", c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

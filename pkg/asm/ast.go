// Package asm defines the x86-64 assembly representation.
// This is the final output of the compiler: AT&T syntax assembly that GNU as
// accepts directly.
package asm

// Reg is a 64-bit general purpose register, named without the % sigil.
type Reg string

const (
	RAX Reg = "rax"
	RBX Reg = "rbx"
	RCX Reg = "rcx"
	RDX Reg = "rdx"
	RSI Reg = "rsi"
	RDI Reg = "rdi"
	RBP Reg = "rbp"
	RSP Reg = "rsp"
	R8  Reg = "r8"
	R9  Reg = "r9"
	R10 Reg = "r10"
	R11 Reg = "r11"
	R12 Reg = "r12"
	R13 Reg = "r13"
	R14 Reg = "r14"
	R15 Reg = "r15"
)

// Label represents a branch target label
type Label string

// Cond is a condition-code suffix shared by jcc and cmovcc.
type Cond string

const (
	CondE  Cond = "e"
	CondNE Cond = "ne"
	CondL  Cond = "l"
	CondLE Cond = "le"
	CondG  Cond = "g"
	CondGE Cond = "ge"
)

// --- Operands ---

// Operand is an instruction source or destination.
type Operand interface {
	implOperand()
}

// Imm is an immediate, $n
type Imm int64

// SymAddr is the address of a symbol as an immediate, $sym
type SymAddr string

// Mem is a base-plus-displacement memory reference, off(%base)
type Mem struct {
	Base   Reg
	Offset int64
}

// Sym is an absolute memory reference to a symbol
type Sym string

// Indexed is a scaled symbol reference, sym(,%index,scale)
type Indexed struct {
	Symbol string
	Index  Reg
	Scale  int
}

func (Reg) implOperand()     {}
func (Imm) implOperand()     {}
func (SymAddr) implOperand() {}
func (Mem) implOperand()     {}
func (Sym) implOperand()     {}
func (Indexed) implOperand() {}

// --- Instruction Interface ---

// Instruction is the interface for x86-64 instructions
type Instruction interface {
	implInstruction()
}

// --- Data Movement ---

// MOVQ - Move quadword
type MOVQ struct {
	Src, Dst Operand
}

// PUSHQ - Push quadword
type PUSHQ struct {
	Src Operand
}

// POPQ - Pop quadword
type POPQ struct {
	Dst Operand
}

// CMOVQ - Conditional move
type CMOVQ struct {
	Cond     Cond
	Src, Dst Operand
}

// --- Arithmetic ---

// ADDQ - Dst += Src
type ADDQ struct {
	Src, Dst Operand
}

// SUBQ - Dst -= Src
type SUBQ struct {
	Src, Dst Operand
}

// IMULQ - Dst *= Src
type IMULQ struct {
	Src, Dst Operand
}

// IDIVQ - Signed divide rdx:rax by Src
type IDIVQ struct {
	Src Operand
}

// CQTO - Sign-extend rax into rdx
type CQTO struct{}

// NEGQ - Two's complement negate
type NEGQ struct {
	Dst Operand
}

// ANDQ - Dst &= Src
type ANDQ struct {
	Src, Dst Operand
}

// XORQ - Dst ^= Src
type XORQ struct {
	Src, Dst Operand
}

// CMPQ - Set flags from Dst - Src
type CMPQ struct {
	Src, Dst Operand
}

// --- Control Flow ---

// JMP - Unconditional jump
type JMP struct {
	Target Label
}

// Jcc - Conditional jump
type Jcc struct {
	Cond   Cond
	Target Label
}

// CALL - Call a symbol
type CALL struct {
	Target string
}

// ENTER - Build a stack frame of Size bytes
type ENTER struct {
	Size int64
}

// LEAVE - Tear down the stack frame
type LEAVE struct{}

// RET - Return
type RET struct{}

// --- Labels and Comments ---

// LabelDef defines a label
type LabelDef struct {
	Name Label
}

// Comment is a line holding only a comment
type Comment struct {
	Text string
}

// --- Marker methods for Instruction interface ---

func (MOVQ) implInstruction()     {}
func (PUSHQ) implInstruction()    {}
func (POPQ) implInstruction()     {}
func (CMOVQ) implInstruction()    {}
func (ADDQ) implInstruction()     {}
func (SUBQ) implInstruction()     {}
func (IMULQ) implInstruction()    {}
func (IDIVQ) implInstruction()    {}
func (CQTO) implInstruction()     {}
func (NEGQ) implInstruction()     {}
func (ANDQ) implInstruction()     {}
func (XORQ) implInstruction()     {}
func (CMPQ) implInstruction()     {}
func (JMP) implInstruction()      {}
func (Jcc) implInstruction()      {}
func (CALL) implInstruction()     {}
func (ENTER) implInstruction()    {}
func (LEAVE) implInstruction()    {}
func (RET) implInstruction()      {}
func (LabelDef) implInstruction() {}
func (Comment) implInstruction()  {}

// --- Function and Program ---

// Line is one instruction plus the source fragment it was generated from.
type Line struct {
	Inst Instruction
	Note string
}

// Function represents an assembly function
type Function struct {
	Name   string
	Global bool
	Code   []Line
}

// StringData is a read-only string literal
type StringData struct {
	Label string
	Text  string
}

// DataVar is a zero-initialized global. Arrays are followed by a
// <name>_size cell holding their element count.
type DataVar struct {
	Name    string
	Cells   int64
	IsArray bool
}

// Program represents a complete assembly program
type Program struct {
	Strings   []StringData
	Data      []DataVar
	Functions []Function
}

// NewFunction creates a new assembly function
func NewFunction(name string) *Function {
	return &Function{
		Name: name,
		Code: make([]Line, 0),
	}
}

// Append adds an instruction to the function
func (f *Function) Append(inst Instruction) {
	f.Code = append(f.Code, Line{Inst: inst})
}

// AppendNote adds an instruction annotated with a source fragment
func (f *Function) AppendNote(inst Instruction, note string) {
	f.Code = append(f.Code, Line{Inst: inst, Note: note})
}

// AppendLabel adds a label definition
func (f *Function) AppendLabel(name Label) {
	f.Code = append(f.Code, Line{Inst: LabelDef{Name: name}})
}

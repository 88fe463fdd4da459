// Package asmgen transforms the optimized CFG to x86-64 assembly.
// This is the final compilation phase, producing AT&T syntax assembly
// that can be assembled by a standard assembler (as/gas).
//
// Values live in their frame slot, global cell or allocated register
// between statements; each statement is expanded through the scratch
// registers R10 and R11.
package asmgen

import (
	"github.com/raymyers/ralph-decaf/pkg/asm"
	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/diag"
	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// Runtime error entry points. Bounds failures exit with status 1, a
// non-void method falling off its end exits with status 2.
const (
	ErrorHandler       asm.Label = "error_handler"
	ErrorHandlerReturn asm.Label = "error_handler_return"
	errorExit          asm.Label = "error_exit"
)

// Options configures the emitter.
type Options struct {
	// Source annotates every instruction with the source line it was
	// generated from. Nil disables annotations.
	Source *diag.Source
}

// Emitter translates a CFG into an assembly program.
type Emitter struct {
	graph    *cfg.Graph
	reporter *diag.Reporter
	opts     Options
}

// New creates an emitter for g reporting into r.
func New(g *cfg.Graph, r *diag.Reporter, opts Options) *Emitter {
	if r == nil {
		r = diag.NewReporter(nil)
	}
	return &Emitter{graph: g, reporter: r, opts: opts}
}

// Emit transforms methods, plus the graph's string literals and globals, to
// a program. The shared error handler is appended last.
func (e *Emitter) Emit(methods []*cfg.Method) *asm.Program {
	fns := make([]asm.Function, 0, len(methods))
	for _, m := range methods {
		fns = append(fns, e.EmitMethod(m))
	}
	return e.Assemble(fns)
}

// Assemble wraps already emitted functions into a program with the graph's
// data sections and the error handler.
func (e *Emitter) Assemble(fns []asm.Function) *asm.Program {
	result := &asm.Program{}

	if e.graph != nil {
		for _, s := range e.graph.Strings() {
			result.Strings = append(result.Strings, asm.StringData{Label: s.Label, Text: s.Text})
		}
		for _, d := range e.graph.Globals() {
			result.Data = append(result.Data, dataVar(d))
		}
	}

	result.Functions = append(result.Functions, fns...)
	result.Functions = append(result.Functions, ErrorHandlerFunction())

	return result
}

func dataVar(d *symtab.Descriptor) asm.DataVar {
	if d.Type.IsArray() {
		return asm.DataVar{Name: d.Loc.Symbol, Cells: d.Length, IsArray: true}
	}
	return asm.DataVar{Name: d.Loc.Symbol}
}

// EmitMethod transforms a single method. Blocks are laid out in
// breadth-first order from the entry; the entry block is addressed by the
// method name itself.
func (e *Emitter) EmitMethod(m *cfg.Method) asm.Function {
	ctx := &genContext{
		e:     e,
		m:     m,
		fn:    asm.NewFunction(m.Name),
		saved: FindUsedCalleeSaveRegs(m),
	}
	ctx.fn.Global = m.Name == "main"

	for i, b := range cfg.Walk(m.Entry) {
		if i > 0 {
			ctx.fn.AppendLabel(asm.Label(b.ID))
		}
		ctx.translateBlock(b)
	}

	return *ctx.fn
}

// ErrorHandlerFunction is the shared runtime failure path. It exits through
// libc so buffered output written with printf is flushed first.
func ErrorHandlerFunction() asm.Function {
	fn := asm.NewFunction(string(ErrorHandler))
	fn.Append(asm.MOVQ{Src: asm.Imm(1), Dst: asm.RDI})
	fn.Append(asm.JMP{Target: errorExit})
	fn.AppendLabel(ErrorHandlerReturn)
	fn.Append(asm.MOVQ{Src: asm.Imm(2), Dst: asm.RDI})
	fn.AppendLabel(errorExit)
	fn.Append(asm.ANDQ{Src: asm.Imm(-16), Dst: asm.RSP})
	fn.Append(asm.CALL{Target: "exit"})
	return *fn
}

// genContext holds state during code generation of one method
type genContext struct {
	e     *Emitter
	m     *cfg.Method
	fn    *asm.Function
	saved []asm.Reg
	pos   diag.Pos
	note  string
}

func (ctx *genContext) emit(insts ...asm.Instruction) {
	for _, inst := range insts {
		ctx.fn.AppendNote(inst, ctx.note)
	}
}

func (ctx *genContext) errorf(format string, args ...any) {
	ctx.e.reporter.Errorf(ctx.pos, diag.Emit, format, args...)
}

func (ctx *genContext) setStmt(s ir.Statement) {
	ctx.pos = ir.PosOf(s)
	ctx.note = ctx.e.opts.Source.Fragment(ctx.pos)
}

func (ctx *genContext) translateBlock(b *cfg.Block) {
	for i, s := range b.Stmts {
		ctx.setStmt(s)
		if i == len(b.Stmts)-1 && b.IsBranch() {
			ctx.translateBranch(b, s)
			continue
		}
		ctx.translateStatement(s)
	}
	ctx.terminate(b)
}

// terminate emits the jumps that leave b.
func (ctx *genContext) terminate(b *cfg.Block) {
	if b.Next != nil {
		ctx.emit(asm.JMP{Target: asm.Label(b.Next.ID)})
		return
	}
	if !b.IsBranch() {
		if op, ok := b.Last().(ir.Op); ok && op.Opcode == ir.OpReturn {
			return
		}
	}
	ctx.implicitReturn()
}

// translateBranch emits the comparison ending b and the conditional jump to
// its branch target.
func (ctx *genContext) translateBranch(b *cfg.Block, s ir.Statement) {
	op, ok := s.(ir.Op)
	if !ok || !op.Opcode.IsRelational() {
		ctx.errorf("block %s does not end in a comparison: %s", b.ID, ir.Format(s))
		ctx.emit(asm.Comment{Text: "unsupported branch: " + ir.Format(s)})
		return
	}

	cond := ctx.compare(op)
	if _, ok := op.Result.(ir.ArrayVar); ok {
		// The element store ran a bounds check; test the stored value.
		ctx.emit(asm.CMPQ{Src: asm.Imm(0), Dst: asm.RAX})
		cond = asm.CondNE
	}
	ctx.emit(asm.Jcc{Cond: cond, Target: asm.Label(b.Branch.ID)})
}

// translateStatement translates one statement to assembly
func (ctx *genContext) translateStatement(s ir.Statement) {
	switch s := s.(type) {
	case ir.Op:
		ctx.translateOp(s)
	case ir.Call:
		ctx.translateCall(s)
	default:
		ctx.unsupported(s)
	}
}

func (ctx *genContext) unsupported(s ir.Statement) {
	ctx.errorf("cannot emit %s", ir.Format(s))
	ctx.emit(asm.Comment{Text: "unsupported: " + ir.Format(s)})
}

func (ctx *genContext) translateOp(s ir.Op) {
	switch s.Opcode {
	case ir.OpEnter:
		ctx.translateEnter(s)
	case ir.OpReturn:
		ctx.translateReturn(s)
	case ir.OpMove:
		ctx.load(s.Arg1, asm.R10)
		ctx.store(asm.R10, s.Result)
	case ir.OpNeg:
		ctx.load(s.Arg1, asm.R10)
		ctx.emit(asm.NEGQ{Dst: asm.R10})
		ctx.store(asm.R10, s.Result)
	case ir.OpNot:
		ctx.load(s.Arg1, asm.R10)
		ctx.emit(asm.XORQ{Src: asm.Imm(1), Dst: asm.R10})
		ctx.store(asm.R10, s.Result)
	case ir.OpAdd, ir.OpSub, ir.OpMul:
		ctx.translateArith(s)
	case ir.OpDiv, ir.OpMod:
		ctx.translateDivide(s)
	default:
		if s.Opcode.IsRelational() {
			ctx.compare(s)
			return
		}
		ctx.unsupported(s)
	}
}

func (ctx *genContext) translateEnter(s ir.Op) {
	var size int64
	if c, ok := s.Arg1.(ir.ConstInt); ok {
		size = c.Value
	}
	var params []*symtab.Descriptor
	if desc := ctx.m.Desc; desc != nil {
		params = desc.Params
		// Optimization may have allocated temporaries after ENTER was built.
		if desc.Scope != nil && desc.Scope.Frame() != nil && desc.Scope.Frame().Size() > size {
			size = desc.Scope.Frame().Size()
		}
	}
	ctx.emit(GeneratePrologue(size, ctx.saved, params)...)
}

func (ctx *genContext) translateReturn(s ir.Op) {
	if s.Arg1 == nil {
		ctx.implicitReturn()
		return
	}
	ctx.load(s.Arg1, asm.RAX)
	ctx.emit(GenerateEpilogue(ctx.saved)...)
}

// implicitReturn leaves a method whose control reaches the end without a
// return value. Non-void methods fail at run time instead.
func (ctx *genContext) implicitReturn() {
	if desc := ctx.m.Desc; desc != nil && desc.Return != symtab.Void {
		ctx.emit(asm.JMP{Target: ErrorHandlerReturn})
		return
	}
	if ctx.m.Name == "main" {
		ctx.emit(asm.XORQ{Src: asm.RAX, Dst: asm.RAX})
	}
	ctx.emit(GenerateEpilogue(ctx.saved)...)
}

func (ctx *genContext) translateArith(s ir.Op) {
	ctx.load(s.Arg1, asm.R10)
	ctx.load(s.Arg2, asm.R11)
	switch s.Opcode {
	case ir.OpAdd:
		ctx.emit(asm.ADDQ{Src: asm.R11, Dst: asm.R10})
	case ir.OpSub:
		ctx.emit(asm.SUBQ{Src: asm.R11, Dst: asm.R10})
	case ir.OpMul:
		ctx.emit(asm.IMULQ{Src: asm.R11, Dst: asm.R10})
	}
	ctx.store(asm.R10, s.Result)
}

// translateDivide divides rdx:rax by R11, keeping the quotient for DIVIDE
// and the remainder for MOD. RDX is preserved around the divide.
func (ctx *genContext) translateDivide(s ir.Op) {
	ctx.load(s.Arg1, asm.R10)
	ctx.load(s.Arg2, asm.R11)
	result := asm.RAX
	if s.Opcode == ir.OpMod {
		result = asm.RDX
	}
	ctx.emit(
		asm.PUSHQ{Src: asm.RDX},
		asm.MOVQ{Src: asm.R10, Dst: asm.RAX},
		asm.CQTO{},
		asm.IDIVQ{Src: asm.R11},
		asm.MOVQ{Src: result, Dst: asm.R10},
		asm.POPQ{Dst: asm.RDX},
	)
	ctx.store(asm.R10, s.Result)
}

// compare materializes a comparison as 0 or 1 without branching and returns
// the condition code that was tested. The flags still reflect the
// comparison afterwards unless the destination is an array element.
func (ctx *genContext) compare(s ir.Op) asm.Cond {
	cond := condOf(s.Opcode)
	ctx.load(s.Arg1, asm.R10)
	ctx.load(s.Arg2, asm.R11)
	ctx.emit(
		asm.XORQ{Src: asm.RAX, Dst: asm.RAX},
		asm.CMPQ{Src: asm.R11, Dst: asm.R10},
		asm.MOVQ{Src: asm.Imm(1), Dst: asm.R10},
		asm.CMOVQ{Cond: cond, Src: asm.R10, Dst: asm.RAX},
	)
	if s.Result != nil {
		ctx.store(asm.RAX, s.Result)
	}
	return cond
}

func condOf(op ir.Opcode) asm.Cond {
	switch op {
	case ir.OpEq:
		return asm.CondE
	case ir.OpNe:
		return asm.CondNE
	case ir.OpLt:
		return asm.CondL
	case ir.OpLe:
		return asm.CondLE
	case ir.OpGt:
		return asm.CondG
	default:
		return asm.CondGE
	}
}

// translateCall follows the System V AMD64 convention. Arguments past the
// sixth are pushed right to left, and a padding slot keeps the stack
// 16-byte aligned at the call.
func (ctx *genContext) translateCall(s ir.Call) {
	nstack := len(s.Args) - len(intArgRegs)
	if nstack < 0 {
		nstack = 0
	}
	cleanup := int64(8 * nstack)
	if (nstack+len(ctx.saved))%2 == 1 {
		ctx.emit(asm.SUBQ{Src: asm.Imm(8), Dst: asm.RSP})
		cleanup += 8
	}

	for i := len(s.Args) - 1; i >= len(intArgRegs); i-- {
		ctx.load(s.Args[i], asm.R10)
		ctx.emit(asm.PUSHQ{Src: asm.R10})
	}
	for i, a := range s.Args {
		if i >= len(intArgRegs) {
			break
		}
		ctx.load(a, intArgRegs[i])
	}

	ctx.emit(asm.XORQ{Src: asm.RAX, Dst: asm.RAX})
	ctx.emit(asm.CALL{Target: s.Callee})
	if cleanup > 0 {
		ctx.emit(asm.ADDQ{Src: asm.Imm(cleanup), Dst: asm.RSP})
	}
	if s.Result != nil {
		ctx.store(asm.RAX, s.Result)
	}
}

// load moves the value of o into reg.
func (ctx *genContext) load(o ir.Operand, reg asm.Reg) {
	switch o := o.(type) {
	case ir.ConstInt:
		ctx.emit(asm.MOVQ{Src: asm.Imm(o.Value), Dst: reg})
	case ir.ConstBool:
		var v int64
		if o.Value {
			v = 1
		}
		ctx.emit(asm.MOVQ{Src: asm.Imm(v), Dst: reg})
	case ir.Var:
		if o.Desc.Kind == symtab.StringLit {
			ctx.emit(asm.MOVQ{Src: asm.SymAddr(o.Desc.Loc.Symbol), Dst: reg})
			return
		}
		ctx.emit(asm.MOVQ{Src: location(o.Desc), Dst: reg})
	case ir.ArrayVar:
		if !ctx.checkArray(o) {
			return
		}
		ctx.load(o.Index, reg)
		ctx.boundsCheck(o.Desc, reg)
		ctx.emit(asm.MOVQ{Src: element(o.Desc, reg), Dst: reg})
	default:
		ctx.errorf("cannot load operand %s", ir.FormatOperand(o))
	}
}

// store writes src into dest. Array stores index through whichever scratch
// register src is not.
func (ctx *genContext) store(src asm.Reg, dest ir.Operand) {
	switch d := dest.(type) {
	case ir.Var:
		ctx.emit(asm.MOVQ{Src: src, Dst: location(d.Desc)})
	case ir.ArrayVar:
		if !ctx.checkArray(d) {
			return
		}
		idx := asm.R11
		if src == asm.R11 {
			idx = asm.R10
		}
		ctx.load(d.Index, idx)
		ctx.boundsCheck(d.Desc, idx)
		ctx.emit(asm.MOVQ{Src: src, Dst: element(d.Desc, idx)})
	case nil:
		ctx.errorf("statement has no destination")
	default:
		ctx.errorf("cannot store into %s", ir.FormatOperand(dest))
	}
}

func (ctx *genContext) checkArray(a ir.ArrayVar) bool {
	if a.Desc.Loc.Kind != symtab.Global {
		ctx.errorf("array %s is not a global", a.Desc.Name)
		return false
	}
	return true
}

// boundsCheck jumps to the error handler unless 0 <= idx < length.
func (ctx *genContext) boundsCheck(d *symtab.Descriptor, idx asm.Reg) {
	ctx.emit(
		asm.CMPQ{Src: asm.Imm(0), Dst: idx},
		asm.Jcc{Cond: asm.CondL, Target: ErrorHandler},
		asm.CMPQ{Src: asm.Sym(d.Loc.Symbol + "_size"), Dst: idx},
		asm.Jcc{Cond: asm.CondGE, Target: ErrorHandler},
	)
}

func element(d *symtab.Descriptor, idx asm.Reg) asm.Indexed {
	return asm.Indexed{Symbol: d.Loc.Symbol, Index: idx, Scale: 8}
}

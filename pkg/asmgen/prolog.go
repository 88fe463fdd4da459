package asmgen

import (
	"github.com/raymyers/ralph-decaf/pkg/asm"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// intArgRegs are the registers the first six integer arguments arrive in
var intArgRegs = []asm.Reg{asm.RDI, asm.RSI, asm.RDX, asm.RCX, asm.R8, asm.R9}

// FrameSize rounds a locals area up to the 16-byte stack alignment.
func FrameSize(locals int64) int64 {
	return (locals + 15) &^ 15
}

// GeneratePrologue generates the method prologue:
//  1. enter with the locals area
//  2. push the callee-saved registers the body uses
//  3. spill register parameters into their frame slots
func GeneratePrologue(frameSize int64, saved []asm.Reg, params []*symtab.Descriptor) []asm.Instruction {
	prologue := []asm.Instruction{asm.ENTER{Size: FrameSize(frameSize)}}

	for _, r := range saved {
		prologue = append(prologue, asm.PUSHQ{Src: r})
	}

	for i, p := range params {
		if i >= len(intArgRegs) {
			break
		}
		prologue = append(prologue, asm.MOVQ{Src: intArgRegs[i], Dst: location(p)})
	}

	return prologue
}

// GenerateEpilogue restores the saved registers in reverse order, releases
// the frame and returns.
func GenerateEpilogue(saved []asm.Reg) []asm.Instruction {
	var epilogue []asm.Instruction
	for i := len(saved) - 1; i >= 0; i-- {
		epilogue = append(epilogue, asm.POPQ{Dst: saved[i]})
	}
	return append(epilogue, asm.LEAVE{}, asm.RET{})
}

// location returns the memory or register operand a descriptor lives in.
func location(d *symtab.Descriptor) asm.Operand {
	switch d.Loc.Kind {
	case symtab.Global:
		return asm.Sym(d.Loc.Symbol)
	case symtab.Register:
		return asm.Reg(d.Loc.Reg)
	default:
		return asm.Mem{Base: asm.RBP, Offset: d.Loc.Offset}
	}
}

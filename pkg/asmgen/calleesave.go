package asmgen

import (
	"github.com/raymyers/ralph-decaf/pkg/asm"
	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// CalleeSaveRegs lists the System V AMD64 callee-saved registers, excluding
// the frame pointer which enter/leave handle.
var CalleeSaveRegs = []asm.Reg{asm.RBX, asm.R12, asm.R13, asm.R14, asm.R15}

// IsCalleeSaved returns true if the register is callee-saved
func IsCalleeSaved(reg asm.Reg) bool {
	for _, r := range CalleeSaveRegs {
		if r == reg {
			return true
		}
	}
	return false
}

// FindUsedCalleeSaveRegs scans every block reachable from the method entry
// and returns the callee-saved registers its operands live in, in
// CalleeSaveRegs order.
func FindUsedCalleeSaveRegs(m *cfg.Method) []asm.Reg {
	used := make(map[asm.Reg]bool)

	for _, b := range cfg.Walk(m.Entry) {
		for _, s := range b.Stmts {
			collectRegsFromStmt(s, used)
		}
	}

	var result []asm.Reg
	for _, reg := range CalleeSaveRegs {
		if used[reg] {
			result = append(result, reg)
		}
	}
	return result
}

// collectRegsFromStmt adds the callee-saved registers named by a
// statement's operands to the set
func collectRegsFromStmt(s ir.Statement, used map[asm.Reg]bool) {
	ops := ir.Uses(s)
	if d := ir.Defines(s); d != nil {
		ops = append(ops, d)
	}
	for _, o := range ops {
		d := ir.DescOf(o)
		if d == nil || d.Loc.Kind != symtab.Register {
			continue
		}
		if reg := asm.Reg(d.Loc.Reg); IsCalleeSaved(reg) {
			used[reg] = true
		}
	}
}

package ir

import (
	"fmt"
	"strings"
)

// FormatOperand renders an operand the way dumps show it.
func FormatOperand(o Operand) string {
	switch o := o.(type) {
	case nil:
		return "_"
	case ConstInt:
		return fmt.Sprintf("%d", o.Value)
	case ConstBool:
		return fmt.Sprintf("%t", o.Value)
	case Var:
		return o.Desc.Name
	case ArrayVar:
		return fmt.Sprintf("%s[%s]", o.Desc.Name, FormatOperand(o.Index))
	default:
		return fmt.Sprintf("<%T>", o)
	}
}

// Format renders a statement on one line, e.g. "ADD(1, 2) -> %t1".
func Format(s Statement) string {
	switch s := s.(type) {
	case Op:
		var args []string
		if s.Arg1 != nil {
			args = append(args, FormatOperand(s.Arg1))
		}
		if s.Arg2 != nil {
			args = append(args, FormatOperand(s.Arg2))
		}
		str := fmt.Sprintf("%s(%s)", s.Opcode, strings.Join(args, ", "))
		if s.Result != nil {
			str += " -> " + FormatOperand(s.Result)
		}
		return str
	case Call:
		args := make([]string, len(s.Args))
		for i, a := range s.Args {
			args[i] = FormatOperand(a)
		}
		kind := "CALL"
		if s.Builtin {
			kind = "CALLOUT"
		}
		str := fmt.Sprintf("%s %s(%s)", kind, s.Callee, strings.Join(args, ", "))
		if s.Result != nil {
			str += " -> " + FormatOperand(s.Result)
		}
		return str
	case Argument:
		return "ARG " + FormatOperand(s.Operand)
	case Dummy:
		return "NOP"
	default:
		return fmt.Sprintf("// unknown statement: %T", s)
	}
}

package dataflow

import (
	"sort"

	"github.com/raymyers/ralph-decaf/pkg/cfg"
	"github.com/raymyers/ralph-decaf/pkg/ir"
	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// SignEnv maps scalar integer variables to their sign. The zero value is
// the unreached state, where every variable is ⊥. In a reached environment
// a variable without an entry is ⊤, so entries are only kept for signs that
// are known.
type SignEnv struct {
	reached bool
	vals    map[*symtab.Descriptor]Sign
}

// Reached reports whether any path reaches this point.
func (e SignEnv) Reached() bool { return e.reached }

// Get returns the sign of d.
func (e SignEnv) Get(d *symtab.Descriptor) Sign {
	if !e.reached {
		return SignBottom
	}
	if s, ok := e.vals[d]; ok {
		return s
	}
	return SignTop
}

func (e SignEnv) with(d *symtab.Descriptor, s Sign) SignEnv {
	vals := make(map[*symtab.Descriptor]Sign, len(e.vals)+1)
	for k, v := range e.vals {
		vals[k] = v
	}
	if s == SignTop {
		delete(vals, d)
	} else {
		vals[d] = s
	}
	return SignEnv{reached: true, vals: vals}
}

// Known returns the variables with a sign other than ⊤, sorted by name.
func (e SignEnv) Known() []*symtab.Descriptor {
	ds := make([]*symtab.Descriptor, 0, len(e.vals))
	for d := range e.vals {
		ds = append(ds, d)
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].Name < ds[j].Name })
	return ds
}

// SignAnalysis is a forward analysis tracking the sign of integer scalars.
// Its facts are environments, met variable by variable in signs.
type SignAnalysis struct {
	signs Domain[Sign, int64]
	vars  int
}

var _ Problem[SignEnv] = (*SignAnalysis)(nil)

// NewSignAnalysis prepares a sign analysis for the method entered at entry.
func NewSignAnalysis(entry *cfg.Block) *SignAnalysis {
	seen := make(map[*symtab.Descriptor]bool)
	for _, b := range cfg.Walk(entry) {
		for _, s := range b.Stmts {
			if d := ir.DescOf(ir.Defines(s)); d != nil && d.Type == symtab.Int {
				seen[d] = true
			}
		}
	}
	return &SignAnalysis{signs: SignLattice{}, vars: len(seen)}
}

func (a *SignAnalysis) Direction() Direction { return Forward }

// Bottom is the unreached environment.
func (a *SignAnalysis) Bottom() SignEnv { return SignEnv{} }

// Top knows nothing about any variable.
func (a *SignAnalysis) Top() SignEnv { return SignEnv{reached: true} }

func (a *SignAnalysis) Boundary() SignEnv { return a.Top() }

func (a *SignAnalysis) Meet(x, y SignEnv) SignEnv {
	if !x.reached {
		return y
	}
	if !y.reached {
		return x
	}
	out := SignEnv{reached: true, vals: make(map[*symtab.Descriptor]Sign)}
	for d := range x.vals {
		if s := a.signs.Meet(x.Get(d), y.Get(d)); s != a.signs.Top() {
			out.vals[d] = s
		}
	}
	return out
}

func (a *SignAnalysis) Equal(x, y SignEnv) bool {
	if x.reached != y.reached || len(x.vals) != len(y.vals) {
		return false
	}
	for d, s := range x.vals {
		if t, ok := y.vals[d]; !ok || !a.signs.Equal(s, t) {
			return false
		}
	}
	return true
}

// Height: each variable can move ⊥ → sign → ⊤, plus the reached flag.
func (a *SignAnalysis) Height() int { return 2*a.vars + 2 }

func (a *SignAnalysis) Step(s ir.Statement, env SignEnv) SignEnv {
	if !env.reached {
		return env
	}
	switch s := s.(type) {
	case ir.Op:
		v, ok := s.Result.(ir.Var)
		if !ok || v.Desc.Type != symtab.Int {
			return env
		}
		return env.with(v.Desc, a.eval(env, s))
	case ir.Call:
		if !s.Builtin {
			for _, d := range env.Known() {
				if d.Kind == symtab.Field {
					env = env.with(d, SignTop)
				}
			}
		}
		if v, ok := s.Result.(ir.Var); ok {
			env = env.with(v.Desc, SignTop)
		}
	}
	return env
}

func (a *SignAnalysis) eval(env SignEnv, s ir.Op) Sign {
	x := a.operand(env, s.Arg1)
	switch s.Opcode {
	case ir.OpMove:
		return x
	case ir.OpMul:
		return a.signs.Transfer([]Sign{x, a.operand(env, s.Arg2)})
	case ir.OpAdd:
		return AddSign(x, a.operand(env, s.Arg2))
	case ir.OpSub:
		return AddSign(x, NegSign(a.operand(env, s.Arg2)))
	case ir.OpNeg:
		return NegSign(x)
	}
	return SignTop
}

func (a *SignAnalysis) operand(env SignEnv, o ir.Operand) Sign {
	switch o := o.(type) {
	case ir.ConstInt:
		return a.signs.Abstraction(o.Value)
	case ir.Var:
		if o.Desc.Type == symtab.Int {
			return env.Get(o.Desc)
		}
	}
	return SignTop
}

// AnalyzeSigns solves sign analysis for one method.
func AnalyzeSigns(entry *cfg.Block) (*Result[SignEnv], error) {
	return Solve[SignEnv](entry, NewSignAnalysis(entry))
}

package dataflow

// Lattice is a finite-height value domain for facts of type F.
type Lattice[F any] interface {
	Bottom() F
	Top() F
	Meet(a, b F) F
	Equal(a, b F) bool
}

// Domain is a Lattice that abstracts concrete values of type C. Transfer
// combines the abstract values of an operation's inputs.
type Domain[L any, C any] interface {
	Lattice[L]
	Abstraction(c C) L
	Transfer(inputs []L) L
}

// Sign abstracts an integer by its sign.
type Sign int

const (
	SignBottom Sign = iota
	SignNeg
	SignZero
	SignPos
	SignTop
)

func (s Sign) String() string {
	switch s {
	case SignBottom:
		return "⊥"
	case SignNeg:
		return "NEG"
	case SignZero:
		return "ZERO"
	case SignPos:
		return "POS"
	default:
		return "⊤"
	}
}

// SignLattice is ⊥ < {NEG, ZERO, POS} < ⊤ with multiplication as its
// transfer.
type SignLattice struct{}

var _ Domain[Sign, int64] = SignLattice{}

func (SignLattice) Abstraction(v int64) Sign {
	switch {
	case v < 0:
		return SignNeg
	case v == 0:
		return SignZero
	default:
		return SignPos
	}
}

// Transfer returns the sign of the product of inputs. An empty product is
// ⊥.
func (l SignLattice) Transfer(inputs []Sign) Sign {
	if len(inputs) == 0 {
		return SignBottom
	}
	acc := inputs[0]
	for _, s := range inputs[1:] {
		acc = MulSign(acc, s)
	}
	return acc
}

func (SignLattice) Bottom() Sign { return SignBottom }

func (SignLattice) Top() Sign { return SignTop }

func (SignLattice) Meet(a, b Sign) Sign {
	switch {
	case a == b:
		return a
	case a == SignBottom:
		return b
	case b == SignBottom:
		return a
	}
	return SignTop
}

func (SignLattice) Equal(a, b Sign) bool { return a == b }

// MulSign is the sign of a product. ZERO absorbs everything, ⊥ is the
// identity, and ⊤ wins over any other sign.
func MulSign(a, b Sign) Sign {
	switch {
	case a == SignZero || b == SignZero:
		return SignZero
	case a == SignBottom:
		return b
	case b == SignBottom:
		return a
	case a == SignTop || b == SignTop:
		return SignTop
	case a == b:
		return SignPos
	}
	return SignNeg
}

// AddSign is the sign of a sum.
func AddSign(a, b Sign) Sign {
	switch {
	case a == SignBottom || a == SignZero:
		return b
	case b == SignBottom || b == SignZero:
		return a
	case a == b && a != SignTop:
		return a
	}
	return SignTop
}

// NegSign is the sign of a negation.
func NegSign(s Sign) Sign {
	switch s {
	case SignNeg:
		return SignPos
	case SignPos:
		return SignNeg
	}
	return s
}

// Package symtab is the symbol-table oracle consumed by the back end: it
// resolves names through a class → method → block scope chain and answers
// where each name lives (frame slot, global label or register). The back end
// never rebinds names; it only asks for fresh temporaries.
package symtab

import (
	"fmt"
)

// Type is a declared Decaf type.
type Type int

const (
	Void Type = iota
	Int
	Bool
	IntArray
	BoolArray
	String
)

var typeNames = [...]string{
	Void:      "void",
	Int:       "int",
	Bool:      "boolean",
	IntArray:  "int[]",
	BoolArray: "boolean[]",
	String:    "string",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func (t Type) IsArray() bool { return t == IntArray || t == BoolArray }

// Elem returns the element type of an array type, or t itself.
func (t Type) Elem() Type {
	switch t {
	case IntArray:
		return Int
	case BoolArray:
		return Bool
	}
	return t
}

// LocKind says where a name is stored.
type LocKind int

const (
	Stack LocKind = iota
	Global
	Register
)

// Location is the storage of one name. Stack offsets are relative to the
// frame pointer.
type Location struct {
	Kind   LocKind
	Offset int64
	Symbol string
	Reg    string
}

func (l Location) String() string {
	switch l.Kind {
	case Global:
		return l.Symbol
	case Register:
		return "%" + l.Reg
	default:
		return fmt.Sprintf("%d(%%rbp)", l.Offset)
	}
}

// Kind classifies a descriptor.
type Kind int

const (
	Field Kind = iota
	Param
	Local
	Temp
	StringLit
)

// Descriptor is a symbol-table entry.
type Descriptor struct {
	Name   string
	Type   Type
	Kind   Kind
	Loc    Location
	Length int64 // element count for arrays

	// Immutable marks temporaries that are assigned once and never
	// overwritten afterwards.
	Immutable bool
}

func (d *Descriptor) IsGlobal() bool { return d.Loc.Kind == Global }

func (d *Descriptor) String() string { return d.Name }

// Frame tracks the locals area of one method activation. Every scope of a
// method shares the method's frame.
type Frame struct {
	size int64
}

// Size is the number of bytes of locals allocated so far.
func (f *Frame) Size() int64 { return f.size }

// Alloc reserves the next 8-byte slot and returns its frame-pointer offset.
func (f *Frame) Alloc() int64 {
	f.size += 8
	return -f.size
}

// Method describes a declared method.
type Method struct {
	Name   string
	Return Type
	Params []*Descriptor
	Scope  *Scope
}

// Scope is one level of the scope chain.
type Scope struct {
	parent  *Scope
	vars    map[string]*Descriptor
	methods map[string]*Method
	method  *Method
	frame   *Frame
}

// NewClassScope returns the outermost scope, holding fields and methods.
func NewClassScope() *Scope {
	return &Scope{
		vars:    make(map[string]*Descriptor),
		methods: make(map[string]*Method),
	}
}

// Parent returns the enclosing scope, or nil for the class scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Method returns the method the scope belongs to, or nil at class level.
func (s *Scope) Method() *Method { return s.method }

// Frame returns the frame of the enclosing method, or nil at class level.
func (s *Scope) Frame() *Frame { return s.frame }

// DeclareField adds a global scalar or array. length is ignored for scalars.
func (s *Scope) DeclareField(name string, typ Type, length int64) *Descriptor {
	d := &Descriptor{
		Name: name,
		Type: typ,
		Kind: Field,
		Loc:  Location{Kind: Global, Symbol: name},
	}
	if typ.IsArray() {
		d.Length = length
	}
	s.vars[name] = d
	return d
}

// DeclareMethod adds a method and returns it with a fresh method scope and
// frame.
func (s *Scope) DeclareMethod(name string, ret Type) *Method {
	m := &Method{Name: name, Return: ret}
	m.Scope = &Scope{
		parent: s,
		vars:   make(map[string]*Descriptor),
		method: m,
		frame:  &Frame{},
	}
	s.methods[name] = m
	return m
}

// DeclareParam adds the next formal parameter. The first six arrive in
// registers and get a frame slot to be spilled into; the rest are read from
// the caller's frame above the saved frame pointer and return address.
func (m *Method) DeclareParam(name string, typ Type) *Descriptor {
	i := len(m.Params)
	var loc Location
	if i < len(ArgRegs) {
		loc = Location{Kind: Stack, Offset: m.Scope.frame.Alloc()}
	} else {
		loc = Location{Kind: Stack, Offset: 16 + 8*int64(i-len(ArgRegs))}
	}
	d := &Descriptor{Name: name, Type: typ, Kind: Param, Loc: loc}
	m.Params = append(m.Params, d)
	m.Scope.vars[name] = d
	return d
}

// ArgRegs is the System V AMD64 integer argument register sequence.
var ArgRegs = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// NewBlockScope opens a nested scope sharing the method's frame.
func (s *Scope) NewBlockScope() *Scope {
	return &Scope{
		parent: s,
		vars:   make(map[string]*Descriptor),
		method: s.method,
		frame:  s.frame,
	}
}

// DeclareLocal adds a stack-resident local.
func (s *Scope) DeclareLocal(name string, typ Type) *Descriptor {
	d := &Descriptor{
		Name: name,
		Type: typ,
		Kind: Local,
		Loc:  Location{Kind: Stack, Offset: s.frame.Alloc()},
	}
	s.vars[name] = d
	return d
}

// DeclareRegisterLocal adds a local that register allocation has already
// placed in reg.
func (s *Scope) DeclareRegisterLocal(name string, typ Type, reg string) *Descriptor {
	d := &Descriptor{
		Name: name,
		Type: typ,
		Kind: Local,
		Loc:  Location{Kind: Register, Reg: reg},
	}
	s.vars[name] = d
	return d
}

// AllocTemp allocates a fresh stack temporary in the method frame. Temps are
// registered in s so dumps can resolve them, but their names cannot collide
// with source identifiers.
func (s *Scope) AllocTemp(typ Type, immutable bool) *Descriptor {
	off := s.frame.Alloc()
	d := &Descriptor{
		Name:      fmt.Sprintf("%%t%d", -off/8),
		Type:      typ,
		Kind:      Temp,
		Loc:       Location{Kind: Stack, Offset: off},
		Immutable: immutable,
	}
	s.vars[d.Name] = d
	return d
}

// Lookup resolves name through the scope chain.
func (s *Scope) Lookup(name string) (*Descriptor, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if d, ok := sc.vars[name]; ok {
			return d, true
		}
	}
	return nil, false
}

// LookupMethod resolves a method name through the scope chain.
func (s *Scope) LookupMethod(name string) (*Method, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if m, ok := sc.methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

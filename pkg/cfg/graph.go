package cfg

import (
	"fmt"

	"github.com/raymyers/ralph-decaf/pkg/symtab"
)

// Method is one compiled method: its descriptor and entry block.
type Method struct {
	Name  string
	Desc  *symtab.Method
	Entry *Block
}

// StringLit is an interned string literal and its read-only label.
type StringLit struct {
	Label string
	Text  string
}

// Graph is the whole-program CFG. Methods, globals and strings keep their
// insertion order so output is deterministic.
type Graph struct {
	methods  []*Method
	byName   map[string]*Method
	globals  []*symtab.Descriptor
	strings  []StringLit
	strLabel map[string]string
}

func NewGraph() *Graph {
	return &Graph{
		byName:   make(map[string]*Method),
		strLabel: make(map[string]string),
	}
}

// AddMethod registers a method's entry block under its name.
func (g *Graph) AddMethod(m *Method) {
	if _, dup := g.byName[m.Name]; !dup {
		g.methods = append(g.methods, m)
	} else {
		for i, old := range g.methods {
			if old.Name == m.Name {
				g.methods[i] = m
			}
		}
	}
	g.byName[m.Name] = m
}

func (g *Graph) Method(name string) (*Method, bool) {
	m, ok := g.byName[name]
	return m, ok
}

func (g *Graph) Methods() []*Method { return g.methods }

func (g *Graph) AddGlobal(d *symtab.Descriptor) { g.globals = append(g.globals, d) }

func (g *Graph) Globals() []*symtab.Descriptor { return g.globals }

// AddString interns text and returns its label. Equal texts share a label.
func (g *Graph) AddString(text string) string {
	if l, ok := g.strLabel[text]; ok {
		return l
	}
	l := fmt.Sprintf(".str%d", len(g.strings))
	g.strings = append(g.strings, StringLit{Label: l, Text: text})
	g.strLabel[text] = l
	return l
}

func (g *Graph) Strings() []StringLit { return g.strings }

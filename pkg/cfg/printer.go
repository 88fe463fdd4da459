package cfg

import (
	"fmt"
	"io"
	"strconv"

	"github.com/raymyers/ralph-decaf/pkg/ir"
)

// Printer dumps a Graph in a readable block listing
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new CFG printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintGraph prints globals, strings, then every method's blocks
func (p *Printer) PrintGraph(g *Graph) {
	for _, d := range g.Globals() {
		if d.Type.IsArray() {
			fmt.Fprintf(p.w, "global %s %s[%d]\n", d.Type.Elem(), d.Name, d.Length)
		} else {
			fmt.Fprintf(p.w, "global %s %s\n", d.Type, d.Name)
		}
	}
	for _, s := range g.Strings() {
		fmt.Fprintf(p.w, "string %s %s\n", s.Label, strconv.Quote(s.Text))
	}
	for i, m := range g.Methods() {
		if i > 0 || len(g.Globals()) > 0 || len(g.Strings()) > 0 {
			fmt.Fprintln(p.w)
		}
		p.PrintMethod(m)
	}
}

// PrintMethod prints the blocks of one method in walk order
func (p *Printer) PrintMethod(m *Method) {
	fmt.Fprintf(p.w, "method %s {\n", m.Name)
	for _, b := range Walk(m.Entry) {
		p.printBlock(b)
	}
	fmt.Fprintln(p.w, "}")
}

func (p *Printer) printBlock(b *Block) {
	fmt.Fprintf(p.w, "%s:\n", b.ID)
	for _, s := range b.Stmts {
		fmt.Fprintf(p.w, "\t%s\n", ir.Format(s))
	}
	switch {
	case b.Branch != nil && b.Next != nil:
		fmt.Fprintf(p.w, "\tif -> %s else -> %s\n", b.Branch.ID, b.Next.ID)
	case b.Branch != nil:
		fmt.Fprintf(p.w, "\tif -> %s\n", b.Branch.ID)
	case b.Next != nil:
		fmt.Fprintf(p.w, "\tgoto %s\n", b.Next.ID)
	default:
		fmt.Fprintln(p.w, "\texit")
	}
}

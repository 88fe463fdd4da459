package dataflow

import (
	"fmt"
	"io"
	"strings"
)

// PrintAvailable writes the in and out sets of every block in solve order.
func PrintAvailable(w io.Writer, method string, res *Result[ExprSet]) {
	fmt.Fprintf(w, "available %s {\n", method)
	for _, b := range res.Order {
		fmt.Fprintf(w, "%s:\n", b.ID)
		fmt.Fprintf(w, "\tin:  %s\n", formatExprs(res.In[b]))
		fmt.Fprintf(w, "\tout: %s\n", formatExprs(res.Out[b]))
	}
	fmt.Fprintln(w, "}")
}

func formatExprs(s ExprSet) string {
	parts := make([]string, 0, len(s))
	for _, e := range s.Slice() {
		parts = append(parts, e.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// PrintSigns writes the sign environment leaving every block.
func PrintSigns(w io.Writer, method string, res *Result[SignEnv]) {
	fmt.Fprintf(w, "signs %s {\n", method)
	for _, b := range res.Order {
		fmt.Fprintf(w, "%s: %s\n", b.ID, formatSigns(res.Out[b]))
	}
	fmt.Fprintln(w, "}")
}

func formatSigns(e SignEnv) string {
	if !e.Reached() {
		return "unreached"
	}
	parts := make([]string, 0, len(e.vals))
	for _, d := range e.Known() {
		parts = append(parts, fmt.Sprintf("%s=%s", d.Name, e.Get(d)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

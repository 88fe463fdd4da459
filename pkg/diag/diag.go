// Package diag collects compiler diagnostics. Reporting never unwinds: passes
// record an error and keep going so one run surfaces as many problems as
// possible. The driver decides success by asking HasErrors after all passes.
package diag

import (
	"fmt"
	"io"
	"strings"
)

// Pos is a source position. Line and Col are 1-based; a zero Line means the
// position is unknown.
type Pos struct {
	File string
	Line int
	Col  int
}

// IsValid reports whether the position refers to a source line.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	file := p.File
	if file == "" {
		file = "<input>"
	}
	if !p.IsValid() {
		return file
	}
	if p.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", file, p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d", file, p.Line)
}

// Phase identifies the pass that reported an error.
type Phase int

const (
	Build Phase = iota
	Analysis
	Optimize
	Emit
	Internal
)

var phaseNames = [...]string{
	Build:    "build",
	Analysis: "analysis",
	Optimize: "optimize",
	Emit:     "emit",
	Internal: "internal",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Error is one reported diagnostic.
type Error struct {
	Pos   Pos
	Phase Phase
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: error: %s", e.Pos, e.Msg)
}

// Reporter is the error sink shared by every pass of one compilation.
type Reporter struct {
	w    io.Writer
	errs []*Error
}

// NewReporter returns a reporter that echoes each error to w as it arrives.
// w may be nil to only collect.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Report records msg at pos.
func (r *Reporter) Report(pos Pos, phase Phase, msg string) {
	e := &Error{Pos: pos, Phase: phase, Msg: msg}
	r.errs = append(r.errs, e)
	if r.w != nil {
		fmt.Fprintln(r.w, e.Error())
	}
}

// Errorf records a formatted message at pos.
func (r *Reporter) Errorf(pos Pos, phase Phase, format string, args ...any) {
	r.Report(pos, phase, fmt.Sprintf(format, args...))
}

// Errors returns the errors recorded so far, in report order.
func (r *Reporter) Errors() []*Error { return r.errs }

func (r *Reporter) HasErrors() bool { return len(r.errs) > 0 }

// Source holds the text of one input so positions can be turned back into
// the source fragment they point at.
type Source struct {
	name  string
	lines []string
}

func NewSource(name, text string) *Source {
	return &Source{name: name, lines: strings.Split(text, "\n")}
}

// Fragment returns the trimmed source line at pos with an '@' marking the
// column, or "" when the position falls outside the text. A position naming
// a different file has no fragment.
func (s *Source) Fragment(pos Pos) string {
	if s == nil || !pos.IsValid() || pos.Line > len(s.lines) {
		return ""
	}
	if pos.File != "" && s.name != "" && pos.File != s.name {
		return ""
	}
	line := strings.TrimRight(s.lines[pos.Line-1], " \t\r")
	if pos.Col > 0 && pos.Col <= len(line)+1 {
		line = line[:pos.Col-1] + "@" + line[pos.Col-1:]
	}
	return strings.TrimSpace(line)
}

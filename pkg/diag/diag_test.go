package diag

import (
	"bytes"
	"testing"
)

func TestPosString(t *testing.T) {
	tests := []struct {
		name string
		pos  Pos
		want string
	}{
		{"full", Pos{File: "a.dcf", Line: 3, Col: 7}, "a.dcf:3:7"},
		{"no column", Pos{File: "a.dcf", Line: 3}, "a.dcf:3"},
		{"unknown", Pos{File: "a.dcf"}, "a.dcf"},
		{"no file", Pos{Line: 1, Col: 1}, "<input>:1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReporterCollectsAndEchoes(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	if r.HasErrors() {
		t.Fatal("fresh reporter should have no errors")
	}
	r.Errorf(Pos{File: "p.dcf", Line: 2, Col: 5}, Build, "unsupported operator %q", "^")
	r.Report(Pos{}, Emit, "unknown opcode")

	if got := len(r.Errors()); got != 2 {
		t.Fatalf("got %d errors, want 2", got)
	}
	if r.Errors()[0].Phase != Build {
		t.Errorf("got phase %v, want build", r.Errors()[0].Phase)
	}
	want := "p.dcf:2:5: error: unsupported operator \"^\"\n<input>: error: unknown opcode\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReporterNilWriter(t *testing.T) {
	r := NewReporter(nil)
	r.Report(Pos{Line: 1}, Internal, "boom")
	if !r.HasErrors() {
		t.Error("expected error to be recorded")
	}
}

func TestSourceFragment(t *testing.T) {
	src := NewSource("t.dcf", "class Program {\n    x = a + b;\n}\n")
	tests := []struct {
		name string
		pos  Pos
		want string
	}{
		{"column marked", Pos{Line: 2, Col: 11}, "x = a @+ b;"},
		{"no column", Pos{Line: 2}, "x = a + b;"},
		{"same file", Pos{File: "t.dcf", Line: 2}, "x = a + b;"},
		{"other file", Pos{File: "u.dcf", Line: 2}, ""},
		{"out of range", Pos{Line: 40}, ""},
		{"unknown", Pos{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := src.Fragment(tt.pos); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

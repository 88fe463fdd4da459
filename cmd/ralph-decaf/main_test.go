package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalProgram = `
file: min.decaf
methods:
  - name: main
    type: void
    body:
      stmts:
        - callout: {name: printf, args: [{string: "hi\n"}]}
`

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.yaml")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	for _, flagName := range []string{"output", "optimize", "verbose", "dcfg", "dcse", "davail", "dsign"} {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
	for _, short := range []string{"o", "O"} {
		if cmd.Flags().ShorthandLookup(short) == nil {
			t.Errorf("expected flag -%s to exist", short)
		}
	}
}

func TestCompileToStdout(t *testing.T) {
	resetDebugFlags()
	path := writeProgram(t, minimalProgram)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v\nStderr: %s", err, errOut.String())
	}

	output := out.String()
	for _, want := range []string{".globl\tmain", "main:\n", "call\tprintf", "error_handler:"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
	if errOut.Len() != 0 {
		t.Errorf("expected no diagnostics, got %q", errOut.String())
	}
}

func TestCompileFromStdin(t *testing.T) {
	resetDebugFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetIn(strings.NewReader(minimalProgram))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v\nStderr: %s", err, errOut.String())
	}
	if !strings.Contains(out.String(), "main:\n") {
		t.Errorf("expected assembly on stdout, got:\n%s", out.String())
	}
}

func TestStdinErrorNamesInput(t *testing.T) {
	resetDebugFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for empty input")
	}
	if got := errOut.String(); !strings.HasPrefix(got, "ralph-decaf: <stdin>: ") {
		t.Errorf("got %q, want a ralph-decaf: <stdin>: prefix", got)
	}
}

func TestOutputFile(t *testing.T) {
	resetDebugFlags()
	path := writeProgram(t, minimalProgram)
	asmPath := filepath.Join(t.TempDir(), "prog.s")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-o", asmPath, path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v\nStderr: %s", err, errOut.String())
	}
	resetDebugFlags()

	content, err := os.ReadFile(asmPath)
	if err != nil {
		t.Fatalf("expected output file %s: %v", asmPath, err)
	}
	if !strings.Contains(string(content), "main:\n") {
		t.Errorf("output file missing main, got:\n%s", content)
	}
	if out.Len() != 0 {
		t.Errorf("expected nothing on stdout, got:\n%s", out.String())
	}
}

func TestDumpFlags(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"--dcfg", "method main {"},
		{"--dcse", "method main {"},
		{"--davail", "available main {"},
		{"--dsign", "signs main {"},
	}

	for _, tc := range tests {
		t.Run(tc.flag, func(t *testing.T) {
			resetDebugFlags()
			path := writeProgram(t, minimalProgram)

			var out, errOut bytes.Buffer
			cmd := newRootCmd(&out, &errOut)
			cmd.SetArgs([]string{"-O", tc.flag, path})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("unexpected error: %v\nStderr: %s", err, errOut.String())
			}

			output := out.String()
			if !strings.Contains(output, tc.want) {
				t.Errorf("expected output to contain %q, got:\n%s", tc.want, output)
			}
			if strings.Contains(output, ".text") {
				t.Errorf("dump should replace the assembly on stdout, got:\n%s", output)
			}
		})
	}
}

func TestVerbose(t *testing.T) {
	resetDebugFlags()
	path := writeProgram(t, minimalProgram)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--verbose", "-O", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v\nStderr: %s", err, errOut.String())
	}

	trace := errOut.String()
	for _, want := range []string{
		"ralph-decaf: pass cfg: main\n",
		"ralph-decaf: pass cse: main\n",
		"ralph-decaf: pass emit: main\n",
		"ralph-decaf: cse: 0 rewritten",
	} {
		if !strings.Contains(trace, want) {
			t.Errorf("expected trace to contain %q, got:\n%s", want, trace)
		}
	}
}

func TestFileNotFound(t *testing.T) {
	resetDebugFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for missing file")
	}
	if !strings.HasPrefix(errOut.String(), "ralph-decaf: ") {
		t.Errorf("expected a ralph-decaf: message, got %q", errOut.String())
	}
}

func TestLoadErrorReported(t *testing.T) {
	resetDebugFlags()
	path := writeProgram(t, "methods: [{name: main, type: void, body: {stmts: [{assign: {loc: {var: x}, value: {int: 1}}}]}}]\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for an undefined variable")
	}
	if !strings.Contains(errOut.String(), "variable x") {
		t.Errorf("got %q, want it to name the variable", errOut.String())
	}
	if out.Len() != 0 {
		t.Errorf("expected no assembly, got:\n%s", out.String())
	}
}

func TestTooManyArgs(t *testing.T) {
	resetDebugFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"a.yaml", "b.yaml"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for two input files")
	}
}

func resetDebugFlags() {
	dCFG = false
	dCSE = false
	dAvail = false
	dSign = false
	outputFile = ""
	optimize = false
	verbose = false
}

func TestNormalizeFlags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "single-dash dcfg",
			input:    []string{"-dcfg", "prog.yaml"},
			expected: []string{"--dcfg", "prog.yaml"},
		},
		{
			name:     "double-dash dcfg unchanged",
			input:    []string{"--dcfg", "prog.yaml"},
			expected: []string{"--dcfg", "prog.yaml"},
		},
		{
			name:     "mixed flags",
			input:    []string{"prog.yaml", "-davail", "-dsign"},
			expected: []string{"prog.yaml", "--davail", "--dsign"},
		},
		{
			name:     "other flags unchanged",
			input:    []string{"-o", "prog.s", "-O", "prog.yaml"},
			expected: []string{"-o", "prog.s", "-O", "prog.yaml"},
		},
		{
			name:     "all debug flags",
			input:    []string{"-dcfg", "-dcse", "-davail", "-dsign"},
			expected: []string{"--dcfg", "--dcse", "--davail", "--dsign"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := normalizeFlags(tc.input)
			if len(result) != len(tc.expected) {
				t.Errorf("normalizeFlags(%v) = %v, want %v", tc.input, result, tc.expected)
				return
			}
			for i := range result {
				if result[i] != tc.expected[i] {
					t.Errorf("normalizeFlags(%v) = %v, want %v", tc.input, result, tc.expected)
					return
				}
			}
		})
	}
}

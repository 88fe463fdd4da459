package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/raymyers/ralph-decaf/pkg/asm"
	"github.com/raymyers/ralph-decaf/pkg/ast"
	"github.com/raymyers/ralph-decaf/pkg/diag"
	"github.com/raymyers/ralph-decaf/pkg/loader"
	"github.com/raymyers/ralph-decaf/pkg/pipeline"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Debug flags for dumping intermediate representations
var (
	dCFG   bool
	dCSE   bool
	dAvail bool
	dSign  bool
)

var (
	outputFile string
	optimize   bool
	verbose    bool
)

// ErrCompileFailed indicates the compiler reported at least one error
var ErrCompileFailed = errors.New("compilation failed")

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists the debug flags that also accept single-dash style
var debugFlagNames = []string{"dcfg", "dcse", "davail", "dsign"}

// normalizeFlags converts single-dash debug flags like -dcfg to --dcfg
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-decaf [file]",
		Short: "ralph-decaf compiles a checked Decaf program to x86-64 assembly",
		Long: `ralph-decaf is the back end of a Decaf compiler. It reads a
type-checked program (YAML, from a file or standard input), lowers it
to a control-flow graph, optionally eliminates common subexpressions
and writes GNU assembler source for x86-64 Linux.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args, cmd.InOrStdin())
			if err != nil {
				fmt.Fprintf(errOut, "ralph-decaf: %v\n", err)
				return err
			}
			return compile(prog, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write assembly to file instead of stdout")
	rootCmd.Flags().BoolVarP(&optimize, "optimize", "O", false, "Eliminate common subexpressions")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Trace each pass to stderr")

	rootCmd.Flags().BoolVarP(&dCFG, "dcfg", "", false, "Dump the control-flow graph as built")
	rootCmd.Flags().BoolVarP(&dCSE, "dcse", "", false, "Dump the control-flow graph after CSE")
	rootCmd.Flags().BoolVarP(&dAvail, "davail", "", false, "Dump available expressions")
	rootCmd.Flags().BoolVarP(&dSign, "dsign", "", false, "Dump sign analysis")

	return rootCmd
}

// loadProgram reads the named file, or standard input when no file is given
func loadProgram(args []string, stdin io.Reader) (*ast.Program, error) {
	if len(args) == 1 {
		return loader.LoadFile(args[0])
	}
	prog, err := loader.Load(stdin)
	if err != nil {
		return nil, fmt.Errorf("<stdin>: %w", err)
	}
	if prog.File == "" {
		prog.File = "<stdin>"
	}
	return prog, nil
}

func dumping() bool {
	return dCFG || dCSE || dAvail || dSign
}

// compile runs the pipeline. Dumps go to out; the assembly goes to the
// output file, or to out when no file is named and nothing is dumped.
func compile(prog *ast.Program, out, errOut io.Writer) error {
	opts := pipeline.Options{
		Optimize:      optimize,
		DumpCFG:       dCFG,
		DumpCSE:       dCSE,
		DumpAvailable: dAvail,
		DumpSigns:     dSign,
		Dump:          out,
	}
	if verbose {
		opts.Trace = errOut
	}

	r := diag.NewReporter(errOut)
	res := pipeline.Run(prog, opts, r)
	if verbose {
		fmt.Fprintf(errOut, "ralph-decaf: cse: %d rewritten, %d dropped, %d temporaries\n",
			res.Stats.Rewritten, res.Stats.Dropped, res.Stats.Temps)
	}
	if r.HasErrors() {
		fmt.Fprintf(errOut, "ralph-decaf: %d error(s) in %s\n", len(r.Errors()), prog.File)
		return ErrCompileFailed
	}

	if outputFile == "" {
		if !dumping() {
			asm.NewPrinter(out).PrintProgram(res.Program)
		}
		return nil
	}

	outFile, err := os.Create(outputFile)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-decaf: error creating %s: %v\n", outputFile, err)
		return err
	}
	defer outFile.Close()

	asm.NewPrinter(outFile).PrintProgram(res.Program)
	return nil
}

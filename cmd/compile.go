package cmd

import (
	"fmt"
	"os"

	"github.com/dr8co/plz/gen"
	"github.com/spf13/cobra"
)

var (
	compileEval   string
	compileOutput string
	disassemble   bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile a PL/0 file to p-machine code",
	Long: `Compile a PL/0 program and print the generated p-machine code,
one instruction per line as four space-separated integers.

Nothing is printed when compilation fails; the numeric error code and its
message go to stderr.

Examples:
  # Compile a source file
  plz compile square.pl0

  # Compile to a file
  plz compile square.pl0 -o square.pm0

  # Show a mnemonic disassembly instead of the raw listing
  plz compile square.pl0 --disassemble`,
	Args: cobra.MaximumNArgs(1),
	RunE: compileSource,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileEval, "eval", "e", "", "compile inline code instead of reading from a file")
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "output file (default: stdout)")
	compileCmd.Flags().BoolVar(&disassemble, "disassemble", false, "print a mnemonic disassembly instead of the raw listing")
}

func compileSource(cmd *cobra.Command, args []string) error {
	toks, err := tokenize(args, compileEval)
	if err != nil {
		return err
	}

	program, err := gen.Generate(toks)
	if err != nil {
		return reportGenError(err)
	}

	listing := program.String()
	if disassemble {
		listing = program.Disassemble()
	}

	if compileOutput != "" {
		if err := os.WriteFile(compileOutput, []byte(listing), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", compileOutput, err)
		}
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), listing)
	return nil
}

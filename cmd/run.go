package cmd

import (
	"fmt"
	"os"

	"github.com/dr8co/plz/gen"
	"github.com/dr8co/plz/vm"
	"github.com/spf13/cobra"
)

var runEval string

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Compile and execute a PL/0 program",
	Long: `Compile a PL/0 program and execute the generated code on the
p-machine. The program's read and write statements use stdin and stdout.

Examples:
  # Run a source file
  plz run square.pl0

  # Run inline code
  plz run -e "var x; begin x := 6 * 7; write x end."`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSource,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runEval, "eval", "e", "", "run inline code instead of reading from a file")
}

func runSource(cmd *cobra.Command, args []string) error {
	toks, err := tokenize(args, runEval)
	if err != nil {
		return err
	}

	program, err := gen.Generate(toks)
	if err != nil {
		return reportGenError(err)
	}

	machine := vm.New(program, cmd.InOrStdin(), cmd.OutOrStdout())
	if err := machine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %s\n", err)
		return err
	}
	return nil
}

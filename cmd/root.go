// Package cmd implements the plz command-line interface.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/dr8co/plz/gen"
	"github.com/dr8co/plz/lexer"
	"github.com/dr8co/plz/repl"
	"github.com/dr8co/plz/token"
	"github.com/spf13/cobra"
)

// Version information (set by build flags)
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "plz",
	Short: "PL/0 compiler and p-machine",
	Long: `plz is a single-pass compiler for the PL/0 language targeting an
abstract stack machine, with a built-in interpreter for the generated code.

Without a subcommand it starts an interactive REPL.`,
	Version:      Version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		noColor, _ := cmd.Flags().GetBool("no-color")
		repl.Start(repl.Options{NoColor: noColor})
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
`, GitCommit))

	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
}

// tokenize reads PL/0 source from the given file, or from the inline
// expression when one is set, and returns the token stream.
func tokenize(args []string, eval string) ([]token.Token, error) {
	input, _, err := readSource(args, eval)
	if err != nil {
		return nil, err
	}
	return lexer.New(input).Tokens(), nil
}

// readSource resolves the input source: an inline expression when eval is
// non-empty, otherwise the file named by the first argument.
func readSource(args []string, eval string) (input, name string, err error) {
	if eval != "" {
		return eval, "<eval>", nil
	}
	if len(args) != 1 {
		return "", "", errors.New("expected a source file or an inline expression via --eval")
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to read file %s: %w", args[0], err)
	}
	return string(content), args[0], nil
}

// reportGenError prints a generation failure to stderr.
// The numeric code is the diagnostic surface; the capacity error has none.
func reportGenError(err error) error {
	var genErr *gen.Error
	if errors.As(err, &genErr) {
		fmt.Fprintf(os.Stderr, "%s\n", genErr)
		return err
	}
	fmt.Fprintf(os.Stderr, "generation failed: %s\n", err)
	return err
}

package cmd

import (
	"fmt"

	"github.com/dr8co/plz/lexer"
	"github.com/dr8co/plz/token"
	"github.com/spf13/cobra"
)

var (
	lexEval     string
	lexShowType bool
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize a PL/0 file or expression",
	Long: `Tokenize (lex) a PL/0 program and print the resulting tokens.

Examples:
  # Tokenize a source file
  plz lex square.pl0

  # Tokenize an inline expression
  plz lex -e "var x; x := 1."

  # Show the symbolic token kinds
  plz lex --show-type square.pl0`,
	Args: cobra.MaximumNArgs(1),
	RunE: lexSource,
}

func init() {
	rootCmd.AddCommand(lexCmd)

	lexCmd.Flags().StringVarP(&lexEval, "eval", "e", "", "tokenize inline code instead of reading from a file")
	lexCmd.Flags().BoolVar(&lexShowType, "show-type", false, "show token kind names")
}

func lexSource(cmd *cobra.Command, args []string) error {
	input, _, err := readSource(args, lexEval)
	if err != nil {
		return err
	}

	l := lexer.New(input)
	for {
		tok := l.NextToken()
		if tok.Type == token.Null {
			return nil
		}
		if lexShowType {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", tok.Type, tok.Literal)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), tok.Literal)
		}
	}
}

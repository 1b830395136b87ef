package cmd

import (
	"github.com/dr8co/plz/repl"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive PL/0 session",
	Long: `Start an interactive session. Programs are accumulated line by
line and compiled and executed once the terminating period is entered.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		noColor, _ := cmd.Flags().GetBool("no-color")
		repl.Start(repl.Options{NoColor: noColor})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

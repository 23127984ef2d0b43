package cmd

import (
	"fmt"

	"github.com/josephlewis42/forksh/core/shell"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var showTokens bool

var classifyCmd = &cobra.Command{
	Use:   "classify LINE",
	Short: "Show how a command line is split into pipelines, stages and redirections.",
	Long: `Show how a command line is split into pipelines, stages and redirections.

Operators must be separate words. A redirection target ends its command:
a word after it, as in "echo a > f b", is a syntax error rather than another
argument.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		var value interface{}
		if showTokens {
			tokens, err := shell.Tokenize(args[0])
			if err != nil {
				return err
			}
			value = tokens.Words()
		} else {
			line, err := shell.ClassifyLine(args[0])
			if err != nil {
				return err
			}
			value = line
		}

		out, err := yaml.Marshal(value)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&showTokens, "tokens", false, "show the words of the line instead")
}

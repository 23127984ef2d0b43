package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/josephlewis42/forksh/core"
	"github.com/spf13/cobra"
)

// builtinsCmd lists the commands the shell runs in process
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtin commands of the shell.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		defer tw.Flush()

		for _, name := range core.BuiltinNames() {
			fmt.Fprintf(tw, "%s\t%s\n", name, core.BuiltinDocs[name])
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}

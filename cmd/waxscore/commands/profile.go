package commands

import (
	"github.com/spf13/cobra"
)

var profileDumpCmd = &cobra.Command{
	Use:   "profile:dump",
	Short: "Print the active profile as YAML",
	Long: `profile:dump prints the alias table, label cleanup rules and predicate
table in effect. The output is a valid --profile file and a starting point
for a custom one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := state.profile.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(blob)
		return err
	},
}

func init() {
	rootCmd.AddCommand(profileDumpCmd)
}

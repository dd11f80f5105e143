package cmd

import (
	"github.com/spf13/cobra"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the configured modes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}

		modes, err := c.Modes(commandContext(cmd))
		if err != nil {
			return err
		}
		return f.Modes(modes)
	},
}

func init() {
	rootCmd.AddCommand(modesCmd)
}

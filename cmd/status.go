package cmd

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current mode and service state",
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

		st, err := c.Status(commandContext(cmd))
		if err != nil {
			return err
		}
		return f.Status(st)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

package cmd

import (
	"github.com/spf13/cobra"

	"modeswitch/internal/controller"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the service without changing its mode",
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

		var res controller.RestartResult
		err = withSpinner("Restarting service...", func() error {
			var err error
			res, err = c.Restart(commandContext(cmd))
			return err
		})
		if err != nil {
			return err
		}

		if err := f.RestartResult(res); err != nil {
			return err
		}
		if res.Error != nil {
			return &operationFailedError{op: "restart", failure: res.Error}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}

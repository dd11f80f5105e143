package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"modeswitch/internal/controller"
)

var switchCmd = &cobra.Command{
	Use:   "switch MODE",
	Short: "Switch the service to another mode",
	Long: `Stops the service, installs the artifact for MODE and starts the service
again. If anything goes wrong the server still tries to leave the service
running. Use 'modeswitch modes' to list the available modes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}

		var res controller.SwitchResult
		err = withSpinner(fmt.Sprintf("Switching to %s...", args[0]), func() error {
			var err error
			res, err = c.Switch(commandContext(cmd), args[0])
			return err
		})
		if err != nil {
			return err
		}

		if err := f.SwitchResult(res); err != nil {
			return err
		}
		if !res.Succeeded {
			return &operationFailedError{op: "switch", failure: res.Error}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(switchCmd)
}

package cmd

import (
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Prepare artifacts for every mode",
	Long: `Backs up the installed factory artifact and synthesizes the artifacts of
the other modes from it, without touching the running service.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}

		res, err := c.Setup(commandContext(cmd))
		if err != nil {
			return err
		}
		if err := f.SetupResult(res); err != nil {
			return err
		}
		if res.Error != nil || !res.OK {
			return &operationFailedError{op: "setup", failure: res.Error}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

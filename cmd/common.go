package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"modeswitch/internal/client"
	"modeswitch/internal/controller"
	"modeswitch/internal/formatting"
)

var (
	clientEndpoint string
	outputFormat   string
	quietOutput    bool
	noColor        bool
)

// operationFailedError reports an operation the server ran and that
// failed. The result has already been printed.
type operationFailedError struct {
	op      string
	failure *controller.Failure
}

func (e *operationFailedError) Error() string {
	if e.failure == nil {
		return e.op + " failed"
	}
	return fmt.Sprintf("%s failed: %s", e.op, e.failure.Error())
}

// commandContext returns the command context, or a background context when
// the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newClient() (*client.Client, error) {
	return client.New(clientEndpoint, client.DefaultTimeout)
}

func newFormatter(cmd *cobra.Command) (formatting.Formatter, error) {
	format, err := formatting.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return formatting.New(formatting.Options{Format: format, NoColor: noColor}, cmd.OutOrStdout()), nil
}

// withSpinner runs fn while showing a progress spinner on stderr. The
// spinner only draws when stderr is a terminal and output is a table.
func withSpinner(message string, fn func() error) error {
	if quietOutput || outputFormat != string(formatting.FormatTable) {
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	defer s.Stop()

	err := fn()
	if err != nil && !noColor {
		s.FinalMSG = text.FgRed.Sprint(message+" failed") + "\n"
	}
	return err
}

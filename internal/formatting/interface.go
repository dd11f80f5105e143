// Package formatting renders controller results for the command line in
// table, JSON or YAML form.
package formatting

import (
	"fmt"
	"io"

	"modeswitch/internal/controller"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	// NoColor disables ANSI colors in table output.
	NoColor bool
}

// Formatter renders controller results.
type Formatter interface {
	Status(st controller.Status) error
	SwitchResult(res controller.SwitchResult) error
	RestartResult(res controller.RestartResult) error
	SetupResult(res controller.SetupResult) error
	Modes(modes []controller.ModeInfo) error
}

// New creates the formatter for options.Format writing to w.
func New(options Options, w io.Writer) Formatter {
	switch options.Format {
	case FormatJSON:
		return &JSONFormatter{w: w}
	case FormatYAML:
		return &YAMLFormatter{w: w}
	default:
		return &TableFormatter{w: w, options: options}
	}
}

package formatting

import (
	"io"

	"gopkg.in/yaml.v3"

	"modeswitch/internal/controller"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	w io.Writer
}

func (f *YAMLFormatter) write(v interface{}) error {
	enc := yaml.NewEncoder(f.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (f *YAMLFormatter) Status(st controller.Status) error { return f.write(st) }

func (f *YAMLFormatter) SwitchResult(res controller.SwitchResult) error { return f.write(res) }

func (f *YAMLFormatter) RestartResult(res controller.RestartResult) error { return f.write(res) }

func (f *YAMLFormatter) SetupResult(res controller.SetupResult) error { return f.write(res) }

func (f *YAMLFormatter) Modes(modes []controller.ModeInfo) error { return f.write(modes) }
